package service

import (
	"context"
	"fmt"
	"time"

	"careercoach-go/internal/model"
	"careercoach-go/pkg/storage"
)

const archiveURLExpiry = 15 * time.Minute

// ArchiveService 为已结束的面试生成归档文件的下载链接。
type ArchiveService interface {
	ArchiveURL(ctx context.Context, ownerID uint, sessionID string) (string, error)
}

type archiveService struct {
	interviews InterviewService
	store      storage.ObjectStore
	keyFunc    func(ownerID uint, sessionID string) string
}

// NewArchiveService 创建一个新的 ArchiveService 实例。keyFunc 决定归档对象的路径，需与归档流程一致。
func NewArchiveService(interviews InterviewService, store storage.ObjectStore, keyFunc func(uint, string) string) ArchiveService {
	return &archiveService{interviews: interviews, store: store, keyFunc: keyFunc}
}

func (s *archiveService) ArchiveURL(ctx context.Context, ownerID uint, sessionID string) (string, error) {
	session, err := s.interviews.Get(ctx, ownerID, sessionID)
	if err != nil {
		return "", err
	}
	if session.Status != model.StatusCompleted {
		return "", ErrNotArchived
	}
	url, err := s.store.PresignedURL(ctx, s.keyFunc(session.OwnerID, session.ID), archiveURLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign archive: %w", err)
	}
	return url, nil
}
