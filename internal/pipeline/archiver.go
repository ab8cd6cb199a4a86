// Package pipeline 定义了面试结束后的归档流程。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"careercoach-go/internal/model"
	"careercoach-go/internal/repository"
	"careercoach-go/pkg/es"
	"careercoach-go/pkg/log"
	"careercoach-go/pkg/storage"
	"careercoach-go/pkg/tasks"
)

// Archiver 把已完成的面试写入对象存储并建立检索索引。
type Archiver struct {
	repo    repository.InterviewRepository
	store   storage.ObjectStore
	indexer es.Indexer
}

// NewArchiver 创建一个新的 Archiver 实例。
func NewArchiver(repo repository.InterviewRepository, store storage.ObjectStore, indexer es.Indexer) *Archiver {
	return &Archiver{repo: repo, store: store, indexer: indexer}
}

// ArchiveKey 返回会话归档对象的路径。
func ArchiveKey(ownerID uint, sessionID string) string {
	return fmt.Sprintf("interviews/%d/%s.json", ownerID, sessionID)
}

// Process 处理一条归档任务；重复处理同一会话会覆盖之前的结果。
func (a *Archiver) Process(ctx context.Context, task tasks.InterviewArchiveTask) error {
	log.Infof("[Archiver] 开始归档面试, SessionID: %s, OwnerID: %d", task.SessionID, task.OwnerID)

	// 1. 读取完整会话
	session, err := a.repo.FindByID(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("读取面试会话失败: %w", err)
	}
	if session.Status != model.StatusCompleted {
		log.Warnf("[Archiver] 会话 %s 状态为 %s，跳过归档", session.ID, session.Status)
		return nil
	}

	// 2. 写入 MinIO
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化面试会话失败: %w", err)
	}
	key := ArchiveKey(session.OwnerID, session.ID)
	if err := a.store.PutJSON(ctx, key, body); err != nil {
		return fmt.Errorf("上传归档到 MinIO 失败: %w", err)
	}

	// 3. 建立 Elasticsearch 索引
	doc := model.InterviewDocument{
		SessionID:   session.ID,
		OwnerID:     session.OwnerID,
		Title:       session.Title,
		JobRole:     session.JobRole,
		Difficulty:  string(session.Difficulty),
		Skills:      session.Skills,
		Transcript:  transcriptText(session.Conversation),
		TurnCount:   len(session.Conversation),
		ArchiveKey:  key,
		CompletedAt: task.CompletedAt,
	}
	if err := a.indexer.IndexInterview(ctx, doc); err != nil {
		return fmt.Errorf("索引面试记录失败: %w", err)
	}

	log.Infof("[Archiver] 面试归档完成, SessionID: %s, Object: %s", session.ID, key)
	return nil
}

func transcriptText(turns []model.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(string(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
