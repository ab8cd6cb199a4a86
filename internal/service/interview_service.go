package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"careercoach-go/internal/model"
	"careercoach-go/internal/repository"
	"careercoach-go/pkg/log"

	"github.com/google/uuid"
)

// CreateInterviewRequest 是创建模拟面试所需的配置。
type CreateInterviewRequest struct {
	Title      string
	JobRole    string
	Difficulty string
	Skills     []string
	Notes      string
}

// InterviewService 负责面试会话的创建、查询与取消。
type InterviewService interface {
	Create(ctx context.Context, ownerID uint, req CreateInterviewRequest) (*model.InterviewSession, error)
	List(ctx context.Context, ownerID uint) ([]model.InterviewSession, error)
	Get(ctx context.Context, ownerID uint, sessionID string) (*model.InterviewSession, error)
	// Cancel 由会话所有者发起，把 pending 会话置为 canceled。
	Cancel(ctx context.Context, ownerID uint, sessionID string) (*model.InterviewSession, error)
	// AdminList 供管理员分页查看所有会话。
	AdminList(ctx context.Context, page, size int) ([]model.InterviewSession, int64, error)
	// AdminCancel 供管理员取消任意 pending 会话。
	AdminCancel(ctx context.Context, sessionID string) (*model.InterviewSession, error)
}

type interviewService struct {
	repo  repository.InterviewRepository
	guard TurnGuard
}

// NewInterviewService 创建一个新的 InterviewService 实例。
func NewInterviewService(repo repository.InterviewRepository, guard TurnGuard) InterviewService {
	return &interviewService{repo: repo, guard: guard}
}

func (s *interviewService) Create(ctx context.Context, ownerID uint, req CreateInterviewRequest) (*model.InterviewSession, error) {
	title := strings.TrimSpace(req.Title)
	jobRole := strings.TrimSpace(req.JobRole)
	if title == "" || jobRole == "" {
		return nil, fmt.Errorf("%w: title and jobRole are required", ErrInvalidInterview)
	}
	difficulty, ok := model.ParseDifficulty(req.Difficulty)
	if !ok {
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInterview, req.Difficulty)
	}

	skills := make([]string, 0, len(req.Skills))
	for _, sk := range req.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}

	session := &model.InterviewSession{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Title:        title,
		JobRole:      jobRole,
		Difficulty:   difficulty,
		Skills:       skills,
		Notes:        strings.TrimSpace(req.Notes),
		Status:       model.StatusPending,
		Conversation: []model.Turn{},
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create interview: %w", err)
	}
	log.Infow("模拟面试已创建", "interviewId", session.ID, "ownerId", ownerID, "jobRole", jobRole)
	return session, nil
}

func (s *interviewService) List(ctx context.Context, ownerID uint) ([]model.InterviewSession, error) {
	sessions, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	return sessions, nil
}

func (s *interviewService) Get(ctx context.Context, ownerID uint, sessionID string) (*model.InterviewSession, error) {
	session, err := s.repo.FindByOwner(ctx, sessionID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrInterviewNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, fmt.Errorf("failed to load interview: %w", err)
	}
	return session, nil
}

func (s *interviewService) Cancel(ctx context.Context, ownerID uint, sessionID string) (*model.InterviewSession, error) {
	// 先校验所有权，避免向非所有者暴露会话是否存在
	if _, err := s.Get(ctx, ownerID, sessionID); err != nil {
		return nil, err
	}
	return s.cancel(ctx, sessionID)
}

func (s *interviewService) AdminList(ctx context.Context, page, size int) ([]model.InterviewSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	sessions, total, err := s.repo.ListAll(ctx, (page-1)*size, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list interviews: %w", err)
	}
	return sessions, total, nil
}

func (s *interviewService) AdminCancel(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	return s.cancel(ctx, sessionID)
}

// cancel 与轮次处理共用同一把锁，正在处理的轮次不会在中途被取消。
func (s *interviewService) cancel(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	release, ok, err := s.guard.TryAcquire(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire turn guard: %w", err)
	}
	if !ok {
		return nil, ErrTurnInProgress
	}
	defer release()

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrInterviewNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, fmt.Errorf("failed to load interview: %w", err)
	}
	if session.Status != model.StatusPending {
		return nil, ErrInterviewClosed
	}
	if err := s.repo.SetStatus(ctx, sessionID, model.StatusCanceled); err != nil {
		return nil, fmt.Errorf("failed to cancel interview: %w", err)
	}
	session.Status = model.StatusCanceled
	log.Infow("模拟面试已取消", "interviewId", sessionID)
	return session, nil
}
