package service

import (
	"context"
	"fmt"
	"time"

	"careercoach-go/internal/model"
	"careercoach-go/internal/repository"
)

// UserListResponse 定义了用户列表 API 的响应结构。
type UserListResponse struct {
	Content       []UserDetailResponse `json:"content"`
	TotalElements int64                `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
	Size          int                  `json:"size"`
	Number        int                  `json:"number"`
}

// UserDetailResponse 定义了用户列表项的详细结构。
type UserDetailResponse struct {
	UserID    uint      `json:"userId"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// InterviewListResponse 是管理员查看会话列表时的分页结构。
type InterviewListResponse struct {
	Content       []model.InterviewSession `json:"content"`
	TotalElements int64                    `json:"totalElements"`
	TotalPages    int                      `json:"totalPages"`
	Size          int                      `json:"size"`
	Number        int                      `json:"number"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	ListUsers(page, size int) (*UserListResponse, error)
	ListInterviews(ctx context.Context, page, size int) (*InterviewListResponse, error)
	CancelInterview(ctx context.Context, sessionID string) (*model.InterviewSession, error)
}

type adminService struct {
	userRepo   repository.UserRepository
	interviews InterviewService
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, interviews InterviewService) AdminService {
	return &adminService{userRepo: userRepo, interviews: interviews}
}

func totalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// ListUsers 分页列出用户，page 从 1 开始。
func (s *adminService) ListUsers(page, size int) (*UserListResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	users, total, err := s.userRepo.FindWithPagination((page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	content := make([]UserDetailResponse, 0, len(users))
	for _, u := range users {
		content = append(content, UserDetailResponse{
			UserID:    u.ID,
			Username:  u.Username,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	return &UserListResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages(total, size),
		Size:          size,
		Number:        page,
	}, nil
}

// ListInterviews 分页列出所有用户的面试会话。
func (s *adminService) ListInterviews(ctx context.Context, page, size int) (*InterviewListResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	sessions, total, err := s.interviews.AdminList(ctx, page, size)
	if err != nil {
		return nil, err
	}
	return &InterviewListResponse{
		Content:       sessions,
		TotalElements: total,
		TotalPages:    totalPages(total, size),
		Size:          size,
		Number:        page,
	}, nil
}

// CancelInterview 是会话状态 pending -> canceled 的管理入口。
func (s *adminService) CancelInterview(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	return s.interviews.AdminCancel(ctx, sessionID)
}
