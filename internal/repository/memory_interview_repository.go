package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"careercoach-go/internal/model"
)

// MemoryInterviewRepository 是 InterviewRepository 的进程内实现。
// 服务端在 interview.store 为 memory 时使用它做单实例的本地开发，单元测试也用它代替 MySQL。
// 返回给调用方的会话都是副本，修改它们不会影响存储内容。
type MemoryInterviewRepository struct {
	mu       sync.Mutex
	sessions map[string]*model.InterviewSession
}

// NewMemoryInterviewRepository 创建一个空的内存仓库。
func NewMemoryInterviewRepository() *MemoryInterviewRepository {
	return &MemoryInterviewRepository{sessions: make(map[string]*model.InterviewSession)}
}

func cloneSession(s *model.InterviewSession, withTurns bool) *model.InterviewSession {
	cp := *s
	cp.Skills = append([]string(nil), s.Skills...)
	cp.Conversation = []model.Turn{}
	if withTurns {
		cp.Conversation = append(cp.Conversation, s.Conversation...)
	}
	return &cp
}

func (r *MemoryInterviewRepository) Create(_ context.Context, session *model.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	r.sessions[session.ID] = cloneSession(session, true)
	return nil
}

func (r *MemoryInterviewRepository) FindByOwner(_ context.Context, sessionID string, ownerID uint) (*model.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.OwnerID != ownerID {
		return nil, ErrInterviewNotFound
	}
	return cloneSession(s, true), nil
}

func (r *MemoryInterviewRepository) FindByID(_ context.Context, sessionID string) (*model.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrInterviewNotFound
	}
	return cloneSession(s, true), nil
}

func (r *MemoryInterviewRepository) sorted(filter func(*model.InterviewSession) bool) []model.InterviewSession {
	out := make([]model.InterviewSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if filter(s) {
			out = append(out, *cloneSession(s, false))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *MemoryInterviewRepository) ListByOwner(_ context.Context, ownerID uint) ([]model.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted(func(s *model.InterviewSession) bool { return s.OwnerID == ownerID }), nil
}

func (r *MemoryInterviewRepository) ListAll(_ context.Context, offset, limit int) ([]model.InterviewSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.sorted(func(*model.InterviewSession) bool { return true })
	total := int64(len(all))
	if offset >= len(all) {
		return []model.InterviewSession{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *MemoryInterviewRepository) AppendTurn(_ context.Context, sessionID string, turn model.Turn) (*model.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrInterviewNotFound
	}
	turn.SessionID = sessionID
	turn.Seq = len(s.Conversation) + 1
	s.Conversation = append(s.Conversation, turn)
	s.UpdatedAt = turn.Timestamp
	return cloneSession(s, true), nil
}

func (r *MemoryInterviewRepository) SetStatus(_ context.Context, sessionID string, status model.InterviewStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrInterviewNotFound
	}
	s.Status = status
	return nil
}
