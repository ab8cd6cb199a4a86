package repository

import (
	"context"
	"errors"
	"fmt"

	"careercoach-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInterviewNotFound 表示会话不存在，或不属于请求者。两种情况对外不可区分。
var ErrInterviewNotFound = errors.New("interview session not found")

// InterviewRepository 定义了面试会话的持久化操作。
type InterviewRepository interface {
	Create(ctx context.Context, session *model.InterviewSession) error
	// FindByOwner 只返回属于 ownerID 的会话，否则返回 ErrInterviewNotFound。
	FindByOwner(ctx context.Context, sessionID string, ownerID uint) (*model.InterviewSession, error)
	FindByID(ctx context.Context, sessionID string) (*model.InterviewSession, error)
	// ListByOwner 按创建时间倒序返回会话，不含对话内容。
	ListByOwner(ctx context.Context, ownerID uint) ([]model.InterviewSession, error)
	ListAll(ctx context.Context, offset, limit int) ([]model.InterviewSession, int64, error)
	// AppendTurn 原子地把一条对话追加到会话末尾，并返回追加后的完整会话。
	AppendTurn(ctx context.Context, sessionID string, turn model.Turn) (*model.InterviewSession, error)
	SetStatus(ctx context.Context, sessionID string, status model.InterviewStatus) error
}

type interviewRepository struct {
	db *gorm.DB
}

// NewInterviewRepository 创建一个新的 InterviewRepository 实例。
func NewInterviewRepository(db *gorm.DB) InterviewRepository {
	return &interviewRepository{db: db}
}

func orderedTurns(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func (r *interviewRepository) Create(ctx context.Context, session *model.InterviewSession) error {
	return r.db.WithContext(ctx).Omit("Conversation").Create(session).Error
}

func (r *interviewRepository) FindByOwner(ctx context.Context, sessionID string, ownerID uint) (*model.InterviewSession, error) {
	var session model.InterviewSession
	err := r.db.WithContext(ctx).
		Preload("Conversation", orderedTurns).
		Where("id = ? AND owner_id = ?", sessionID, ownerID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *interviewRepository) FindByID(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	var session model.InterviewSession
	err := r.db.WithContext(ctx).Preload("Conversation", orderedTurns).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *interviewRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.InterviewSession, error) {
	var sessions []model.InterviewSession
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *interviewRepository) ListAll(ctx context.Context, offset, limit int) ([]model.InterviewSession, int64, error) {
	var sessions []model.InterviewSession
	var total int64

	db := r.db.WithContext(ctx).Model(&model.InterviewSession{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// AppendTurn 在事务中锁住会话行（SELECT ... FOR UPDATE），再以 max(seq)+1 写入对话。
// (session_id, seq) 上的唯一索引保证即使锁失效也不会出现重复位置。
func (r *interviewRepository) AppendTurn(ctx context.Context, sessionID string, turn model.Turn) (*model.InterviewSession, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.InterviewSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&locked, "id = ?", sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInterviewNotFound
		}
		if err != nil {
			return err
		}

		var maxSeq int
		if err := tx.Model(&model.Turn{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		turn.ID = 0
		turn.SessionID = sessionID
		turn.Seq = maxSeq + 1
		if err := tx.Create(&turn).Error; err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
		return tx.Model(&model.InterviewSession{}).Where("id = ?", sessionID).Update("updated_at", turn.Timestamp).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, sessionID)
}

func (r *interviewRepository) SetStatus(ctx context.Context, sessionID string, status model.InterviewStatus) error {
	res := r.db.WithContext(ctx).Model(&model.InterviewSession{}).Where("id = ?", sessionID).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInterviewNotFound
	}
	return nil
}
