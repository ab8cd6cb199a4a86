package model

import (
	"strings"
	"time"
)

// Difficulty 是面试难度。
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// ParseDifficulty 不区分大小写地解析难度。
func ParseDifficulty(s string) (Difficulty, bool) {
	for _, d := range []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced} {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, true
		}
	}
	return "", false
}

// InterviewStatus 是面试会话的生命周期状态。
// pending 只会迁移到 completed（模型宣布结束）或 canceled（外部取消）。
type InterviewStatus string

const (
	StatusPending   InterviewStatus = "pending"
	StatusCompleted InterviewStatus = "completed"
	StatusCanceled  InterviewStatus = "canceled"
)

// TurnRole 标识一条对话由谁发出。
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// InterviewSession 对应 interview_sessions 表。
// 配置字段（职位、难度、技能、备注）创建后不可修改；Conversation 只追加。
type InterviewSession struct {
	ID           string          `gorm:"type:char(36);primaryKey" json:"id"`
	OwnerID      uint            `gorm:"index;not null" json:"ownerId"`
	Title        string          `gorm:"type:varchar(255);not null" json:"title"`
	JobRole      string          `gorm:"type:varchar(255);not null" json:"jobRole"`
	Difficulty   Difficulty      `gorm:"type:varchar(16);not null" json:"difficulty"`
	Skills       []string        `gorm:"serializer:json;type:json" json:"skills"`
	Notes        string          `gorm:"type:text" json:"notes"`
	Status       InterviewStatus `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	Conversation []Turn          `gorm:"foreignKey:SessionID;references:ID" json:"conversation"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (InterviewSession) TableName() string {
	return "interview_sessions"
}

// LastTurn 返回最后一条对话，没有对话时返回 nil。
func (s *InterviewSession) LastTurn() *Turn {
	if len(s.Conversation) == 0 {
		return nil
	}
	return &s.Conversation[len(s.Conversation)-1]
}

// Turn 是会话中的一条对话，写入后不再修改。
// Seq 从 1 开始，在同一会话内唯一，决定对话顺序。
type Turn struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID    string    `gorm:"type:char(36);not null;uniqueIndex:idx_session_seq" json:"-"`
	Seq          int       `gorm:"not null;uniqueIndex:idx_session_seq" json:"-"`
	Role         TurnRole  `gorm:"type:varchar(16);not null" json:"role"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	SubmissionID string    `gorm:"type:varchar(64)" json:"-"`
	Timestamp    time.Time `gorm:"not null" json:"timestamp"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Turn) TableName() string {
	return "interview_turns"
}
