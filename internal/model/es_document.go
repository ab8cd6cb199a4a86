package model

import "time"

// InterviewDocument 是写入 Elasticsearch 的面试记录文档。
type InterviewDocument struct {
	SessionID   string    `json:"session_id"`
	OwnerID     uint      `json:"owner_id"`
	Title       string    `json:"title"`
	JobRole     string    `json:"job_role"`
	Difficulty  string    `json:"difficulty"`
	Skills      []string  `json:"skills"`
	Transcript  string    `json:"transcript"`
	TurnCount   int       `json:"turn_count"`
	ArchiveKey  string    `json:"archive_key"`
	CompletedAt time.Time `json:"completed_at"`
}

// InterviewSearchHit 是返回给前端的搜索结果。
type InterviewSearchHit struct {
	SessionID   string    `json:"sessionId"`
	Title       string    `json:"title"`
	JobRole     string    `json:"jobRole"`
	Difficulty  string    `json:"difficulty"`
	Skills      []string  `json:"skills"`
	Highlight   string    `json:"highlight"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}
