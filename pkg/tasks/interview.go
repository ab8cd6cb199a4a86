// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// InterviewArchiveTask is published once an interview session reaches completed.
// The consumer archives the transcript and indexes it for search.
type InterviewArchiveTask struct {
	SessionID   string    `json:"session_id"`
	OwnerID     uint      `json:"owner_id"`
	CompletedAt time.Time `json:"completed_at"`
}
