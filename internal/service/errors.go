// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"

	"careercoach-go/internal/repository"
)

var (
	// 输入错误，在修改任何状态之前返回。
	ErrEmptyTranscript  = errors.New("transcript must not be empty")
	ErrMissingSessionID = errors.New("session id must not be empty")
	ErrInvalidInterview = errors.New("invalid interview configuration")

	// ErrInterviewNotFound 同时覆盖“不存在”和“不属于当前用户”。
	ErrInterviewNotFound = repository.ErrInterviewNotFound

	ErrTurnInProgress  = errors.New("a turn is already being processed for this interview")
	ErrInterviewClosed = errors.New("interview is no longer accepting answers")
	ErrNotArchived     = errors.New("interview transcript has not been archived")

	// ErrUpstream 包装模型服务或存储在用户轮次写入之后发生的失败。
	ErrUpstream = errors.New("upstream failure while processing turn")

	ErrInvalidRoadmap  = errors.New("model did not return a valid roadmap")
	ErrRoadmapNotFound = errors.New("roadmap not found")
	ErrUnauthorized    = errors.New("invalid credentials")
)
