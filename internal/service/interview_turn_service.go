package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"careercoach-go/internal/model"
	"careercoach-go/internal/repository"
	"careercoach-go/pkg/llm"
	"careercoach-go/pkg/log"
	"careercoach-go/pkg/tasks"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TurnRequest 是客户端提交的一次回答。
// SubmissionID 可选，用于在失败重试时识别同一次提交。
type TurnRequest struct {
	SessionID    string
	Transcript   string
	SubmissionID string
}

// ArchivePublisher 在会话结束后投递归档任务。
type ArchivePublisher interface {
	PublishArchive(ctx context.Context, task tasks.InterviewArchiveTask) error
}

// InterviewTurnService 编排一轮面试对话：用户回答 -> 模型 -> 校验 -> 语音。
type InterviewTurnService interface {
	ProcessTurn(ctx context.Context, ownerID uint, req TurnRequest) (*model.TurnResult, error)
}

type interviewTurnService struct {
	repo       repository.InterviewRepository
	guard      TurnGuard
	prompts    *PromptBuilder
	completion llm.Client
	validator  *ContractValidator
	speech     SpeechSynthesizer
	publisher  ArchivePublisher
	now        func() time.Time
}

// NewInterviewTurnService 创建轮次编排服务。publisher 可以为 nil。
func NewInterviewTurnService(
	repo repository.InterviewRepository,
	guard TurnGuard,
	prompts *PromptBuilder,
	completion llm.Client,
	validator *ContractValidator,
	speech SpeechSynthesizer,
	publisher ArchivePublisher,
) InterviewTurnService {
	return &interviewTurnService{
		repo:       repo,
		guard:      guard,
		prompts:    prompts,
		completion: completion,
		validator:  validator,
		speech:     speech,
		publisher:  publisher,
		now:        time.Now,
	}
}

// ProcessTurn 处理一次用户回答。
// 用户轮次在调用模型之前就已持久化；之后的任何失败都不会回滚它，并以 ErrUpstream 返回。
func (s *interviewTurnService) ProcessTurn(ctx context.Context, ownerID uint, req TurnRequest) (*model.TurnResult, error) {
	ctx, span := otel.Tracer("service/ProcessTurn").Start(ctx, "ProcessTurn")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", req.SessionID))

	transcript := strings.TrimSpace(req.Transcript)
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrMissingSessionID
	}
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}

	release, ok, err := s.guard.TryAcquire(ctx, req.SessionID)
	if err != nil {
		return nil, recordSpanError(span, fmt.Errorf("failed to acquire turn guard: %w", err))
	}
	if !ok {
		return nil, ErrTurnInProgress
	}
	defer release()

	session, err := s.repo.FindByOwner(ctx, req.SessionID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrInterviewNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, recordSpanError(span, fmt.Errorf("failed to load interview: %w", err))
	}
	if session.Status != model.StatusPending {
		return nil, ErrInterviewClosed
	}

	if isDanglingUserTurn(session, transcript, req.SubmissionID) {
		log.Infow("续跑上次未完成的轮次，不重复写入用户回答", "interviewId", session.ID, "turns", len(session.Conversation))
	} else {
		session, err = s.repo.AppendTurn(ctx, session.ID, model.Turn{
			Role:         model.TurnRoleUser,
			Content:      transcript,
			SubmissionID: req.SubmissionID,
			Timestamp:    s.nextTimestamp(session),
		})
		if err != nil {
			return nil, recordSpanError(span, fmt.Errorf("failed to persist user turn: %w", err))
		}
	}

	prompt, allowed := s.prompts.BuildTurnPrompt(TurnPromptInput{
		JobRole:    session.JobRole,
		Difficulty: session.Difficulty,
		Skills:     session.Skills,
		Notes:      session.Notes,
	})

	raw, err := s.completion.Complete(ctx, toMessages(session.Conversation), prompt, nil, false)
	if err != nil {
		log.Errorw("模型调用失败，用户回答已保留", "interviewId", session.ID, "error", err)
		return nil, recordSpanError(span, fmt.Errorf("%w: completion: %w", ErrUpstream, err))
	}

	result := s.validator.Validate(raw, allowed)
	span.SetAttributes(attribute.String("contract.outcome", string(result.Outcome)))
	if !result.Honored() {
		log.Warnw("模型输出未遵守契约，使用兜底结果", "interviewId", session.ID, "rawLength", len(raw))
	}

	audio := s.speech.Synthesize(ctx, result.Contract.Statement)

	session, err = s.repo.AppendTurn(ctx, session.ID, model.Turn{
		Role:      model.TurnRoleAssistant,
		Content:   result.Contract.Statement,
		Timestamp: s.nextTimestamp(session),
	})
	if err != nil {
		return nil, recordSpanError(span, fmt.Errorf("%w: persist assistant turn: %w", ErrUpstream, err))
	}

	if result.Contract.IsCompleted {
		if err := s.repo.SetStatus(ctx, session.ID, model.StatusCompleted); err != nil {
			return nil, recordSpanError(span, fmt.Errorf("%w: mark completed: %w", ErrUpstream, err))
		}
		session.Status = model.StatusCompleted
		s.publishArchive(ctx, session)
	}

	log.Infow("面试轮次处理完成",
		"interviewId", session.ID,
		"turns", len(session.Conversation),
		"contract", result.Outcome,
		"hasAudio", audio != nil,
		"completed", result.Contract.IsCompleted,
	)

	return &model.TurnResult{
		Contract:     result.Contract,
		Outcome:      result.Outcome,
		Audio:        audio,
		Conversation: session.Conversation,
	}, nil
}

// nextTimestamp 保证同一会话内的时间戳单调不减。
func (s *interviewTurnService) nextTimestamp(session *model.InterviewSession) time.Time {
	now := s.now()
	if last := session.LastTurn(); last != nil && now.Before(last.Timestamp) {
		return last.Timestamp
	}
	return now
}

func (s *interviewTurnService) publishArchive(ctx context.Context, session *model.InterviewSession) {
	if s.publisher == nil {
		return
	}
	task := tasks.InterviewArchiveTask{
		SessionID:   session.ID,
		OwnerID:     session.OwnerID,
		CompletedAt: s.now(),
	}
	if err := s.publisher.PublishArchive(ctx, task); err != nil {
		log.Errorw("投递归档任务失败", "interviewId", session.ID, "error", err)
	}
}

// isDanglingUserTurn 判断最后一条已持久化的对话是否是上次失败尝试留下的同一回答。
func isDanglingUserTurn(session *model.InterviewSession, transcript, submissionID string) bool {
	last := session.LastTurn()
	if last == nil || last.Role != model.TurnRoleUser {
		return false
	}
	if submissionID != "" {
		return last.SubmissionID == submissionID
	}
	return last.Content == transcript
}

func toMessages(turns []model.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return messages
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
