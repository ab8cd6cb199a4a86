package client

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State 是面试回合状态机的状态。
type State int

const (
	StateIdle State = iota
	StateListening
	StateSubmitting
	StatePlaying
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateSubmitting:
		return "submitting"
	case StatePlaying:
		return "playing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// DefaultGrace 是没有语音或提交失败后，重新开始聆听前的等待时间。
const DefaultGrace = 2 * time.Second

// Listener 产出用户的下一句回答。返回 io.EOF 表示用户结束输入。
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Submitter 把回答交给服务端。
type Submitter interface {
	SubmitTurn(ctx context.Context, sessionID, transcript, submissionID string) (*TurnReply, error)
}

// Player 播放一段音频，播放结束后返回。
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Hooks 让调用方观察状态机，全部可选。
type Hooks struct {
	OnTransition func(from, to State)
	OnReply      func(reply *TurnReply)
	OnError      func(err error)
}

// Loop 驱动一场面试：聆听 -> 提交 -> 播放 -> 聆听，直到面试结束。
// 所有计时都经过 After，ctx 取消时挂起的计时会立即放弃。
type Loop struct {
	SessionID string
	Listener  Listener
	Submitter Submitter
	Player    Player
	Hooks     Hooks
	Grace     time.Duration
	After     func(time.Duration) <-chan time.Time
	NewID     func() string

	state State
	// 上次失败的提交，同一回答重试时沿用其 submissionId
	pendingText string
	pendingID   string
}

// State 返回当前状态。
func (l *Loop) State() State {
	return l.state
}

func (l *Loop) transition(to State) {
	from := l.state
	l.state = to
	if l.Hooks.OnTransition != nil && from != to {
		l.Hooks.OnTransition(from, to)
	}
}

func (l *Loop) reportError(err error) {
	if l.Hooks.OnError != nil {
		l.Hooks.OnError(err)
	}
}

// wait 等待宽限期，ctx 取消时返回其错误。
func (l *Loop) wait(ctx context.Context) error {
	grace := l.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	after := l.After
	if after == nil {
		after = time.After
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(grace):
		return nil
	}
}

func (l *Loop) submissionID(transcript string) string {
	if l.pendingID != "" && l.pendingText == transcript {
		return l.pendingID
	}
	newID := l.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return newID()
}

// Run 运行状态机直到面试结束、输入结束或 ctx 被取消。
// 面试正常结束或输入结束时返回 nil；服务端返回不可重试的错误时返回该错误。
// 网络错误与可重试的服务端错误在宽限期后继续聆听。
func (l *Loop) Run(ctx context.Context) error {
	l.transition(StateIdle)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.transition(StateListening)
		transcript, err := l.Listener.Listen(ctx)
		if errors.Is(err, io.EOF) {
			l.transition(StateIdle)
			return nil
		}
		if err != nil {
			return err
		}
		transcript = strings.TrimSpace(transcript)
		if transcript == "" {
			continue
		}

		l.transition(StateSubmitting)
		id := l.submissionID(transcript)
		reply, err := l.Submitter.SubmitTurn(ctx, l.SessionID, transcript, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.reportError(err)
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				if apiErr.Closed() {
					l.transition(StateCompleted)
					return nil
				}
				// 会话不存在或请求本身无效时重试不会成功
				if !apiErr.Retryable() {
					l.transition(StateIdle)
					return err
				}
			}
			l.pendingText, l.pendingID = transcript, id
			l.transition(StateIdle)
			if err := l.wait(ctx); err != nil {
				return err
			}
			continue
		}
		l.pendingText, l.pendingID = "", ""

		if l.Hooks.OnReply != nil {
			l.Hooks.OnReply(reply)
		}

		if reply.Audio != nil && l.Player != nil {
			l.transition(StatePlaying)
			if err := l.Player.Play(ctx, reply.Audio); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				l.reportError(err)
				if err := l.wait(ctx); err != nil {
					return err
				}
			}
		} else if !reply.IsCompleted {
			// 没有语音时等待一个宽限期再聆听，让用户读完文字
			l.transition(StateIdle)
			if err := l.wait(ctx); err != nil {
				return err
			}
		}

		if reply.IsCompleted {
			l.transition(StateCompleted)
			return nil
		}
		l.transition(StateIdle)
	}
}
