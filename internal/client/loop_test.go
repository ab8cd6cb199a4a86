package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedListener struct {
	lines []string
}

func (s *scriptedListener) Listen(context.Context) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type submission struct {
	transcript string
	id         string
}

type scriptedSubmitter struct {
	replies []*TurnReply
	errs    []error
	calls   []submission
}

func (s *scriptedSubmitter) SubmitTurn(_ context.Context, _ string, transcript, id string) (*TurnReply, error) {
	i := len(s.calls)
	s.calls = append(s.calls, submission{transcript, id})
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return &TurnReply{AssistantStatement: "next"}, nil
}

type recordingPlayer struct {
	played [][]byte
}

func (p *recordingPlayer) Play(_ context.Context, audio []byte) error {
	p.played = append(p.played, audio)
	return nil
}

type fakeClock struct {
	waits []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newLoop(lines []string, sub *scriptedSubmitter) (*Loop, *recordingPlayer, *fakeClock, *[]State) {
	player := &recordingPlayer{}
	clock := &fakeClock{}
	var states []State
	l := &Loop{
		SessionID: "s-1",
		Listener:  &scriptedListener{lines: lines},
		Submitter: sub,
		Player:    player,
		Grace:     2 * time.Second,
		After:     clock.After,
		NewID:     counterIDs(),
		Hooks: Hooks{OnTransition: func(_, to State) {
			states = append(states, to)
		}},
	}
	return l, player, clock, &states
}

func TestLoop_PlaysAudioAndStopsWhenCompleted(t *testing.T) {
	sub := &scriptedSubmitter{replies: []*TurnReply{
		{AssistantStatement: "Welcome", Audio: []byte("a1")},
		{AssistantStatement: "Thanks, we're done", IsCompleted: true},
	}}
	l, player, clock, states := newLoop([]string{"hello", "my answer", "never read"}, sub)

	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, StateCompleted, l.State())
	assert.Equal(t, [][]byte{[]byte("a1")}, player.played)
	assert.Empty(t, clock.waits, "audio turns and the final turn do not wait")
	assert.Len(t, sub.calls, 2)
	assert.Equal(t, []State{
		StateListening, StateSubmitting, StatePlaying, StateIdle,
		StateListening, StateSubmitting, StateCompleted,
	}, *states)
}

func TestLoop_SilentTurnWaitsGrace(t *testing.T) {
	sub := &scriptedSubmitter{replies: []*TurnReply{{AssistantStatement: "no audio"}}}
	l, player, clock, _ := newLoop([]string{"hello"}, sub)

	require.NoError(t, l.Run(context.Background()))

	assert.Empty(t, player.played)
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.waits)
	assert.Equal(t, StateIdle, l.State(), "end of input returns to idle")
}

func TestLoop_RetryReusesSubmissionID(t *testing.T) {
	upstream := &APIError{Status: http.StatusBadGateway, Code: "conversation_failed"}
	sub := &scriptedSubmitter{errs: []error{upstream}}
	l, _, clock, _ := newLoop([]string{"answer A", "answer A", "answer B"}, sub)
	var reported []error
	l.Hooks.OnError = func(err error) { reported = append(reported, err) }

	require.NoError(t, l.Run(context.Background()))

	require.Len(t, sub.calls, 3)
	assert.Equal(t, sub.calls[0].id, sub.calls[1].id, "resubmitting the same answer keeps its id")
	assert.NotEqual(t, sub.calls[1].id, sub.calls[2].id)
	assert.Equal(t, []error{upstream}, reported)
	assert.NotEmpty(t, clock.waits)
	assert.Equal(t, 2*time.Second, clock.waits[0])
}

func TestLoop_ClosedInterviewCompletes(t *testing.T) {
	sub := &scriptedSubmitter{errs: []error{&APIError{Status: http.StatusConflict, Code: "interview_closed"}}}
	l, _, _, _ := newLoop([]string{"hello", "again"}, sub)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, StateCompleted, l.State())
	assert.Len(t, sub.calls, 1)
}

func TestLoop_SkipsBlankInput(t *testing.T) {
	sub := &scriptedSubmitter{}
	l, _, _, _ := newLoop([]string{"   ", "", "real"}, sub)

	require.NoError(t, l.Run(context.Background()))
	require.Len(t, sub.calls, 1)
	assert.Equal(t, "real", sub.calls[0].transcript)
}

func TestLoop_CancelStopsPendingTimer(t *testing.T) {
	sub := &scriptedSubmitter{errs: []error{errors.New("network down")}}
	l, _, _, _ := newLoop([]string{"hello", "again"}, sub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	never := make(chan time.Time)
	l.After = func(time.Duration) <-chan time.Time { return never }
	l.Hooks.OnError = func(error) { cancel() }

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sub.calls, 1)
}

func TestLineListener(t *testing.T) {
	prompts := 0
	l := NewLineListener(strings.NewReader("first\nsecond\n"), func() { prompts++ })
	ctx := context.Background()

	got, err := l.Listen(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", got)
	got, err = l.Listen(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
	_, err = l.Listen(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, prompts)
}

func TestFilePlayer(t *testing.T) {
	dir := t.TempDir()
	var saved []string
	p := NewFilePlayer(dir, func(path string) { saved = append(saved, path) })

	require.NoError(t, p.Play(context.Background(), []byte("one")))
	require.NoError(t, p.Play(context.Background(), []byte("two")))
	require.Len(t, saved, 2)
	assert.True(t, strings.HasSuffix(saved[1], "turn-002.mp3"))
}

func TestLoop_StopsOnNonRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
	}{
		{name: "not found", err: &APIError{Status: http.StatusNotFound, Code: "interview_not_found"}},
		{name: "invalid request", err: &APIError{Status: http.StatusBadRequest, Code: "invalid_request"}},
		{name: "unauthorized", err: &APIError{Status: http.StatusUnauthorized, Code: "unauthorized"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &scriptedSubmitter{errs: []error{tt.err}}
			l, _, clock, _ := newLoop([]string{"hello", "hello", "hello"}, sub)

			err := l.Run(context.Background())

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.err.Code, apiErr.Code)
			assert.Len(t, sub.calls, 1, "a non-retryable error is not resubmitted")
			assert.Empty(t, clock.waits)
			assert.Equal(t, StateIdle, l.State())
		})
	}
}
