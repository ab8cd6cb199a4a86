package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"careercoach-go/internal/model"
	"careercoach-go/internal/repository"
	"careercoach-go/pkg/llm"
	"careercoach-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner     uint = 7
	testSessionID      = "3f1c6a52-0000-4000-8000-000000000001"
)

type fakeCompletion struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]llm.Message
	prompts []string
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeCompletion) Complete(_ context.Context, history []llm.Message, systemPrompt string, attachment *llm.Attachment, strict bool) (string, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, append([]llm.Message(nil), history...))
	f.prompts = append(f.prompts, systemPrompt)
	f.mu.Unlock()

	if attachment != nil || strict {
		return "", errors.New("turn loop must call permissive mode without attachment")
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return `{"statement":"Next question.","animationToPlay":"idle","isCompleted":false}`, nil
}

func (f *fakeCompletion) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSpeech struct {
	audio []byte
	texts []string
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) []byte {
	f.texts = append(f.texts, text)
	return f.audio
}

type fakePublisher struct {
	mu    sync.Mutex
	tasks []tasks.InterviewArchiveTask
}

func (f *fakePublisher) PublishArchive(_ context.Context, task tasks.InterviewArchiveTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

type turnFixture struct {
	repo       *repository.MemoryInterviewRepository
	completion *fakeCompletion
	speech     *fakeSpeech
	publisher  *fakePublisher
	svc        *interviewTurnService
	clock      time.Time
}

func newTurnFixture(t *testing.T) *turnFixture {
	t.Helper()
	repo := repository.NewMemoryInterviewRepository()
	require.NoError(t, repo.Create(context.Background(), &model.InterviewSession{
		ID:         testSessionID,
		OwnerID:    testOwner,
		Title:      "Frontend mock",
		JobRole:    "Frontend Developer",
		Difficulty: model.DifficultyIntermediate,
		Skills:     []string{"React", "CSS"},
		Status:     model.StatusPending,
	}))

	f := &turnFixture{
		repo:       repo,
		completion: &fakeCompletion{},
		speech:     &fakeSpeech{audio: []byte("mp3-bytes")},
		publisher:  &fakePublisher{},
		clock:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	svc := NewInterviewTurnService(repo, NewLocalTurnGuard(), NewPromptBuilder(rand.NewSource(1)),
		f.completion, NewContractValidator(""), f.speech, f.publisher).(*interviewTurnService)
	svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	f.svc = svc
	return f
}

func (f *turnFixture) submit(transcript string) (*model.TurnResult, error) {
	return f.svc.ProcessTurn(context.Background(), testOwner, TurnRequest{SessionID: testSessionID, Transcript: transcript})
}

func (f *turnFixture) stored(t *testing.T) *model.InterviewSession {
	t.Helper()
	s, err := f.repo.FindByID(context.Background(), testSessionID)
	require.NoError(t, err)
	return s
}

func TestProcessTurn_FirstTurn(t *testing.T) {
	f := newTurnFixture(t)
	f.completion.replies = []string{`{"statement":"Welcome. Tell me about yourself.","animationToPlay":"idle","isCompleted":false}`}

	res, err := f.submit("Hi, I'm ready.")
	require.NoError(t, err)

	assert.Equal(t, model.ContractHonored, res.Outcome)
	assert.Equal(t, "Welcome. Tell me about yourself.", res.Contract.Statement)
	assert.Equal(t, "idle", res.Contract.AnimationToPlay)
	assert.Equal(t, []byte("mp3-bytes"), res.Audio)
	require.Len(t, res.Conversation, 2)
	assert.Equal(t, model.TurnRoleUser, res.Conversation[0].Role)
	assert.Equal(t, "Hi, I'm ready.", res.Conversation[0].Content)
	assert.Equal(t, model.TurnRoleAssistant, res.Conversation[1].Role)
	assert.Equal(t, "Welcome. Tell me about yourself.", res.Conversation[1].Content)

	assert.Equal(t, model.StatusPending, f.stored(t).Status)
	require.Len(t, f.completion.calls, 1)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "Hi, I'm ready."}}, f.completion.calls[0])
	assert.Contains(t, f.completion.prompts[0], `"Frontend Developer"`)
	assert.Contains(t, f.completion.prompts[0], `"intermediate"`)
	assert.Equal(t, []string{"Welcome. Tell me about yourself."}, f.speech.texts)
}

func TestProcessTurn_MalformedOutputFallsBack(t *testing.T) {
	f := newTurnFixture(t)
	raw := "Sure! Here's my question: what is a closure?"
	f.completion.replies = []string{raw}

	res, err := f.submit("I'm ready")
	require.NoError(t, err)

	assert.Equal(t, model.ContractFallback, res.Outcome)
	assert.Equal(t, model.ModelContract{Statement: raw, AnimationToPlay: NeutralAnimation, IsCompleted: false}, res.Contract)
	assert.Equal(t, raw, res.Conversation[1].Content)
	assert.Equal(t, model.StatusPending, f.stored(t).Status)
}

func TestProcessTurn_CompletionClosesSession(t *testing.T) {
	f := newTurnFixture(t)
	f.completion.replies = []string{`{"statement":"Thanks, that concludes our interview.","animationToPlay":"clap","isCompleted":true}`}

	res, err := f.submit("That's all from me.")
	require.NoError(t, err)
	assert.True(t, res.Contract.IsCompleted)
	assert.Equal(t, model.StatusCompleted, f.stored(t).Status)

	require.Len(t, f.publisher.tasks, 1)
	assert.Equal(t, testSessionID, f.publisher.tasks[0].SessionID)
	assert.Equal(t, testOwner, f.publisher.tasks[0].OwnerID)

	_, err = f.submit("One more thing")
	assert.ErrorIs(t, err, ErrInterviewClosed)
	assert.Len(t, f.stored(t).Conversation, 2)
	assert.Equal(t, 1, f.completion.callCount())
}

func TestProcessTurn_ProviderFailureKeepsUserTurn(t *testing.T) {
	f := newTurnFixture(t)
	f.completion.errs = []error{&llm.ProviderError{StatusCode: 503}}

	_, err := f.submit("My answer is X")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	var perr *llm.ProviderError
	assert.True(t, errors.As(err, &perr))

	stored := f.stored(t)
	require.Len(t, stored.Conversation, 1)
	assert.Equal(t, model.TurnRoleUser, stored.Conversation[0].Role)
	assert.Equal(t, "My answer is X", stored.Conversation[0].Content)
	assert.Equal(t, model.StatusPending, stored.Status)

	// 重试同一回答时不会重复写入用户轮次
	res, err := f.submit("My answer is X")
	require.NoError(t, err)
	require.Len(t, res.Conversation, 2)
	assert.Equal(t, model.TurnRoleUser, res.Conversation[0].Role)
	assert.Equal(t, model.TurnRoleAssistant, res.Conversation[1].Role)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "My answer is X"}}, f.completion.calls[1])
}

func TestProcessTurn_SubmissionIDDecidesResume(t *testing.T) {
	f := newTurnFixture(t)
	f.completion.errs = []error{errors.New("timeout")}
	ctx := context.Background()

	_, err := f.svc.ProcessTurn(ctx, testOwner, TurnRequest{SessionID: testSessionID, Transcript: "yes", SubmissionID: "sub-1"})
	require.ErrorIs(t, err, ErrUpstream)

	res, err := f.svc.ProcessTurn(ctx, testOwner, TurnRequest{SessionID: testSessionID, Transcript: "yes", SubmissionID: "sub-1"})
	require.NoError(t, err)
	assert.Len(t, res.Conversation, 2)
}

func TestProcessTurn_SilentTurnWhenSpeechFails(t *testing.T) {
	f := newTurnFixture(t)
	f.speech.audio = nil

	res, err := f.submit("hello")
	require.NoError(t, err)
	assert.Nil(t, res.Audio)
	assert.Len(t, res.Conversation, 2)
}

func TestProcessTurn_RejectsBeforeTouchingState(t *testing.T) {
	tests := []struct {
		name    string
		owner   uint
		req     TurnRequest
		wantErr error
	}{
		{name: "blank transcript", owner: testOwner, req: TurnRequest{SessionID: testSessionID, Transcript: "  \n "}, wantErr: ErrEmptyTranscript},
		{name: "missing session id", owner: testOwner, req: TurnRequest{Transcript: "hi"}, wantErr: ErrMissingSessionID},
		{name: "unknown session", owner: testOwner, req: TurnRequest{SessionID: "nope", Transcript: "hi"}, wantErr: ErrInterviewNotFound},
		{name: "foreign owner masked as not found", owner: 99, req: TurnRequest{SessionID: testSessionID, Transcript: "hi"}, wantErr: ErrInterviewNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTurnFixture(t)
			_, err := f.svc.ProcessTurn(context.Background(), tt.owner, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.stored(t).Conversation)
			assert.Zero(t, f.completion.callCount())
		})
	}
}

func TestProcessTurn_ConcurrentSubmissions(t *testing.T) {
	f := newTurnFixture(t)
	f.completion.entered = make(chan struct{}, 1)
	f.completion.block = make(chan struct{})

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.submit("first answer")
	}()

	<-f.completion.entered
	_, err := f.submit("second answer")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	close(f.completion.block)
	wg.Wait()
	require.NoError(t, firstErr)

	conv := f.stored(t).Conversation
	require.Len(t, conv, 2)
	assert.Equal(t, "first answer", conv[0].Content)
	assert.Equal(t, model.TurnRoleAssistant, conv[1].Role)
}

func TestProcessTurn_RoundTripAlternates(t *testing.T) {
	f := newTurnFixture(t)
	const n = 5
	for i := 0; i < n; i++ {
		f.completion.replies = append(f.completion.replies,
			fmt.Sprintf(`{"statement":"question %d","animationToPlay":"idle","isCompleted":false}`, i))
	}

	for i := 0; i < n; i++ {
		_, err := f.submit(fmt.Sprintf("answer %d", i))
		require.NoError(t, err)
	}

	conv := f.stored(t).Conversation
	require.Len(t, conv, 2*n)
	for i, turn := range conv {
		if i%2 == 0 {
			assert.Equal(t, model.TurnRoleUser, turn.Role)
			assert.Equal(t, fmt.Sprintf("answer %d", i/2), turn.Content)
		} else {
			assert.Equal(t, model.TurnRoleAssistant, turn.Role)
			assert.Equal(t, fmt.Sprintf("question %d", i/2), turn.Content)
		}
		if i > 0 {
			assert.False(t, turn.Timestamp.Before(conv[i-1].Timestamp))
		}
	}
	// 每次调用模型时都带上完整历史
	assert.Len(t, f.completion.calls[n-1], 2*n-1)
}

func TestProcessTurn_TimestampsNeverGoBackwards(t *testing.T) {
	f := newTurnFixture(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	f.svc.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(-time.Hour)
	}

	res, err := f.submit("hi")
	require.NoError(t, err)
	assert.Equal(t, base, res.Conversation[0].Timestamp)
	assert.Equal(t, base, res.Conversation[1].Timestamp)
}
