package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"careercoach-go/internal/model"
	"careercoach-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTurns struct {
	res    *model.TurnResult
	err    error
	got    service.TurnRequest
	gotUID uint
}

func (s *stubTurns) ProcessTurn(_ context.Context, ownerID uint, req service.TurnRequest) (*model.TurnResult, error) {
	s.got = req
	s.gotUID = ownerID
	return s.res, s.err
}

func newTurnRouter(turns service.InterviewTurnService, user *model.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Set("user", user)
		}
		c.Next()
	})
	h := NewInterviewHandler(nil, turns, nil)
	r.POST("/api/v1/interviews/conversation", h.Conversation)
	return r
}

func postTurn(t *testing.T, r *gin.Engine, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interviews/conversation", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestConversation_Success(t *testing.T) {
	turns := &stubTurns{res: &model.TurnResult{
		Contract: model.ModelContract{Statement: "Welcome.", AnimationToPlay: "idle"},
		Outcome:  model.ContractHonored,
		Audio:    []byte{0x1, 0x2, 0x3},
		Conversation: []model.Turn{
			{Role: model.TurnRoleUser, Content: "hi"},
			{Role: model.TurnRoleAssistant, Content: "Welcome."},
		},
	}}
	r := newTurnRouter(turns, &model.User{ID: 42, Username: "alice"})

	w, out := postTurn(t, r, `{"sessionId":"s-1","transcript":"hi","submissionId":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, uint(42), turns.gotUID)
	assert.Equal(t, service.TurnRequest{SessionID: "s-1", Transcript: "hi", SubmissionID: "abc"}, turns.got)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, "Welcome.", data["assistantStatement"])
	assert.Equal(t, "idle", data["animationTag"])
	assert.Equal(t, false, data["isCompleted"])
	assert.Equal(t, true, data["contractHonored"])
	assert.Equal(t, "AQID", data["audioBase64"])
	assert.Len(t, data["conversation"], 2)
}

func TestConversation_SilentTurnOmitsAudio(t *testing.T) {
	turns := &stubTurns{res: &model.TurnResult{
		Contract: model.ModelContract{Statement: "raw text", AnimationToPlay: "talk"},
		Outcome:  model.ContractFallback,
	}}
	r := newTurnRouter(turns, &model.User{ID: 1})

	w, out := postTurn(t, r, `{"sessionId":"s-1","transcript":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	data := out["data"].(map[string]interface{})
	_, hasAudio := data["audioBase64"]
	assert.False(t, hasAudio)
	assert.Equal(t, false, data["contractHonored"])
}

func TestConversation_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		wantCode string
	}{
		{service.ErrEmptyTranscript, http.StatusBadRequest, codeInvalidRequest},
		{service.ErrMissingSessionID, http.StatusBadRequest, codeInvalidRequest},
		{service.ErrInterviewNotFound, http.StatusNotFound, codeInterviewNotFound},
		{service.ErrTurnInProgress, http.StatusConflict, codeTurnInProgress},
		{service.ErrInterviewClosed, http.StatusConflict, codeInterviewClosed},
		{fmt.Errorf("%w: completion: %w", service.ErrUpstream, fmt.Errorf("503")), http.StatusBadGateway, codeConversationFailed},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			r := newTurnRouter(&stubTurns{err: tt.err}, &model.User{ID: 1})
			w, out := postTurn(t, r, `{"sessionId":"s-1","transcript":"hi"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.wantCode, out["errorCode"])
			assert.Nil(t, out["data"])
		})
	}
}

func TestConversation_RequiresUser(t *testing.T) {
	turns := &stubTurns{}
	r := newTurnRouter(turns, nil)

	w, out := postTurn(t, r, `{"sessionId":"s-1","transcript":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, codeUnauthorized, out["errorCode"])
	assert.Empty(t, turns.got.SessionID)
}

func TestConversation_MalformedBody(t *testing.T) {
	r := newTurnRouter(&stubTurns{}, &model.User{ID: 1})
	w, out := postTurn(t, r, `{"sessionId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeInvalidRequest, out["errorCode"])
}

func TestMapError_Roadmap(t *testing.T) {
	m := mapError(fmt.Errorf("%w: bad", service.ErrInvalidRoadmap))
	assert.Equal(t, http.StatusBadRequest, m.status)
	assert.Equal(t, codeInvalidAIJSON, m.code)

	m = mapError(service.ErrRoadmapNotFound)
	assert.Equal(t, http.StatusNotFound, m.status)
}
