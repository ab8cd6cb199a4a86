package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_SubmitTurn(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/interviews/conversation", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"code":200,"message":"success","data":{"assistantStatement":"Hi","animationTag":"idle","isCompleted":false,"contractHonored":true,"audioBase64":"AQID","conversation":[]}}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, time.Second)
	api.SetToken("tok")
	reply, err := api.SubmitTurn(context.Background(), "s-1", "hello", "sub-9")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"sessionId": "s-1", "transcript": "hello", "submissionId": "sub-9"}, got)
	assert.Equal(t, "Hi", reply.AssistantStatement)
	assert.Equal(t, []byte{1, 2, 3}, reply.Audio)
}

func TestAPI_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":409,"errorCode":"turn_in_progress","message":"busy","data":null}`))
	}))
	defer srv.Close()

	_, err := NewAPI(srv.URL, time.Second).SubmitTurn(context.Background(), "s-1", "hello", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "turn_in_progress", apiErr.Code)
	assert.True(t, apiErr.Retryable())
	assert.False(t, apiErr.Closed())
}
