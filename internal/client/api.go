// Package client 是模拟面试服务的命令行客户端：HTTP API 封装与面试回合状态机。
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError 是服务端返回的非 2xx 响应。
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Retryable 报告这次提交是否值得用同一回答重试。
func (e *APIError) Retryable() bool {
	return e.Code == "conversation_failed" || e.Code == "turn_in_progress" || e.Status >= http.StatusInternalServerError
}

// Closed 报告会话是否已不再接受回答。
func (e *APIError) Closed() bool {
	return e.Code == "interview_closed"
}

// Turn 是会话中的一条对话。
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Interview 是客户端关心的会话字段。
type Interview struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	JobRole      string   `json:"jobRole"`
	Difficulty   string   `json:"difficulty"`
	Skills       []string `json:"skills"`
	Status       string   `json:"status"`
	Conversation []Turn   `json:"conversation"`
}

// CreateInterview 是创建会话的请求体。
type CreateInterview struct {
	Title      string   `json:"title"`
	JobRole    string   `json:"jobRole"`
	Difficulty string   `json:"difficulty"`
	Skills     []string `json:"skills,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// TurnReply 是一轮对话的结果。Audio 为 nil 表示本轮没有语音。
type TurnReply struct {
	AssistantStatement string `json:"assistantStatement"`
	AnimationTag       string `json:"animationTag"`
	IsCompleted        bool   `json:"isCompleted"`
	ContractHonored    bool   `json:"contractHonored"`
	AudioBase64        string `json:"audioBase64,omitempty"`
	Conversation       []Turn `json:"conversation"`

	Audio []byte `json:"-"`
}

type envelope struct {
	Code      int             `json:"code"`
	ErrorCode string          `json:"errorCode"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

// API 封装了面试服务的 REST 接口。
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPI 创建一个 API 客户端。baseURL 形如 http://localhost:8081。
func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken 设置后续请求使用的 access token。
func (a *API) SetToken(token string) {
	a.token = token
}

// Login 登录并保存 access token。
func (a *API) Login(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/v1/users/login", map[string]string{"username": username, "password": password}, &out); err != nil {
		return err
	}
	a.token = out.Token
	return nil
}

// CreateInterview 创建一场新的模拟面试。
func (a *API) CreateInterview(ctx context.Context, req CreateInterview) (*Interview, error) {
	var out Interview
	if err := a.do(ctx, http.MethodPost, "/api/v1/interviews", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetInterview 读取会话及其对话记录。
func (a *API) GetInterview(ctx context.Context, id string) (*Interview, error) {
	var out Interview
	if err := a.do(ctx, http.MethodGet, "/api/v1/interviews/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListInterviews 列出当前用户的会话。
func (a *API) ListInterviews(ctx context.Context) ([]Interview, error) {
	var out []Interview
	if err := a.do(ctx, http.MethodGet, "/api/v1/interviews", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitTurn 提交一次回答。
func (a *API) SubmitTurn(ctx context.Context, sessionID, transcript, submissionID string) (*TurnReply, error) {
	body := map[string]string{"sessionId": sessionID, "transcript": transcript}
	if submissionID != "" {
		body["submissionId"] = submissionID
	}
	var out TurnReply
	if err := a.do(ctx, http.MethodPost, "/api/v1/interviews/conversation", body, &out); err != nil {
		return nil, err
	}
	if out.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(out.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("decode audio: %w", err)
		}
		out.Audio = audio
	}
	return &out, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Code: env.ErrorCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
