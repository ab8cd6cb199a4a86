package handler

import (
	"encoding/base64"

	"careercoach-go/internal/model"
	"careercoach-go/internal/service"
	"careercoach-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// InterviewHandler 负责模拟面试会话的 API 请求。
type InterviewHandler struct {
	interviews service.InterviewService
	turns      service.InterviewTurnService
	archives   service.ArchiveService
}

// NewInterviewHandler 创建一个新的 InterviewHandler 实例。
func NewInterviewHandler(interviews service.InterviewService, turns service.InterviewTurnService, archives service.ArchiveService) *InterviewHandler {
	return &InterviewHandler{interviews: interviews, turns: turns, archives: archives}
}

// CreateInterviewRequest 定义了创建面试 API 的请求体结构。
type CreateInterviewRequest struct {
	Title      string   `json:"title" binding:"required"`
	JobRole    string   `json:"jobRole" binding:"required"`
	Difficulty string   `json:"difficulty" binding:"required"`
	Skills     []string `json:"skills"`
	Notes      string   `json:"notes"`
}

// TurnRequest 是提交一次回答的请求体。
type TurnRequest struct {
	SessionID    string `json:"sessionId"`
	Transcript   string `json:"transcript"`
	SubmissionID string `json:"submissionId,omitempty"`
}

// TurnResponse 是一轮对话的返回结构，没有语音时省略 audioBase64。
type TurnResponse struct {
	AssistantStatement string       `json:"assistantStatement"`
	AnimationTag       string       `json:"animationTag"`
	IsCompleted        bool         `json:"isCompleted"`
	ContractHonored    bool         `json:"contractHonored"`
	AudioBase64        string       `json:"audioBase64,omitempty"`
	Conversation       []model.Turn `json:"conversation"`
}

// NewTurnResponse 把轮次结果转换为对外的响应结构。
func NewTurnResponse(res *model.TurnResult) TurnResponse {
	resp := TurnResponse{
		AssistantStatement: res.Contract.Statement,
		AnimationTag:       res.Contract.AnimationToPlay,
		IsCompleted:        res.Contract.IsCompleted,
		ContractHonored:    res.Honored(),
		Conversation:       res.Conversation,
	}
	if res.Audio != nil {
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(res.Audio)
	}
	return resp
}

// Create 创建一个新的面试会话。
func (h *InterviewHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req CreateInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateInterview: Invalid request payload, error: %v", err)
		respondBadRequest(c, "无效的请求负载：title、jobRole、difficulty 不能为空")
		return
	}

	session, err := h.interviews.Create(c.Request.Context(), user.ID, service.CreateInterviewRequest{
		Title:      req.Title,
		JobRole:    req.JobRole,
		Difficulty: req.Difficulty,
		Skills:     req.Skills,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, session)
}

// List 返回当前用户的所有面试，按创建时间倒序，不包含对话内容。
func (h *InterviewHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	sessions, err := h.interviews.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sessions)
}

// Get 返回单个面试及其完整对话。
func (h *InterviewHandler) Get(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	session, err := h.interviews.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, session)
}

// Cancel 取消一个进行中的面试。
func (h *InterviewHandler) Cancel(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	session, err := h.interviews.Cancel(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("User '%s' canceled interview %s", user.Username, session.ID)
	respondOK(c, session)
}

// Conversation 处理一次回答提交。
func (h *InterviewHandler) Conversation(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Conversation: Invalid request payload, error: %v", err)
		respondBadRequest(c, "无效的请求负载")
		return
	}

	res, err := h.turns.ProcessTurn(c.Request.Context(), user.ID, service.TurnRequest{
		SessionID:    req.SessionID,
		Transcript:   req.Transcript,
		SubmissionID: req.SubmissionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, NewTurnResponse(res))
}

// Archive 返回已结束面试的归档下载链接。
func (h *InterviewHandler) Archive(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	url, err := h.archives.ArchiveURL(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"url": url})
}
