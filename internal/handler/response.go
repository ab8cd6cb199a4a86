// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"careercoach-go/internal/model"
	"careercoach-go/internal/service"
	"careercoach-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// 对外暴露的错误码，客户端据此区分可重试与不可重试的失败。
const (
	codeInvalidRequest     = "invalid_request"
	codeUnauthorized       = "unauthorized"
	codeNotFound           = "not_found"
	codeInterviewNotFound  = "interview_not_found"
	codeTurnInProgress     = "turn_in_progress"
	codeInterviewClosed    = "interview_closed"
	codeNotArchived        = "interview_not_archived"
	codeConversationFailed = "conversation_failed"
	codeInvalidAIJSON      = "invalid_ai_json"
	codeInternal           = "internal_error"
)

type errorMapping struct {
	status  int
	code    string
	message string
}

// mapError 把业务错误映射为 HTTP 状态码与错误码，不认识的错误一律视为 500。
func mapError(err error) errorMapping {
	switch {
	case errors.Is(err, service.ErrEmptyTranscript),
		errors.Is(err, service.ErrMissingSessionID),
		errors.Is(err, service.ErrInvalidInterview):
		return errorMapping{http.StatusBadRequest, codeInvalidRequest, err.Error()}
	case errors.Is(err, service.ErrInterviewNotFound):
		return errorMapping{http.StatusNotFound, codeInterviewNotFound, "面试会话不存在"}
	case errors.Is(err, service.ErrRoadmapNotFound):
		return errorMapping{http.StatusNotFound, codeNotFound, "路线图不存在"}
	case errors.Is(err, service.ErrTurnInProgress):
		return errorMapping{http.StatusConflict, codeTurnInProgress, "上一轮回答仍在处理中"}
	case errors.Is(err, service.ErrInterviewClosed):
		return errorMapping{http.StatusConflict, codeInterviewClosed, "面试已结束"}
	case errors.Is(err, service.ErrNotArchived):
		return errorMapping{http.StatusConflict, codeNotArchived, "面试尚未归档"}
	case errors.Is(err, service.ErrInvalidRoadmap):
		return errorMapping{http.StatusBadRequest, codeInvalidAIJSON, "AI 返回的路线图格式无效"}
	case errors.Is(err, service.ErrUpstream):
		return errorMapping{http.StatusBadGateway, codeConversationFailed, "AI 服务暂时不可用，请稍后重试"}
	case errors.Is(err, service.ErrUnauthorized):
		return errorMapping{http.StatusUnauthorized, codeUnauthorized, "无效的凭证"}
	default:
		return errorMapping{http.StatusInternalServerError, codeInternal, "服务器内部错误"}
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func respondError(c *gin.Context, err error) {
	m := mapError(err)
	if m.status >= http.StatusInternalServerError {
		log.Errorw("请求处理失败", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(m.status, gin.H{"code": m.status, "errorCode": m.code, "message": m.message, "data": nil})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "errorCode": codeInvalidRequest, "message": message, "data": nil})
}

// currentUser 取出 AuthMiddleware 注入的用户。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

func mustUser(c *gin.Context) (*model.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "errorCode": codeUnauthorized, "message": "未认证用户或无法获取用户信息", "data": nil})
	}
	return user, ok
}
