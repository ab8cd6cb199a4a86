package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"careercoach-go/internal/repository"
	"careercoach-go/internal/service"
	"careercoach-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// wsMessage 是服务端推送给客户端的消息。
type wsMessage struct {
	Type      string      `json:"type"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// InterviewWSHandler 通过 WebSocket 承载面试轮次，每条客户端消息是一次回答。
type InterviewWSHandler struct {
	turns       service.InterviewTurnService
	userService service.UserService
	tickets     repository.WSTicketRepository
}

// NewInterviewWSHandler 创建一个新的 InterviewWSHandler。
func NewInterviewWSHandler(turns service.InterviewTurnService, userService service.UserService, tickets repository.WSTicketRepository) *InterviewWSHandler {
	return &InterviewWSHandler{turns: turns, userService: userService, tickets: tickets}
}

// IssueTicket 为当前用户签发一次性的连接票据。
func (h *InterviewWSHandler) IssueTicket(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	ticket, err := h.tickets.Issue(c.Request.Context(), user.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"ticket": ticket})
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *InterviewWSHandler) Handle(c *gin.Context) {
	username, err := h.tickets.Redeem(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "errorCode": codeUnauthorized, "message": "无效的票据", "data": nil})
			return
		}
		respondError(c, err)
		return
	}
	user, err := h.userService.GetProfile(username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "errorCode": codeUnauthorized, "message": "用户不存在", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", user.Username)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var req TurnRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			h.write(conn, wsMessage{Type: "error", ErrorCode: codeInvalidRequest, Message: "消息必须是 JSON 对象"})
			continue
		}

		res, err := h.turns.ProcessTurn(c.Request.Context(), user.ID, service.TurnRequest{
			SessionID:    req.SessionID,
			Transcript:   req.Transcript,
			SubmissionID: req.SubmissionID,
		})
		if err != nil {
			m := mapError(err)
			if m.status >= http.StatusInternalServerError {
				log.Errorw("WebSocket 轮次处理失败", "interviewId", req.SessionID, "error", err)
			}
			h.write(conn, wsMessage{Type: "error", ErrorCode: m.code, Message: m.message})
			continue
		}

		h.write(conn, wsMessage{Type: "turn", Data: NewTurnResponse(res)})
		if res.Contract.IsCompleted {
			h.write(conn, wsMessage{Type: "completion", Message: "面试已结束"})
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview completed"))
			return
		}
	}
}

func (h *InterviewWSHandler) write(conn *websocket.Conn, msg wsMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	b, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("序列化 WebSocket 消息失败: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 消息失败: %v", err)
	}
}
