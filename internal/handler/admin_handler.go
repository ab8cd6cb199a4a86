package handler

import (
	"net/http"
	"strconv"

	"careercoach-go/internal/service"
	"careercoach-go/pkg/log"
	"careercoach-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	return page, size
}

// ListUsers 处理分页获取用户列表的请求。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, size := pageParams(c)
	userList, err := h.adminService.ListUsers(page, size)
	if err != nil {
		log.Error("ListUsers: Failed to list users", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取用户列表失败", "data": nil})
		return
	}
	respondOK(c, userList)
}

// ListInterviews 分页查看所有用户的面试会话。
func (h *AdminHandler) ListInterviews(c *gin.Context) {
	page, size := pageParams(c)
	list, err := h.adminService.ListInterviews(c.Request.Context(), page, size)
	if err != nil {
		log.Error("ListInterviews: Failed to list interviews", err)
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

// CancelInterview 以管理员身份取消一个进行中的面试。
func (h *AdminHandler) CancelInterview(c *gin.Context) {
	session, err := h.adminService.CancelInterview(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if claimsValue, ok := c.Get("claims"); ok {
		if claims, ok := claimsValue.(*token.CustomClaims); ok {
			log.Infof("Admin user '%s' canceled interview %s", claims.Username, session.ID)
		}
	}
	respondOK(c, session)
}
