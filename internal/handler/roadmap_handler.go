package handler

import (
	"strconv"

	"careercoach-go/internal/service"
	"careercoach-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// RoadmapHandler 负责学习路线图的生成与查询。
type RoadmapHandler struct {
	roadmaps service.RoadmapService
}

// NewRoadmapHandler 创建一个新的 RoadmapHandler 实例。
func NewRoadmapHandler(roadmaps service.RoadmapService) *RoadmapHandler {
	return &RoadmapHandler{roadmaps: roadmaps}
}

// GenerateRoadmapRequest 定义了生成路线图 API 的请求体结构。
type GenerateRoadmapRequest struct {
	Position string `json:"position" binding:"required"`
	Skills   string `json:"skills"`
	Prompt   string `json:"prompt"`
	Image    string `json:"image"`
}

// Generate 调用模型生成一份路线图并保存。
func (h *RoadmapHandler) Generate(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req GenerateRoadmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("GenerateRoadmap: Invalid request payload, error: %v", err)
		respondBadRequest(c, "无效的请求负载：position 不能为空")
		return
	}

	roadmap, err := h.roadmaps.Generate(c.Request.Context(), user.ID, service.RoadmapRequest{
		Position: req.Position,
		Skills:   req.Skills,
		Prompt:   req.Prompt,
		Image:    req.Image,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, roadmap)
}

// List 返回当前用户的路线图，可按标题关键字过滤。
func (h *RoadmapHandler) List(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	roadmaps, err := h.roadmaps.List(c.Request.Context(), user.ID, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, roadmaps)
}

// Get 返回单个路线图。
func (h *RoadmapHandler) Get(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "无效的路线图 ID")
		return
	}
	roadmap, err := h.roadmaps.Get(c.Request.Context(), user.ID, uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, roadmap)
}
