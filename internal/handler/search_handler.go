package handler

import (
	"strconv"

	"careercoach-go/internal/service"
	"careercoach-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchInterviews 在当前用户已归档的面试记录中做全文检索。
func (h *SearchHandler) SearchInterviews(c *gin.Context) {
	query := c.Query("q")
	log.Infof("[SearchHandler] 收到面试检索请求, query: %s", query)
	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: q 参数为空")
		respondBadRequest(c, "无效的查询参数")
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "10"))
	if err != nil || topK <= 0 {
		topK = 10
	}

	user, ok := mustUser(c)
	if !ok {
		return
	}

	hits, err := h.searchService.SearchInterviews(c.Request.Context(), user.ID, query, topK)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(hits))
	respondOK(c, hits)
}
