package http

import (
	"strconv"

	statService "anoa.com/ulike/internal/modules/stat/service"
	"anoa.com/ulike/pkg/response"
	"github.com/gin-gonic/gin"
)

type StatHandler struct {
	statService statService.StatService
}

func NewStatHandler(statService statService.StatService) *StatHandler {
	return &StatHandler{statService: statService}
}

func (h *StatHandler) GetSummary(c *gin.Context) {
	summary, err := h.statService.Summary(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, summary)
}

// GetTopSubjects handles GET /api/admin/stats/top?type=&limit=
func (h *StatHandler) GetTopSubjects(c *gin.Context) {
	limit := 10
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = min(l, 100)
	}

	top, err := h.statService.TopSubjects(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.Success(c, top)
}
