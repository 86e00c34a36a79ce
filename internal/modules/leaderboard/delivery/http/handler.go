package http

import (
	"strconv"

	leaderboardService "anoa.com/ulike/internal/modules/leaderboard/service"
	"anoa.com/ulike/pkg/response"
	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	service leaderboardService.LeaderboardService
}

func NewLeaderboardHandler(service leaderboardService.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	leaderboard, err := h.service.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, leaderboard)
}
