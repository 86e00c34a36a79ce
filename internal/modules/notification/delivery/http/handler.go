package http

import (
	"net/http"
	"strconv"

	notifService "anoa.com/ulike/internal/modules/notification/service"
	"anoa.com/ulike/pkg/apperror"
	"anoa.com/ulike/pkg/realtime"
	"anoa.com/ulike/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	service  notifService.NotificationService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewNotificationHandler(service notifService.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:  service,
		upgrader: realtime.NewUpgrader(),
		logger:   logger.Named("notification_handler"),
	}
}

// REST Endpoints

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	notifications, err := h.service.GetNotifications(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, notifications)
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid notification id", apperror.ErrInvalidInput))
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), userID, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, response.MessageData{Message: "Marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, response.MessageData{Message: "All notifications marked as read"})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, gin.H{"count": count})
}

// WebSocket Endpoint

// HandleWebSocket streams new notifications of the signed-in user. The route
// sits behind the auth middleware, which also accepts ?token= for browsers.
func (h *NotificationHandler) HandleWebSocket(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	pubsub := h.service.Subscribe(c.Request.Context(), userID)
	if pubsub == nil {
		response.ResponseError(c, apperror.New(http.StatusServiceUnavailable, "live notifications are unavailable", apperror.ErrUnavailable))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		_ = pubsub.Close()
		h.logger.Warn("Failed to upgrade websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	if err := realtime.Forward(c.Request.Context(), conn, pubsub); err != nil {
		h.logger.Debug("Notification stream closed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
