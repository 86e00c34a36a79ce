package response

import (
	"net/http"

	"anoa.com/ulike/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Envelope is the body shape every reaction endpoint answers with.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// MessageData is the data payload of a failed request.
type MessageData struct {
	Message string `json:"message"`
}

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	str, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// Success writes a 200 envelope.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", code),
			zap.Error(err))
	}

	c.JSON(code, Envelope{
		Success: false,
		Data:    MessageData{Message: apperror.PublicMessage(err)},
	})
}
