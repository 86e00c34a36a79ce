package http

import (
	"net/http"

	"anoa.com/ulike/internal/modules/user/dto"
	userService "anoa.com/ulike/internal/modules/user/service"
	"anoa.com/ulike/pkg/apperror"
	"anoa.com/ulike/pkg/response"
	"anoa.com/ulike/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	service userService.AuthService
}

func NewAuthHandler(service userService.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, resp)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	user, err := h.service.Me(c.Request.Context(), userID.String())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, user)
}
