package http

import (
	"net/http"

	"anoa.com/ulike/internal/entity"
	"anoa.com/ulike/internal/modules/admin/dto"
	contentRepo "anoa.com/ulike/internal/modules/content/repository"
	reaction "anoa.com/ulike/internal/modules/reaction/service"
	"anoa.com/ulike/pkg/apperror"
	"anoa.com/ulike/pkg/response"
	"anoa.com/ulike/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	content    contentRepo.ContentRepository
	reconciler *reaction.Reconciler
}

func NewAdminHandler(content contentRepo.ContentRepository, reconciler *reaction.Reconciler) *AdminHandler {
	return &AdminHandler{
		content:    content,
		reconciler: reconciler,
	}
}

// UpsertContent handles PUT /api/admin/content.
func (h *AdminHandler) UpsertContent(c *gin.Context) {
	var input dto.UpsertContentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}
	itemType, err := entity.ParseItemType(input.Type)
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, err.Error(), apperror.ErrInvalidInput))
		return
	}

	if *input.ID > entity.MaxSubjectID {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid subject id", apperror.ErrInvalidInput))
		return
	}

	item := &entity.ContentItem{
		ItemType: itemType,
		ItemID:   *input.ID,
		AuthorID: input.AuthorID,
		Title:    input.Title,
	}
	if err := h.content.Upsert(c.Request.Context(), item); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, item)
}

// ReconcileSubject handles POST /api/admin/reconcile/:type/:id.
func (h *AdminHandler) ReconcileSubject(c *gin.Context) {
	itemType, err := entity.ParseItemType(c.Param("type"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, err.Error(), apperror.ErrInvalidInput))
		return
	}
	id, err := entity.ParseSubjectID(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid subject id", apperror.ErrInvalidInput))
		return
	}

	report, err := h.reconciler.ReconcileSubject(c.Request.Context(), entity.Subject{Type: itemType, ID: id})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, report)
}

// SyncPending handles POST /api/admin/reconcile and drains the pending set
// without waiting for the next tick.
func (h *AdminHandler) SyncPending(c *gin.Context) {
	checked, err := h.reconciler.SyncPending(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, dto.SyncPendingResponse{Checked: checked})
}
