package http

import (
	"errors"
	"net/http"

	"anoa.com/ulike/internal/config"
	"anoa.com/ulike/internal/entity"
	reactionDto "anoa.com/ulike/internal/modules/reaction/dto"
	reaction "anoa.com/ulike/internal/modules/reaction/service"
	"anoa.com/ulike/pkg/apperror"
	"anoa.com/ulike/pkg/realtime"
	"anoa.com/ulike/pkg/response"
	"anoa.com/ulike/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ReactionHandler struct {
	service  reaction.ReactionService
	likers   *reaction.LikersBuilder
	tokens   *reaction.TokenIssuer
	limiter  *reaction.RateLimiter
	events   *reaction.Dispatcher
	cache    *reaction.CounterCache
	identity IdentityResolver
	opts     config.Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// Deps groups what the reaction handler needs.
type Deps struct {
	Service  reaction.ReactionService
	Likers   *reaction.LikersBuilder
	Tokens   *reaction.TokenIssuer
	Limiter  *reaction.RateLimiter
	Events   *reaction.Dispatcher
	Cache    *reaction.CounterCache
	Identity IdentityResolver
	Options  config.Options
	Logger   *zap.Logger
}

func NewReactionHandler(deps Deps) *ReactionHandler {
	identity := deps.Identity
	if identity == nil {
		identity = NewIdentityResolver(deps.Options.AllowAnonymous, deps.Options.TokenSecret)
	}
	return &ReactionHandler{
		service:  deps.Service,
		likers:   deps.Likers,
		tokens:   deps.Tokens,
		limiter:  deps.Limiter,
		events:   deps.Events,
		cache:    deps.Cache,
		identity: identity,
		opts:     deps.Options,
		upgrader: realtime.NewUpgrader(),
		logger:   deps.Logger.Named("reaction_handler"),
	}
}

func badRequest(err error) error {
	return apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrInvalidInput)
}

func (h *ReactionHandler) loginRequired() error {
	return apperror.New(http.StatusUnauthorized, h.opts.Messages.LoginRequired, reaction.ErrLoginRequired)
}

// React handles POST /api/react.
func (h *ReactionHandler) React(c *gin.Context) {
	ctx := c.Request.Context()

	// 1. Validate
	var req reactionDto.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}
	subject, err := req.Subject.Subject()
	if err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}
	kind, err := entity.ParseKind(req.RequestedKind)
	if err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	reactor, ok := h.identity.Resolve(c)
	if !ok || (reactor.IsAnonymous() && !h.opts.AllowAnonymous) {
		response.ResponseError(c, h.loginRequired())
		return
	}

	if err := h.tokens.Validate(req.Token, subject, reactor); err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.limiter.Check(ctx, reactor, reaction.ActionToggle, h.opts.ToggleRateLimit); err != nil {
		response.ResponseError(c, err)
		return
	}

	// 2. Dispatch
	result, err := h.service.Toggle(ctx, subject, reactor, kind, entity.PresentationStatus(req.PresentedStatus))
	if err != nil {
		// A failed toggle must not eat the reactor's window.
		if clearErr := h.limiter.Clear(ctx, reactor, reaction.ActionToggle); clearErr != nil {
			h.logger.Warn("Failed to clear toggle rate limit", zap.String("reactor", reactor.Key()), zap.Error(clearErr))
		}
		if errors.Is(err, reaction.ErrLoginRequired) {
			err = h.loginRequired()
		}
		response.ResponseError(c, err)
		return
	}

	// 3. Respond
	resp := reactionDto.ToggleResponse{
		NewCounterValue: result.CounterValue,
		CounterText:     entity.FormatCount(result.CounterValue),
		LikeCount:       result.Counters.LikeCount,
		DislikeCount:    result.Counters.DislikeCount,
		NextState:       result.NewState,
		ButtonStatus:    result.NextStatus,
		Message:         h.message(result.NewState),
		ButtonText:      h.buttonText(result.NewState),
		Stale:           result.Stale,
	}
	response.Success(c, resp)

	// 4. Emit
	h.events.Dispatch(ctx, result.Event)
}

func (h *ReactionHandler) message(state entity.State) string {
	if state == entity.StateDisliked {
		return h.opts.Messages.Disliked
	}
	return h.opts.Messages.Liked
}

func (h *ReactionHandler) buttonText(state entity.State) string {
	if state == entity.StateLiked {
		return h.opts.Messages.ButtonUnlike
	}
	return h.opts.Messages.ButtonLike
}

// Likers handles POST /api/likers.
func (h *ReactionHandler) Likers(c *gin.Context) {
	var req reactionDto.LikersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}
	subject, err := req.Subject.Subject()
	if err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	list, err := h.likers.Build(c.Request.Context(), subject, req.Page, req.Refresh)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	items := make([]reactionDto.LikerItem, 0, len(list.Items))
	for _, liker := range list.Items {
		items = append(items, reactionDto.LikerItem{
			Username:    liker.Username,
			DisplayName: liker.DisplayName,
			AvatarURL:   liker.AvatarURL,
		})
	}

	response.Success(c, reactionDto.LikersResponse{
		Items:        items,
		HTML:         list.HTML,
		WrapperClass: list.WrapperClass,
		Hidden:       list.Hidden,
		Meta:         list.Meta,
	})
}

func subjectFromPath(c *gin.Context) (entity.Subject, error) {
	itemType, err := entity.ParseItemType(c.Param("type"))
	if err != nil {
		return entity.Subject{}, apperror.New(http.StatusBadRequest, err.Error(), apperror.ErrInvalidInput)
	}
	id, err := entity.ParseSubjectID(c.Param("id"))
	if err != nil {
		return entity.Subject{}, apperror.New(http.StatusBadRequest, "invalid subject id", apperror.ErrInvalidInput)
	}
	return entity.Subject{Type: itemType, ID: id}, nil
}

// Status handles GET /api/reactions/:type/:id and describes the widget for
// the current viewer, including a fresh anti-forgery token.
func (h *ReactionHandler) Status(c *gin.Context) {
	subject, err := subjectFromPath(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	kind, err := entity.ParseKind(c.DefaultQuery("kind", string(entity.KindLike)))
	if err != nil {
		response.ResponseError(c, badRequest(err))
		return
	}

	reactor, identified := h.identity.Resolve(c)
	if identified && reactor.IsAnonymous() && !h.opts.AllowAnonymous {
		identified = false
		reactor = entity.Reactor{}
	}

	view, err := h.service.Status(c.Request.Context(), subject, reactor)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp := reactionDto.StatusResponse{
		Subject:         subject,
		LikeCount:       view.Counters.LikeCount,
		DislikeCount:    view.Counters.DislikeCount,
		CounterText:     entity.FormatCount(view.Counters.CountFor(kind)),
		State:           view.State,
		ButtonStatus:    view.Status,
		ButtonText:      h.buttonText(view.State),
		DisplayPosition: h.opts.AutoDisplayPosition,
	}
	if identified {
		token, err := h.tokens.Issue(subject, reactor)
		if err != nil {
			response.ResponseError(c, err)
			return
		}
		resp.Token = token
	} else {
		resp.Message = h.opts.Messages.LoginRequired
	}

	response.Success(c, resp)
}

// Stream handles GET /api/reactions/:type/:id/ws and forwards state-updated
// payloads for the subject.
func (h *ReactionHandler) Stream(c *gin.Context) {
	subject, err := subjectFromPath(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	// Resolves existence before upgrading so unknown subjects get a 404.
	if _, err := h.service.Status(c.Request.Context(), subject, entity.Reactor{}); err != nil {
		response.ResponseError(c, err)
		return
	}

	pubsub := h.cache.Subscribe(c.Request.Context(), subject)
	if pubsub == nil {
		response.ResponseError(c, apperror.New(http.StatusServiceUnavailable, "live updates are unavailable", apperror.ErrUnavailable))
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
		h.logger.Debug("Reaction stream closed", zap.String("subject", subject.String()), zap.Error(err))
	}
}
