package client

import (
	"context"
	"errors"
	"sync"

	"anoa.com/ulike/internal/entity"
	reactionDto "anoa.com/ulike/internal/modules/reaction/dto"
	"go.uber.org/zap"
)

// State of one widget controller.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateRefreshingLikers
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateRefreshingLikers:
		return "refreshing_likers"
	default:
		return "idle"
	}
}

type EventType string

const (
	EventLoadingStarted EventType = "loading-started"
	EventStateUpdated   EventType = "state-updated"
)

// Event is emitted to observers; WidgetID says which widget changed.
type Event struct {
	Type     EventType
	WidgetID string
}

type NotifyLevel string

const (
	NotifySuccess NotifyLevel = "success"
	NotifyInfo    NotifyLevel = "info"
	NotifyError   NotifyLevel = "error"
)

// Widget is the rendering side of a like button.
type Widget interface {
	SetDisabled(disabled bool)
	SetLoading(loading bool)
	SetGettingLikers(getting bool)
	ApplyState(status entity.PresentationStatus, buttonText string)
	SetCounter(text string)
	RenderLikers(wrapperClass, html string, hidden bool)
	Notify(level NotifyLevel, message string)
}

// Backend is the subset of API the controller needs.
type Backend interface {
	Toggle(ctx context.Context, subject entity.Subject, kind entity.Kind, token string, presented entity.PresentationStatus) (*reactionDto.ToggleResponse, error)
	Likers(ctx context.Context, subject entity.Subject, page int, refresh bool) (*reactionDto.LikersResponse, error)
	Status(ctx context.Context, subject entity.Subject, kind entity.Kind) (*reactionDto.StatusResponse, error)
}

type WidgetConfig struct {
	ID      string
	Subject entity.Subject
	Kind    entity.Kind
	// Token and Status come from the rendered page; Load fetches them otherwise.
	Token  string
	Status entity.PresentationStatus
}

type Controller struct {
	backend Backend
	widget  Widget
	cfg     WidgetConfig
	logger  *zap.Logger

	mu             sync.Mutex
	status         entity.PresentationStatus
	token          string
	submitting     bool
	fetchingLikers bool
	likersRendered bool
	refreshPending bool
	observers      []func(Event)
}

func NewController(backend Backend, widget Widget, cfg WidgetConfig, logger *zap.Logger) *Controller {
	if cfg.Kind == "" {
		cfg.Kind = entity.KindLike
	}
	return &Controller{
		backend: backend,
		widget:  widget,
		cfg:     cfg,
		logger:  logger.Named("widget").With(zap.String("widget_id", cfg.ID)),
		status:  cfg.Status,
		token:   cfg.Token,
	}
}

// OnEvent registers an observer. Observers run synchronously.
func (c *Controller) OnEvent(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.submitting:
		return StateSubmitting
	case c.fetchingLikers:
		return StateRefreshingLikers
	default:
		return StateIdle
	}
}

func (c *Controller) Status() entity.PresentationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Load fetches the current status, counter and anti-forgery token.
func (c *Controller) Load(ctx context.Context) error {
	resp, err := c.backend.Status(ctx, c.cfg.Subject, c.cfg.Kind)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.status = resp.ButtonStatus
	c.token = resp.Token
	c.mu.Unlock()

	c.widget.ApplyState(resp.ButtonStatus, resp.ButtonText)
	c.widget.SetCounter(resp.CounterText)
	return nil
}

// Activate handles a click. It returns false when a toggle is already in
// flight and the click was ignored.
func (c *Controller) Activate(ctx context.Context) bool {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return false
	}
	c.submitting = true
	status, token := c.status, c.token
	c.mu.Unlock()

	c.widget.SetDisabled(true)
	c.emit(EventLoadingStarted)
	c.widget.SetLoading(true)

	resp, err := c.backend.Toggle(ctx, c.cfg.Subject, c.cfg.Kind, token, status)

	c.widget.SetLoading(false)
	if err != nil {
		c.logger.Warn("Toggle failed", zap.Error(err))
		c.widget.Notify(NotifyError, failureMessage(err))
	} else {
		c.mu.Lock()
		c.status = resp.ButtonStatus
		c.refreshPending = true
		c.mu.Unlock()

		c.widget.ApplyState(resp.ButtonStatus, resp.ButtonText)
		c.widget.SetCounter(resp.CounterText)
		c.widget.Notify(notifyLevel(resp.NextState), resp.Message)
	}

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()
	c.widget.SetDisabled(false)
	c.emit(EventStateUpdated)

	if err == nil {
		if err := c.refreshLikers(ctx); err != nil {
			c.logger.Warn("Likers refresh failed", zap.Error(err))
		}
	}
	return true
}

// Hover fetches the likers list unless it is already rendered and current.
func (c *Controller) Hover(ctx context.Context) error {
	return c.refreshLikers(ctx)
}

func (c *Controller) refreshLikers(ctx context.Context) error {
	c.mu.Lock()
	if c.fetchingLikers || (c.likersRendered && !c.refreshPending) {
		c.mu.Unlock()
		return nil
	}
	c.fetchingLikers = true
	c.mu.Unlock()

	c.widget.SetGettingLikers(true)
	defer c.widget.SetGettingLikers(false)

	for {
		c.mu.Lock()
		refresh := c.refreshPending
		c.mu.Unlock()

		resp, err := c.backend.Likers(ctx, c.cfg.Subject, 1, refresh)

		c.mu.Lock()
		if err != nil {
			c.fetchingLikers = false
			c.mu.Unlock()
			return err
		}
		if refresh {
			c.refreshPending = false
		}
		// A toggle landed while this fetch ran; its list is already stale.
		again := c.refreshPending
		if !again {
			c.fetchingLikers = false
			c.likersRendered = true
		}
		c.mu.Unlock()

		if !again {
			c.widget.RenderLikers(resp.WrapperClass, resp.HTML, resp.Hidden)
			return nil
		}
	}
}

func (c *Controller) emit(t EventType) {
	c.mu.Lock()
	observers := append([]func(Event){}, c.observers...)
	c.mu.Unlock()

	ev := Event{Type: t, WidgetID: c.cfg.ID}
	for _, fn := range observers {
		fn(ev)
	}
}

func notifyLevel(state entity.State) NotifyLevel {
	switch state {
	case entity.StateLiked:
		return NotifySuccess
	case entity.StateDisliked:
		return NotifyError
	default:
		return NotifyInfo
	}
}

func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return ErrRequestFailed.Error()
}
