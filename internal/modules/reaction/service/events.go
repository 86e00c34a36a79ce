package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"anoa.com/ulike/internal/entity"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Event describes one applied transition. The engine returns it and the
// request handler hands it to the dispatcher once the response is ready.
type Event struct {
	Subject       entity.Subject
	Reactor       entity.Reactor
	OldState      entity.State
	NewState      entity.State
	Counters      entity.ReactionCounter
	FirstReaction bool
	OccurredAt    time.Time
}

// Listener is implemented by every collaborator interested in reactions,
// such as notifications, points or caches.
type Listener interface {
	Name() string
	HandleReaction(ctx context.Context, event Event) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc struct {
	ListenerName string
	Fn           func(ctx context.Context, event Event) error
}

func (f ListenerFunc) Name() string { return f.ListenerName }

func (f ListenerFunc) HandleReaction(ctx context.Context, event Event) error {
	return f.Fn(ctx, event)
}

const defaultListenerTimeout = 10 * time.Second

// Dispatcher fans events out to listeners in the background. Listener
// errors and panics are logged and never reach the caller.
type Dispatcher struct {
	logger  *zap.Logger
	timeout time.Duration

	mu        sync.RWMutex
	listeners []Listener
	closed    bool

	wg conc.WaitGroup
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger:  logger.Named("reaction_events"),
		timeout: defaultListenerTimeout,
	}
}

// Register adds listeners. It is safe to call while events are in flight.
func (d *Dispatcher) Register(listeners ...Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listeners...)
}

// Dispatch schedules delivery of event to every registered listener and
// returns immediately. The request context is only used for its values.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || len(d.listeners) == 0 {
		return
	}

	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	detached := context.WithoutCancel(ctx)

	d.wg.Go(func() {
		ctx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()

		p := pool.New().WithContext(ctx)
		for _, l := range listeners {
			p.Go(func(ctx context.Context) error {
				d.deliver(ctx, l, event)
				return nil
			})
		}
		_ = p.Wait()
	})
}

// Close stops accepting events and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Reaction listener panicked",
				zap.String("listener", l.Name()),
				zap.String("subject", event.Subject.String()),
				zap.Any("panic", r))
		}
	}()

	if err := l.HandleReaction(ctx, event); err != nil {
		d.logger.Warn("Reaction listener failed",
			zap.String("listener", l.Name()),
			zap.String("subject", event.Subject.String()),
			zap.String("new_state", string(event.NewState)),
			zap.Error(err))
		return
	}

	d.logger.Debug("Reaction listener done",
		zap.String("listener", l.Name()),
		zap.String("subject", event.Subject.String()))
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s->%s", e.Subject, e.Reactor.Key(), e.OldState, e.NewState)
}
