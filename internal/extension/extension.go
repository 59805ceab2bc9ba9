package extension

import (
	"context"
	"errors"
	"sync"
	"time"

	"pushbridge/internal/configuration"
	"pushbridge/internal/constants"
	"pushbridge/internal/logger"
	"pushbridge/internal/netservice"
	"pushbridge/internal/registration"
	"pushbridge/internal/tracking"
	"pushbridge/pkg/events"
	"pushbridge/pkg/logging"
	"pushbridge/pkg/metrics"
)

var (
	// ErrStatePending signals that the configuration shared state for an
	// event is not set yet. The caller owns the event and redelivers it.
	ErrStatePending = errors.New("configuration shared state pending")

	// ErrNotRegistered signals that the extension lifecycle has not been
	// started, or has been stopped.
	ErrNotRegistered = errors.New("extension not registered")
)

// Extension is the dispatch coordinator. It consumes configuration-response
// and request-content events, classifies them, and hands them to the
// registration and tracking builders on one serial background queue.
type Extension struct {
	states       events.StateProvider
	registration *registration.Service
	tracking     *tracking.Service
	logger       logger.Logger

	mu         sync.Mutex
	registered bool
	queue      *serialQueue
}

func New(states events.StateProvider, network netservice.Service, store registration.Store, log logger.Logger) *Extension {
	x := &Extension{
		states: states,
		logger: log,
	}
	x.registration = registration.NewService(network, store, x, log)
	x.tracking = tracking.NewService(network, log)
	return x
}

// Register starts the serial queue and moves the extension to the
// registered state. Registering twice is a no-op.
func (x *Extension) Register() {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.registered {
		return
	}

	x.queue = newSerialQueue(0)
	x.registered = true
	x.logger.Infow("Extension registered",
		"streams", []string{events.TypeConfigurationResponse, events.TypeRequestContent},
	)
}

// Unregister drains already-enqueued events, then stops the queue.
func (x *Extension) Unregister() {
	x.mu.Lock()
	if !x.registered {
		x.mu.Unlock()
		return
	}
	x.registered = false
	queue := x.queue
	x.queue = nil
	x.mu.Unlock()

	queue.stop()
	x.logger.Infow("Extension unregistered")
}

// Process accepts one inbound event. It returns ErrStatePending while the
// configuration shared state for the event is still pending (the caller
// holds and redelivers such events) and otherwise enqueues handling on
// the serial queue, returning without waiting for it.
func (x *Extension) Process(ctx context.Context, e *events.Event) error {
	if e == nil {
		return nil
	}

	if _, status := x.states.ConfigurationState(e); status != events.StatusSet {
		return ErrStatePending
	}

	// Handling outlives the delivering call. Keep the caller's values for
	// logging but drop its cancellation, otherwise a request-scoped context
	// would cancel the dispatch once the caller returns.
	ctx = logging.WithEventID(context.WithoutCancel(ctx), e.ID)

	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.registered {
		return ErrNotRegistered
	}

	x.queue.submit(func() {
		x.handle(ctx, e)
	})
	return nil
}

// RunTask marshals a task onto the serial queue. Network completion
// callbacks use it to touch extension-owned state without racing the
// event handlers. Tasks arriving after Unregister are dropped.
func (x *Extension) RunTask(task func()) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.registered {
		x.logger.Debugw("Dropping task submitted after unregister")
		return
	}
	x.queue.submit(task)
}

func (x *Extension) handle(ctx context.Context, e *events.Event) {
	if e.Type == events.TypeConfigurationResponse {
		x.logger.DebugwCtx(ctx, "Configuration shared state updated")
		return
	}

	start := time.Now()
	kind := Classify(e)
	snapshot := configuration.Resolve(e, x.states)

	switch kind {
	case KindRegister:
		lifecycle, _ := x.states.LifecycleState(e)
		x.registration.HandleEvent(ctx, e, snapshot, lifecycle)
	case KindTrackClick:
		x.tracking.HandleEvent(ctx, e, snapshot, constants.TagClick)
	case KindTrackReceive:
		x.tracking.HandleEvent(ctx, e, snapshot, constants.TagReceive)
	default:
		metrics.EventsDroppedTotal.WithLabelValues("unclassified").Inc()
		x.logger.DebugwCtx(ctx, "Event carries no registration or tracking flag, ignoring")
	}

	metrics.ObserveDispatchDuration(time.Since(start), kind.String())
}
