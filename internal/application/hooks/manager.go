// Package hooks delivers best-effort lifecycle notifications to
// caller-registered observers. A hook is advisory: its failure, panic
// or absence never affects the operation that fired it.
package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/infrastructure/monitoring"
	"github.com/wardenauth/warden/pkg/constants"
	"github.com/wardenauth/warden/pkg/logger"
)

// Callback observes one lifecycle event. Errors are logged and
// discarded; they never reach the code path that fired the event.
type Callback func(ctx context.Context, event *models.HookEvent) error

// EventSink receives every fired event regardless of callback
// registration, for audit pipelines. Delivery is best-effort.
type EventSink interface {
	Publish(ctx context.Context, event *models.HookEvent) error
}

// Manager holds at most one callback per event name. Register replaces
// any previous callback for the same event.
type Manager struct {
	mu        sync.RWMutex
	callbacks map[constants.HookEvent]Callback

	sink    EventSink
	logger  logger.Logger
	metrics *monitoring.Metrics
}

// NewManager builds a hook manager. sink may be nil.
func NewManager(log logger.Logger, metrics *monitoring.Metrics, sink EventSink) *Manager {
	return &Manager{
		callbacks: make(map[constants.HookEvent]Callback),
		sink:      sink,
		logger:    log.WithComponent("hooks"),
		metrics:   metrics,
	}
}

// Register installs the callback for the event, replacing any existing
// one. A nil callback unregisters.
func (m *Manager) Register(event constants.HookEvent, cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb == nil {
		delete(m.callbacks, event)
		return
	}
	m.callbacks[event] = cb
}

// Fire dispatches the event to its registered callback and the sink.
// Never returns an error and never panics; the firing operation has
// already committed by the time a hook observes it.
func (m *Manager) Fire(ctx context.Context, event constants.HookEvent, build func(*models.HookEvent)) {
	evt := &models.HookEvent{
		Name:      string(event),
		Timestamp: time.Now(),
		RequestID: newRequestID(),
	}
	if build != nil {
		build(evt)
	}

	m.mu.RLock()
	cb := m.callbacks[event]
	m.mu.RUnlock()

	if cb != nil {
		m.invoke(ctx, event, cb, evt)
	}
	if m.sink != nil {
		if err := m.sink.Publish(ctx, evt); err != nil {
			m.logger.Warn(ctx, "event sink publish failed",
				logger.String("event", string(event)), logger.Error(err))
		}
	}
}

// invoke runs the callback behind a recover so a panicking observer
// cannot take down the request that triggered it.
func (m *Manager) invoke(ctx context.Context, event constants.HookEvent, cb Callback, evt *models.HookEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.HookFailure(string(event))
			m.logger.Error(ctx, "hook callback panicked",
				fmt.Errorf("panic: %v", r),
				logger.String("event", string(event)),
				logger.String("request_id", evt.RequestID))
		}
	}()
	if err := cb(ctx, evt); err != nil {
		m.metrics.HookFailure(string(event))
		m.logger.Warn(ctx, "hook callback failed",
			logger.String("event", string(event)),
			logger.String("request_id", evt.RequestID),
			logger.Error(err))
	}
}

// newRequestID builds a correlation id: nanosecond timestamp plus a
// uuid suffix. Unique enough for log correlation, not a security token.
func newRequestID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
