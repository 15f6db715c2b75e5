// Package analytics records visitor events off the request path.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one visitor interaction row.
type Event struct {
	ID           string
	Timestamp    time.Time
	Type         string
	UserID       string
	DeviceID     string
	UserAgent    string
	Referrer     string
	IP           string
	Language     string
	Question     string
	Answer       string
	ResponseTime time.Duration
}

const (
	EventChat      = "ai_chat"
	EventPageView  = "page_view"
	EventRateLimit = "rate_limited"
)

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}

// Sink persists events.
type Sink interface {
	Record(ctx context.Context, event Event) error
	Close() error
}

// Recorder buffers events and writes them from a background worker so the
// webhook path never blocks on the sink. A full buffer drops the event.
type Recorder struct {
	sink   Sink
	events chan Event
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewRecorder(sink Sink, buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 128
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		sink:   sink,
		events: make(chan Event, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}

	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.events {
		if err := r.sink.Record(context.Background(), event); err != nil {
			r.logger.Warn("analytics write failed", "event", event.Type, "error", err)
		}
	}
}

// Record enqueues fire-and-forget; it never blocks.
func (r *Recorder) Record(event Event) {
	select {
	case r.events <- event:
	default:
		r.logger.Warn("analytics buffer full, dropping event", "event", event.Type)
	}
}

// Close drains pending events and closes the sink.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.events)
	})
	<-r.done
	return r.sink.Close()
}
