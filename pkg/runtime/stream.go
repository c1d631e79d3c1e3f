package runtime

import (
	"context"
	"sync"

	"github.com/bubblelabai/bubblelab/pkg/credentials"
	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/rs/zerolog/log"
)

// Observer fans execution events out to subscribed handlers. Notify is
// serialized and assigns each event its order at emission time, so the
// observed sequence always reflects actual execution order, including events
// emitted from concurrently running bubble actions.
type Observer struct {
	mu        sync.Mutex
	handlers  []domain.ExecutionEventHandler
	sanitizer *credentials.Sanitizer
	order     int
}

func NewObserver() *Observer {
	return &Observer{
		handlers:  []domain.ExecutionEventHandler{},
		sanitizer: credentials.NewSanitizer(),
	}
}

func (o *Observer) Subscribe(handler domain.ExecutionEventHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.handlers = append(o.handlers, handler)
}

// SetSanitizer installs the execution's secret sanitizer. Every event's
// message fields pass through it before any handler sees them.
func (o *Observer) SetSanitizer(sanitizer *credentials.Sanitizer) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sanitizer = sanitizer
}

func (o *Observer) Notify(ctx context.Context, event domain.StreamEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.order++
	event.SetEventOrder(o.order)

	sanitizeEvent(event, o.sanitizer)

	for _, handler := range o.handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

func sanitizeEvent(event domain.StreamEvent, sanitizer *credentials.Sanitizer) {
	switch e := event.(type) {
	case *domain.LineEvent:
		e.Message = sanitizer.Sanitize(e.Message)
	case *domain.BubbleExecutionCompleteEvent:
		e.Message = sanitizer.Sanitize(e.Message)
	case *domain.WarnEvent:
		e.Message = sanitizer.Sanitize(e.Message)
	case *domain.ErrorEvent:
		e.Message = sanitizer.Sanitize(e.Message)
	case *domain.FatalEvent:
		e.Message = sanitizer.Sanitize(e.Message)
	case *domain.ExecutionCompleteEvent:
		e.Message = sanitizer.Sanitize(e.Message)
	}
}

const streamBufferSize = 256

// StreamBroadcaster forwards events to the caller's stream callback with
// fire-and-forget semantics: a slow consumer never blocks the runner, events
// are dropped (with a warning) once the buffer is full.
type StreamBroadcaster struct {
	events chan domain.StreamEvent
	done   chan struct{}
}

func NewStreamBroadcaster(callback domain.StreamCallback) *StreamBroadcaster {
	b := &StreamBroadcaster{
		events: make(chan domain.StreamEvent, streamBufferSize),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(b.done)

		for event := range b.events {
			callback(event)
		}
	}()

	return b
}

func (b *StreamBroadcaster) HandleEvent(ctx context.Context, event domain.StreamEvent) error {
	select {
	case b.events <- event:
	default:
		log.Warn().
			Str("event_type", string(event.GetEventType())).
			Msg("stream buffer full, dropping event")
	}

	return nil
}

// Close flushes buffered events and waits for the drain goroutine.
func (b *StreamBroadcaster) Close() {
	close(b.events)
	<-b.done
}
