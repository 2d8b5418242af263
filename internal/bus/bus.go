// Package bus is the in-process event bus the engine uses to announce
// state changes to sinks, the monitor and the CLI.
package bus

import (
	"sync"
)

type EventType string

const (
	// Speech activity derived from the token stream
	EventTalkingStarted EventType = "speech.talking_started"
	EventTalkingStopped EventType = "speech.talking_stopped"

	// Layer changes
	EventExpressionPushed  EventType = "layer.expression_pushed"
	EventExpressionDropped EventType = "layer.expression_dropped"
	EventLayersCleared     EventType = "layer.cleared"

	// Configuration
	EventPresetsReloaded EventType = "config.presets_reloaded"
	EventLexiconReloaded EventType = "config.lexicon_reloaded"
	EventReloadFailed    EventType = "config.reload_failed"

	// Lip-sync playback
	EventLipSyncStarted  EventType = "lipsync.started"
	EventLipSyncFinished EventType = "lipsync.finished"

	// Mailbox pressure
	EventCommandEvicted EventType = "mailbox.evicted"

	// Sink connectivity
	EventSinkConnected    EventType = "sink.connected"
	EventSinkDisconnected EventType = "sink.disconnected"
)

type Event struct {
	Type EventType
	Data map[string]any
}

type Handler func(Event)

// EventBus fans events out to subscribers. Handlers must not assume they
// run on the publisher's goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

// SubscribeAll receives every event regardless of type.
func (b *EventBus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler, 0, len(b.handlers[t])+len(b.all))
	hs = append(hs, b.handlers[t]...)
	return append(hs, b.all...)
}

// Publish runs each handler on its own goroutine and returns immediately,
// so a slow subscriber never stalls the tick loop.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}
	for _, h := range b.snapshot(event.Type) {
		go h(event)
	}
}

// PublishSync runs the handlers concurrently and waits for all of them.
func (b *EventBus) PublishSync(event Event) {
	if b == nil {
		return
	}
	var wg sync.WaitGroup
	for _, h := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(h)
	}
	wg.Wait()
}

func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
	b.all = nil
}
