package mock

import (
	"sync"

	"github.com/fwojciec/chatstream"
)

// ObservedEvent is one call recorded by Observer.
type ObservedEvent struct {
	Level  chatstream.Level
	Name   string
	Fields chatstream.Fields
}

// Observer records every event it receives. The zero value is ready to use
// and safe for concurrent use.
type Observer struct {
	mu     sync.Mutex
	events []ObservedEvent
}

// Observe records the event.
func (o *Observer) Observe(level chatstream.Level, event string, fields chatstream.Fields) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ObservedEvent{Level: level, Name: event, Fields: fields})
}

// Events returns a copy of the recorded events.
func (o *Observer) Events() []ObservedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ObservedEvent, len(o.events))
	copy(out, o.events)
	return out
}

// Names returns the recorded event names in order.
func (o *Observer) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, len(o.events))
	for i, e := range o.events {
		names[i] = e.Name
	}
	return names
}
