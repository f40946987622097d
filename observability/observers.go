package observability

import (
	"context"
	"strings"
)

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// MultiObserver hands each event to every observer in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver skips nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range observers {
		if obs != nil {
			m.observers = append(m.observers, obs)
		}
	}
	return m
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

// FilterObserver forwards the events accepted by a predicate.
type FilterObserver struct {
	next   Observer
	accept func(Event) bool
}

// NewFilterObserver forwards to next the events accept returns true for.
func NewFilterObserver(next Observer, accept func(Event) bool) *FilterObserver {
	return &FilterObserver{next: next, accept: accept}
}

// MinLevel forwards events at or above level.
func MinLevel(next Observer, level Level) *FilterObserver {
	return NewFilterObserver(next, func(e Event) bool {
		return e.Level >= level
	})
}

// WithPrefix forwards events whose type starts with one of prefixes,
// such as "hub." or "script.".
func WithPrefix(next Observer, prefixes ...string) *FilterObserver {
	return NewFilterObserver(next, func(e Event) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(string(e.Type), p) {
				return true
			}
		}
		return false
	})
}

func (f *FilterObserver) OnEvent(ctx context.Context, event Event) {
	if f.accept(event) {
		f.next.OnEvent(ctx, event)
	}
}
