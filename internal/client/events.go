package client

import (
	"sync"

	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

// Event is anything published on a Bus.
type Event interface {
	EventName() string
}

type SubmitSucceeded struct {
	Result *apiclient.CreateResult
}

func (SubmitSucceeded) EventName() string { return "submit.succeeded" }

// SubmitFailed carries either field errors from validation or the error
// returned by the API. Message is suitable for display.
type SubmitFailed struct {
	Fields  map[string]string
	Err     error
	Message string
}

func (SubmitFailed) EventName() string { return "submit.failed" }

// SampleDataSubstituted means a dashboard widget is showing generated rows.
type SampleDataSubstituted struct {
	Widget string
	Err    error
}

func (SampleDataSubstituted) EventName() string { return "dashboard.sample_data" }

// Bus delivers events synchronously to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

// SubscribeAll registers fn for every event and returns a function that
// removes it.
func (b *Bus) SubscribeAll(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	return func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Subscribe registers fn for events of type E only.
func Subscribe[E Event](b *Bus, fn func(E)) func() {
	return b.SubscribeAll(func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	})
}

func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
