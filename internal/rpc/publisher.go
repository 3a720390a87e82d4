package rpc

import (
	"sync"

	"github.com/openmrkt/marketd/internal/core/market"
)

// Fanout delivers each committed event to every attached publisher, in
// attachment order, on the publishing goroutine.
type Fanout struct {
	mu   sync.RWMutex
	subs []market.Publisher
}

func NewFanout(subs ...market.Publisher) *Fanout {
	f := &Fanout{}
	for _, s := range subs {
		f.Attach(s)
	}
	return f
}

// Attach adds a publisher. Nil publishers are ignored so callers can pass
// optional sinks unconditionally.
func (f *Fanout) Attach(p market.Publisher) {
	if p == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, p)
}

func (f *Fanout) Publish(ev market.Event) {
	f.mu.RLock()
	subs := f.subs
	f.mu.RUnlock()
	for _, s := range subs {
		s.Publish(ev)
	}
}
