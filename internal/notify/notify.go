// Package notify implements a payload-free change signal with multiple
// independent subscribers.
package notify

import (
	"sync"
	"sync/atomic"
)

// Notifier fans a "something changed" signal out to its subscribers.
// The zero value is ready to use.
type Notifier struct {
	mu   sync.Mutex
	subs []*Subscription
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	n       *Notifier
	handler func()
	active  atomic.Bool
}

// Subscribe registers handler. It is invoked synchronously on the goroutine
// that calls Publish.
func (n *Notifier) Subscribe(handler func()) *Subscription {
	s := &Subscription{n: n, handler: handler}
	s.active.Store(true)

	n.mu.Lock()
	n.subs = append(n.subs, s)
	n.mu.Unlock()
	return s
}

// Unsubscribe removes the subscription. Once it returns no new invocation of
// the handler starts, including from a Publish that is already iterating.
// Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}

	n := s.n
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.subs {
		if sub == s {
			// copy so snapshots taken by running publishes stay intact
			subs := make([]*Subscription, 0, len(n.subs)-1)
			subs = append(subs, n.subs[:i]...)
			n.subs = append(subs, n.subs[i+1:]...)
			return
		}
	}
}

// Publish invokes every active subscriber once, in subscription order.
func (n *Notifier) Publish() {
	n.mu.Lock()
	snapshot := n.subs
	n.mu.Unlock()

	for _, s := range snapshot {
		if s.active.Load() {
			s.handler()
		}
	}
}

// Len reports the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Channel subscribes a channel that receives a value per publish. Signals
// are coalesced when the consumer lags: a pending signal already means
// "re-read the state". The returned func unsubscribes; the channel is never
// closed.
func (n *Notifier) Channel() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	sub := n.Subscribe(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch, sub.Unsubscribe
}
