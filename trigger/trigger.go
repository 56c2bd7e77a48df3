// Package trigger implements the coalescing, destruction-safe event-loop
// trigger of §4.3, grounded on
// src/realm/sync/noinst/event_loop_trigger.hpp (original_source).
package trigger

import "sync/atomic"

type state int32

const (
	idle state = iota
	triggered
	destroyed
)

// Poster is the "event loop" collaborator: it schedules fn to run later on
// whatever thread/goroutine the host's loop uses. A typical Poster is
// `func(fn func()) { go fn() }`, or a real event loop's work-queue submit.
type Poster func(fn func())

// Trigger coalesces repeated Trigger() calls into at most one pending
// invocation of handler. Construction and destruction (Close) are not
// thread-safe with each other or with themselves, matching the original's
// contract; Trigger() itself is thread-safe and wait-free.
type Trigger struct {
	st      atomic.Int32
	post    Poster
	handler func()
}

// New registers handler against loop's post function. The handler runs on
// whatever goroutine the Poster schedules it on, never synchronously inside
// Trigger().
func New(post Poster, handler func()) *Trigger {
	return &Trigger{post: post, handler: handler}
}

// Trigger requests another invocation of the handler. Per §4.3: after every
// Trigger() call there will be at least one subsequent handler invocation
// that begins after this call returns, unless the event loop quiesces or the
// Trigger is closed first. Calls while already in the Triggered state are a
// no-op (coalesced).
func (t *Trigger) Trigger() {
	if !t.st.CompareAndSwap(int32(idle), int32(triggered)) {
		return
	}
	t.post(func() {
		if !t.st.CompareAndSwap(int32(triggered), int32(idle)) {
			// Either destroyed, or (impossible under this state machine)
			// already re-triggered by someone else; either way skip.
			return
		}
		t.handler()
	})
}

// Close transitions the trigger to Destroyed. Any post already in flight
// becomes a no-op when it runs (its CAS from Triggered to Idle will have
// already lost to the Destroyed transition below only if Close races the
// post; the post's own CAS guards against running a handler after Close by
// checking state == Triggered, which Destroyed is not).
func (t *Trigger) Close() {
	t.st.Store(int32(destroyed))
}
