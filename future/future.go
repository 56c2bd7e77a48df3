// Package future implements the single-producer/single-consumer Future[T]/
// Promise[T] primitive of §4.1, grounded on src/realm/util/future.hpp
// (original_source). Unlike the C++ original, the shared state's lifetime
// needs no intrusive atomic refcount (§9's "Shared storage in futures →
// intrusive atomic refcount" note): Go's GC keeps the shared state alive for
// as long as either side still references it.
package future

import (
	"sync"
	"sync/atomic"

	"github.com/ledgerwatch/turbodb/status"
)

type state int32

const (
	stateInit state = iota
	stateWaiting
	stateFinished
)

// shared is the state machine described in §4.1: Init -> Waiting -> Finished,
// transitions performed with release-store/acquire-load of an atomic so the
// side that loses the race to transition always observes the other side's
// installed continuation.
type shared[T any] struct {
	st   atomic.Int32
	mu   sync.Mutex
	cond *sync.Cond

	value status.Expected[T]

	// continuation installed by the Future side while st == stateWaiting.
	cb func(status.Expected[T])

	promiseAlive atomic.Bool
}

func newShared[T any]() *shared[T] {
	s := &shared[T]{}
	s.cond = sync.NewCond(&s.mu)
	s.promiseAlive.Store(true)
	return s
}

func (s *shared[T]) finish(v status.Expected[T]) {
	s.mu.Lock()
	if state(s.st.Load()) == stateFinished {
		s.mu.Unlock()
		return
	}
	s.value = v
	s.st.Store(int32(stateFinished))
	cb := s.cb
	s.mu.Unlock()
	s.cond.Broadcast()
	if cb != nil {
		cb(v)
	}
}

// Future is the read side of the shared state.
type Future[T any] struct {
	s *shared[T]
}

// Promise is the write side of the shared state.
type Promise[T any] struct {
	s      *shared[T]
	filled bool
}

// Make returns a linked Promise/Future pair, per §4.1's factory contract.
func Make[T any]() (Promise[T], Future[T]) {
	s := newShared[T]()
	return Promise[T]{s: s}, Future[T]{s: s}
}

// Ready builds an already-completed Future directly from a value. ReadyErr
// and ReadyExpected build one from a Status or an Expected[T] (§4.1).
func Ready[T any](v T) Future[T] {
	s := newShared[T]()
	s.value = status.Ok(v)
	s.st.Store(int32(stateFinished))
	return Future[T]{s: s}
}

// ReadyErr builds an already-failed Future from a Status.
func ReadyErr[T any](st status.Status) Future[T] {
	s := newShared[T]()
	s.value = status.Err[T](st)
	s.st.Store(int32(stateFinished))
	return Future[T]{s: s}
}

// ReadyExpected builds an already-completed Future from an Expected[T].
func ReadyExpected[T any](e status.Expected[T]) Future[T] {
	s := newShared[T]()
	s.value = e
	s.st.Store(int32(stateFinished))
	return Future[T]{s: s}
}

// IsReady reports whether the future has already completed.
func (f Future[T]) IsReady() bool {
	return state(f.s.st.Load()) == stateFinished
}

// Get blocks until the future is ready and returns the value, panicking with
// the Status if the promise resolved to an error. Exactly one terminal
// observer (Get/GetNoThrow/GetAsync/a chaining combinator) may be used per
// future, per §4.1.
func (f Future[T]) Get() T {
	e := f.GetNoThrow()
	if !e.IsOk() {
		panic(e.Status())
	}
	return e.MustValue()
}

// GetNoThrow blocks until ready and returns the Expected[T] without panicking.
func (f Future[T]) GetNoThrow() status.Expected[T] {
	s := f.s
	s.mu.Lock()
	for state(s.st.Load()) != stateFinished {
		s.cond.Wait()
	}
	v := s.value
	s.mu.Unlock()
	return v
}

// GetAsync invokes cb exactly once with the Expected[T], either inline if the
// future is already ready or on the thread that fulfills the paired promise.
// cb must not panic (the "noexcept" requirement of §4.1); any panic would
// propagate on the fulfilling goroutine.
func (f Future[T]) GetAsync(cb func(status.Expected[T])) {
	s := f.s
	s.mu.Lock()
	if state(s.st.Load()) == stateFinished {
		v := s.value
		s.mu.Unlock()
		cb(v)
		return
	}
	s.st.CompareAndSwap(int32(stateInit), int32(stateWaiting))
	s.cb = cb
	s.mu.Unlock()
}

// Then chains a continuation that runs once f resolves successfully,
// returning a Future of the continuation's result. If f resolves to an
// error, the callback is skipped and the error propagates (§4.1). Then does
// not unwrap: a continuation returning a Future[U] yields a
// Future[Future[U]]; ThenFuture chains such a continuation.
func Then[T, U any](f Future[T], fn func(T) U) Future[U] {
	p, fu := Make[U]()
	f.GetAsync(func(e status.Expected[T]) {
		if !e.IsOk() {
			p.SetError(e.Status())
			return
		}
		p.EmplaceValue(fn(e.MustValue()))
	})
	return fu
}

// ThenFuture is Then for continuations that themselves return a Future[U],
// implementing the auto-unwrap behavior of §4.1.
func ThenFuture[T, U any](f Future[T], fn func(T) Future[U]) Future[U] {
	p, fu := Make[U]()
	f.GetAsync(func(e status.Expected[T]) {
		if !e.IsOk() {
			p.SetError(e.Status())
			return
		}
		inner := fn(e.MustValue())
		inner.GetAsync(func(ie status.Expected[U]) {
			p.setExpected(ie)
		})
	})
	return fu
}

// OnCompletion registers cb to run (inline or on the fulfilling thread) with
// the terminal Expected[T], regardless of success or failure.
func (f Future[T]) OnCompletion(cb func(status.Expected[T])) {
	f.GetAsync(cb)
}

// OnError registers cb to run only when f resolves to a failure.
func (f Future[T]) OnError(cb func(status.Status)) Future[T] {
	p, fu := Make[T]()
	f.GetAsync(func(e status.Expected[T]) {
		if !e.IsOk() {
			cb(e.Status())
		}
		p.setExpected(e)
	})
	return fu
}

// IgnoreValue discards the value, keeping only success/failure.
func (f Future[T]) IgnoreValue() Future[struct{}] {
	return Then(f, func(T) struct{} { return struct{}{} })
}

// EmplaceValue fulfills the promise with a value.
func (p *Promise[T]) EmplaceValue(v T) {
	p.setExpected(status.Ok(v))
}

// SetError fulfills the promise with a failure Status.
func (p *Promise[T]) SetError(st status.Status) {
	p.setExpected(status.Err[T](st))
}

func (p *Promise[T]) setExpected(e status.Expected[T]) {
	if p.filled {
		return
	}
	p.filled = true
	p.s.promiseAlive.Store(false)
	p.s.finish(e)
}

// Release detaches the promise from its future without fulfilling it. If the
// future is not otherwise resolved, it completes with BrokenPromise, per
// §4.1's "destroying a Promise without setting a value" contract. Go has no
// destructors, so callers must call Release explicitly (e.g. via defer) when
// abandoning a promise — this is the Go-idiomatic stand-in for the C++
// destructor-triggered broken-promise behavior noted in §9.
func (p *Promise[T]) Release() {
	if p.filled {
		return
	}
	p.filled = true
	if p.s.promiseAlive.CompareAndSwap(true, false) {
		p.s.finish(status.Err[T](status.New(status.BrokenPromise, "promise destroyed without a value")))
	}
}
