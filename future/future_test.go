package future

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ledgerwatch/turbodb/status"
)

// Seed scenario 6: a two-stage chain, unresolved until the promise is
// filled; the first stage returns a Future, which ThenFuture auto-unwraps
// to a plain value.
func TestChainUnwrap(t *testing.T) {
	p, f := Make[int]()

	chained := ThenFuture(f, func(x int) Future[string] { return Ready(strconv.Itoa(x)) })
	lengths := Then(chained, func(s string) int { return len(s) })

	if lengths.IsReady() {
		t.Fatalf("future should not be ready before promise is set")
	}

	p.EmplaceValue(42)

	if got := lengths.Get(); got != 2 {
		t.Fatalf("expected len(\"42\") == 2, got %d", got)
	}
}

func TestReadyFuture(t *testing.T) {
	f := Ready(7)
	if !f.IsReady() {
		t.Fatalf("Ready future should report ready immediately")
	}
	if f.Get() != 7 {
		t.Fatalf("expected 7")
	}
}

func TestBrokenPromiseOnRelease(t *testing.T) {
	p, f := Make[int]()
	p.Release()
	e := f.GetNoThrow()
	if e.IsOk() || e.Status().Code != status.BrokenPromise {
		t.Fatalf("expected BrokenPromise, got %+v", e)
	}
}

func TestGetAsyncInlineWhenReady(t *testing.T) {
	f := Ready(5)
	called := false
	f.GetAsync(func(e status.Expected[int]) {
		called = true
		if v, _ := e.Value(); v != 5 {
			t.Fatalf("unexpected value %d", v)
		}
	})
	if !called {
		t.Fatalf("callback should run inline for an already-ready future")
	}
}

// P7: for every promise/future pair, exactly one of the terminal observers
// runs, and it runs exactly once. We exercise the GetAsync path concurrently
// with EmplaceValue to check there is no double invocation.
func TestFutureFairness(t *testing.T) {
	for i := 0; i < 200; i++ {
		p, f := Make[int]()
		var calls int
		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.GetAsync(func(status.Expected[int]) {
				mu.Lock()
				calls++
				mu.Unlock()
			})
		}()
		time.Sleep(time.Microsecond)
		p.EmplaceValue(1)
		wg.Wait()
		mu.Lock()
		if calls != 1 {
			t.Fatalf("callback invoked %d times, want 1", calls)
		}
		mu.Unlock()
	}
}

func TestOnErrorRunsOnlyOnFailure(t *testing.T) {
	errF := ReadyErr[int](status.New(status.RuntimeError, "boom"))
	var sawErr bool
	chained := errF.OnError(func(st status.Status) { sawErr = true })
	if !sawErr {
		t.Fatalf("OnError should fire for a failed future")
	}
	if chained.GetNoThrow().IsOk() {
		t.Fatalf("chained future should still carry the error")
	}

	okF := Ready(3)
	sawErr = false
	okF.OnError(func(status.Status) { sawErr = true })
	if sawErr {
		t.Fatalf("OnError should not fire for a successful future")
	}
}
