package status

import "testing"

// P5: for every ErrorCode C, FromString(C.String()) == C.
func TestErrorCodeRoundTrip(t *testing.T) {
	for c := OK; c < numErrorCodes; c++ {
		name := c.String()
		got, ok := FromString(name)
		if !ok {
			t.Fatalf("FromString(%q) not found for code %d", name, c)
		}
		if got != c {
			t.Fatalf("round trip mismatch: %d -> %q -> %d", c, name, got)
		}
	}
}

func TestExpectedCombinators(t *testing.T) {
	ok := Ok(2)
	doubled := Map(ok, func(v int) int { return v * 2 })
	if v, isOk := doubled.Value(); !isOk || v != 4 {
		t.Fatalf("Map: got %v, %v", v, isOk)
	}

	failed := Err[int](New(LimitExceeded, "too deep"))
	chained := AndThen(failed, func(v int) Expected[int] { return Ok(v + 1) })
	if chained.IsOk() || chained.Status().Code != LimitExceeded {
		t.Fatalf("AndThen should short-circuit on error, got %+v", chained)
	}

	recovered := OrElse(failed, func(st Status) Expected[int] { return Ok(0) })
	if !recovered.IsOk() {
		t.Fatalf("OrElse should recover, got %+v", recovered)
	}

	remapped := MapError(failed, func(st Status) Status { return New(BadChangeset, st.Reason) })
	if remapped.Status().Code != BadChangeset {
		t.Fatalf("MapError did not rewrite code: %+v", remapped)
	}
}

func TestNoThrowCall(t *testing.T) {
	e := NoThrowCall(func() (int, error) {
		panic("boom")
	})
	if e.IsOk() || e.Status().Code != UnknownError {
		t.Fatalf("expected UnknownError from recovered panic, got %+v", e)
	}
}

func TestStatusEquality(t *testing.T) {
	a := New(BadProgress, "went backwards")
	b := New(BadProgress, "went backwards")
	c := New(BadProgress, "different reason")
	if !a.Equal(b) {
		t.Fatalf("expected equal statuses")
	}
	if a.Equal(c) {
		t.Fatalf("expected unequal statuses")
	}
}
