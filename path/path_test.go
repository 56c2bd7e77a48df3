package path

import "testing"

func TestString(t *testing.T) {
	p := Path{ColumnElem("dogs"), IndexElem(First), WildcardElem(), DictKeyElem("k")}
	got := p.String()
	want := "[dogs][FIRST][*]['k']"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestIsPrefixOf(t *testing.T) {
	a := Path{ColumnElem("dogs")}
	b := Path{ColumnElem("dogs"), ColumnElem("breed")}
	if !a.IsPrefixOf(b) {
		t.Fatalf("a should be a prefix of b")
	}
	if b.IsPrefixOf(a) {
		t.Fatalf("b should not be a prefix of a")
	}
}

func TestResolveIndex(t *testing.T) {
	if i, err := ResolveIndex(First, 3); err != nil || i != 0 {
		t.Fatalf("FIRST should resolve to 0, got %d err=%v", i, err)
	}
	if i, err := ResolveIndex(Last, 3); err != nil || i != 2 {
		t.Fatalf("LAST should resolve to size-1=2, got %d err=%v", i, err)
	}
	if _, err := ResolveIndex(First, 0); err == nil {
		t.Fatalf("FIRST on empty collection should error")
	}
}

func TestCheckLevel(t *testing.T) {
	if err := CheckLevel(MaxNest - 1); err != nil {
		t.Fatalf("should be within limit: %v", err)
	}
	if err := CheckLevel(MaxNest); err == nil {
		t.Fatalf("should exceed limit")
	}
}
