package storage

import "testing"

func newTestStore(t *testing.T) *MemStorage {
	t.Helper()
	s, err := NewMemStorage()
	if err != nil {
		t.Fatalf("NewMemStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteCommitThenRead(t *testing.T) {
	s := newTestStore(t)

	wtx, err := s.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := wtx.Put(SlotChangesets, []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, err := s.BeginRead()
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Close()
	got, err := rtx.Get(SlotChangesets)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestReaderIsolatedFromLaterWriter(t *testing.T) {
	s := newTestStore(t)

	wtx, _ := s.BeginWrite()
	_ = wtx.Put(SlotRemoteVersions, []byte{1})
	_ = wtx.Commit()

	rtx, err := s.BeginRead()
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Close()

	wtx2, _ := s.BeginWrite()
	_ = wtx2.Put(SlotRemoteVersions, []byte{2})
	_ = wtx2.Commit()

	got, err := rtx.Get(SlotRemoteVersions)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("reader should still observe pre-commit snapshot, got %v", got)
	}
}

func TestMissingSlotReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	rtx, err := s.BeginRead()
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Close()
	if _, err := rtx.Get(SlotCookedHistory); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSecondWriterBlocksUntilFirstFinishes(t *testing.T) {
	s := newTestStore(t)
	wtx, err := s.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	done := make(chan struct{})
	go func() {
		wtx2, err := s.BeginWrite()
		if err != nil {
			t.Errorf("BeginWrite 2: %v", err)
			close(done)
			return
		}
		_ = wtx2.Rollback()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("second writer should not proceed while first is open")
	default:
	}

	if err := wtx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	<-done
}

func TestGrowBeyondInitialMapping(t *testing.T) {
	s := newTestStore(t)
	big := make([]byte, 1<<17) // larger than the 64KiB initial mapping
	for i := range big {
		big[i] = byte(i)
	}
	wtx, _ := s.BeginWrite()
	if err := wtx.Put(SlotCTHistory, big); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, _ := s.BeginRead()
	defer rtx.Close()
	got, err := rtx.Get(SlotCTHistory)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != len(big) {
		t.Fatalf("expected %d bytes, got %d", len(big), len(got))
	}
}
