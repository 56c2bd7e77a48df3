package history

import (
	"testing"

	"github.com/ledgerwatch/turbodb/changeset"
	"github.com/ledgerwatch/turbodb/storage"
)

func newTestClient(t *testing.T) (*storage.MemStorage, *Client) {
	t.Helper()
	store, err := storage.NewMemStorage()
	if err != nil {
		t.Fatalf("NewMemStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	tick := uint64(0)
	c := NewClient(store, func() uint64 { tick++; return tick })
	return store, c
}

func commitLocal(t *testing.T, store *storage.MemStorage, c *Client, ctBytes, changesetPlain []byte) uint64 {
	t.Helper()
	wtx, err := store.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	v, err := c.AppendLocal(wtx, ctBytes, changesetPlain)
	if err != nil {
		t.Fatalf("AppendLocal: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return v
}

// Seed scenario 1: local append and upload drain.
func TestScenarioLocalAppendAndUploadDrain(t *testing.T) {
	store, c := newTestClient(t)

	wtx, _ := store.BeginWrite()
	if _, err := c.SetClientFileIdentInWT(wtx, ClientFileIdent{ID: 7, Salt: 1}, false); err != nil {
		t.Fatalf("SetClientFileIdentInWT: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ten := make([]byte, 10)
	for i := 0; i < 3; i++ {
		commitLocal(t, store, c, nil, ten)
	}

	cursor, batch, _, err := c.FindUploadableChangesets(UploadCursor{}, ^uint64(0))
	if err != nil {
		t.Fatalf("FindUploadableChangesets: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 uploadable entries, got %d", len(batch))
	}
	var total int
	for i, u := range batch {
		if u.ClientVersion != uint64(i)+2 { // +1 for the empty ident-assignment entry, +1 for 1-based version
			t.Fatalf("unexpected client version %d at index %d", u.ClientVersion, i)
		}
		if u.OriginFileIdent != 0 {
			t.Fatalf("expected local entries, got origin_file_ident %d", u.OriginFileIdent)
		}
		total += len(u.Raw)
	}
	if total != 30 {
		t.Fatalf("expected cumulative size 30, got %d", total)
	}
	if cursor.ClientVersion != 4 {
		t.Fatalf("expected cursor at version 4, got %d", cursor.ClientVersion)
	}
}

// P1: history parallel-array lengths always agree. Exercised indirectly:
// loadRoot itself fatals on mismatch, so successfully loading after a
// sequence of mixed operations is the property check.
func TestHistoryLengthsStayConsistent(t *testing.T) {
	store, c := newTestClient(t)
	for i := 0; i < 5; i++ {
		commitLocal(t, store, c, []byte("ct"), []byte("local-changeset"))
	}
	rtx, err := store.BeginRead()
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	defer rtx.Close()
	if _, err := loadRoot(rtx); err != nil {
		t.Fatalf("loadRoot: %v", err)
	}
}

// P2: progress fields are non-decreasing; attempts to decrease surface
// BadProgress.
func TestSetSyncProgressRejectsRegression(t *testing.T) {
	store, c := newTestClient(t)
	wtx, _ := store.BeginWrite()
	if err := c.SetSyncProgress(wtx, Progress{Download: DownloadCursor{ServerVersion: 10}}, nil); err != nil {
		t.Fatalf("SetSyncProgress: %v", err)
	}
	wtx.Commit()

	wtx2, _ := store.BeginWrite()
	err := c.SetSyncProgress(wtx2, Progress{Download: DownloadCursor{ServerVersion: 5}}, nil)
	wtx2.Rollback()
	if err == nil {
		t.Fatalf("expected error for decreasing progress")
	}
}

// Seed scenario 3 (conservative outcome): trimming only removes a leading
// run of upload-skippable entries, stopping at the first local non-empty
// entry.
func TestTrimStopsAtFirstNonSkippableLocalEntry(t *testing.T) {
	store, c := newTestClient(t)
	commitLocal(t, store, c, nil, []byte("a"))
	commitLocal(t, store, c, nil, []byte("b"))
	commitLocal(t, store, c, nil, []byte("c"))

	wtx, _ := store.BeginWrite()
	if err := c.SetSyncProgress(wtx, Progress{Upload: UploadCursor{ClientVersion: 2}}, nil); err != nil {
		t.Fatalf("SetSyncProgress: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, _ := store.BeginRead()
	defer rtx.Close()
	r, err := loadRoot(rtx)
	if err != nil {
		t.Fatalf("loadRoot: %v", err)
	}
	if len(r.entries) != 3 {
		t.Fatalf("expected no trimming (all entries are local and non-empty), got %d entries", len(r.entries))
	}
}

// Seed scenario 4: client-reset fix-up rewrites GlobalKey{hi:0} in stored
// local changesets.
func TestClientResetFixUpRewritesGlobalKey(t *testing.T) {
	store, c := newTestClient(t)

	plain := changeset.Encode([]changeset.Instruction{
		{Op: changeset.OpObject, Table: "Person", Key: changeset.GlobalKey{Hi: 0, Lo: 42}},
	})
	commitLocal(t, store, c, nil, plain)

	wtx, _ := store.BeginWrite()
	v, err := c.SetClientFileIdentInWT(wtx, ClientFileIdent{ID: 5, Salt: 9}, true)
	if err != nil {
		t.Fatalf("SetClientFileIdentInWT: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_ = v

	rtx, _ := store.BeginRead()
	defer rtx.Close()
	r, err := loadRoot(rtx)
	if err != nil {
		t.Fatalf("loadRoot: %v", err)
	}
	got, _, err := decompress(r.entries[0].changeset)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	instrs, err := changeset.Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instrs[0].Key.Hi != 5 {
		t.Fatalf("expected fixed-up Hi=5, got %d", instrs[0].Key.Hi)
	}
}

func TestFindUploadableChangesetsAlwaysEmitsAtLeastOne(t *testing.T) {
	store, c := newTestClient(t)
	big := make([]byte, 20<<20) // 20 MiB, larger than the 16 MiB hard limit
	commitLocal(t, store, c, nil, big)
	_, batch, _, err := c.FindUploadableChangesets(UploadCursor{}, ^uint64(0))
	if err != nil {
		t.Fatalf("FindUploadableChangesets: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected exactly one oversized changeset to still be emitted, got %d", len(batch))
	}
}

func TestMigrateSchemaRecompressesLegacyEntries(t *testing.T) {
	store, c := newTestClient(t)
	wtx, _ := store.BeginWrite()
	r, err := loadRoot(wtx)
	if err != nil {
		t.Fatalf("loadRoot: %v", err)
	}
	// Simulate a pre-migration file: raw, unframed bytes in the changeset
	// slot (as if written by schema version 11).
	r.entries = append(r.entries, entry{changeset: []byte("raw-legacy-bytes")})
	if err := r.save(wtx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	wtx2, _ := store.BeginWrite()
	if err := c.MigrateSchema(wtx2); err != nil {
		t.Fatalf("MigrateSchema: %v", err)
	}
	if err := wtx2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, _ := store.BeginRead()
	defer rtx.Close()
	r2, err := loadRoot(rtx)
	if err != nil {
		t.Fatalf("loadRoot: %v", err)
	}
	plain, _, err := decompress(r2.entries[0].changeset)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(plain) != "raw-legacy-bytes" {
		t.Fatalf("expected migrated bytes to round-trip, got %q", plain)
	}
}
