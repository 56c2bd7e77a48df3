// Package sync implements C8, remote changeset integration: folding a
// batch of server-originated changesets into the local history
// (history.Client), rebasing them against any unintegrated local
// commits, and advancing sync progress.
package sync

import (
	"fmt"

	"github.com/ledgerwatch/turbodb/changeset"
	"github.com/ledgerwatch/turbodb/history"
	"github.com/ledgerwatch/turbodb/log"
	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/storage"
)

// RemoteChangeset is one server-originated changeset awaiting integration.
type RemoteChangeset struct {
	// TransformSequence is assigned by the caller to match the
	// changeset's position in the batch (§4.8 step 2); IntegrateServerChangesets
	// re-derives and overwrites it from slice order, so callers may leave
	// it zero.
	TransformSequence int

	OriginFileIdent             uint64
	OriginTimestamp             uint64
	LastIntegratedRemoteVersion uint64
	// Bytes is the changeset's instruction stream as received from the
	// server, decoded as-is by step 1; OriginalWireSize is its size on the
	// wire, used for the downloaded-bytes counter (§4.7.5).
	Bytes            []byte
	OriginalWireSize uint64
}

// BatchState tells IntegrateServerChangesets whether this call's batch is
// the last piece of a larger bootstrap exchange (§4.8 step 8).
type BatchState int

const (
	MoreToCome BatchState = iota
	LastInBatch
)

// Transformer rebases a remote changeset against the set of local entries
// in the merge window [remote.LastIntegratedRemoteVersion, localVersion],
// producing the rebased remote changeset to apply plus a reciprocal
// transform to store alongside it for transformer reuse (GLOSSARY:
// "Reciprocal transform"). The concrete operational-transform algorithm is
// an external collaborator here, the same way the low-level page allocator
// is external to the history engine (§1's OUT OF SCOPE list) — this
// interface is where a real OT engine plugs in.
type Transformer interface {
	Transform(local []history.LocalChange, remote RemoteChangeset) (rebased []byte, reciprocal []byte, err error)
}

// Applier applies a rebased remote changeset to the live tables, with
// replication suppressed so the write is not mistaken for a local commit
// (§4.8 step 5). Table mutation itself is the out-of-scope B+-tree layer;
// this is the seam a real implementation plugs into.
type Applier interface {
	Apply(wtx storage.WriteTxn, rebased []byte) error
}

// Reporter receives the old and new snapshot versions after a successful
// commit (§4.8 step 10).
type Reporter interface {
	ReportVersions(old, new uint64)
}

// IntegrateServerChangesets implements §4.8 end to end. It opens exactly
// one write transaction, performs steps 1-9, lets runInWriteTr inject any
// final mutations, and commits.
func IntegrateServerChangesets(
	store storage.Paged,
	h *history.Client,
	progress history.Progress,
	downloadableBytes *uint64,
	batch []RemoteChangeset,
	state BatchState,
	transformer Transformer,
	applier Applier,
	reporter Reporter,
	logger log.Logger,
	runInWriteTr func(wtx storage.WriteTxn) error,
) error {
	if logger == nil {
		logger = log.New("component", "sync")
	}

	// Step 1: structural validation (parse). A changeset that doesn't
	// decode under the minimal instruction model is rejected outright.
	for _, rc := range batch {
		if _, err := changeset.Decode(rc.Bytes); err != nil {
			return integrationError("parse", err)
		}
	}

	// Step 2: assign transform_sequence by position, then order by it (see
	// queue.go); since the sequence is the position, the batch order is kept.
	seq := make([]RemoteChangeset, len(batch))
	copy(seq, batch)
	for i := range seq {
		seq[i].TransformSequence = i
	}
	ordered := orderByTransformSequence(seq)

	wtx, err := store.BeginWrite()
	if err != nil {
		return fmt.Errorf("sync: begin write: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			wtx.Rollback()
		}
	}()

	oldVersion, _, _, err := h.GetStatus()
	if err != nil {
		return err
	}

	var combined []byte
	var reciprocals [][]byte
	var downloadedDelta uint64
	var lastOriginFileIdent, lastOriginTimestamp uint64

	base := h.BaseVersion(wtx)

	for _, rc := range ordered {
		// Step 3: clamp last_integrated_remote_version to >= history base.
		clamped := rc
		if clamped.LastIntegratedRemoteVersion < base {
			clamped.LastIntegratedRemoteVersion = base
		}

		// Step 4: transform against local history in the merge window.
		locals, err := h.GetLocalChanges(clamped.LastIntegratedRemoteVersion)
		if err != nil {
			return integrationError("transform", err)
		}
		rebased, reciprocal, err := transformer.Transform(locals, clamped)
		if err != nil {
			return integrationError("transform", err)
		}
		reciprocals = append(reciprocals, reciprocal)

		// Step 5: apply with replication suppressed.
		if applier != nil {
			if err := applier.Apply(wtx, rebased); err != nil {
				return integrationError("apply", err)
			}
		}

		if len(combined)+len(rebased) < len(combined) {
			return integrationError("combine", fmt.Errorf("changeset size overflow"))
		}
		combined = append(combined, rebased...)

		downloadedDelta += clamped.OriginalWireSize
		lastOriginFileIdent = clamped.OriginFileIdent
		lastOriginTimestamp = clamped.OriginTimestamp
	}

	// Step 6: store the combined buffer as the next sync-history entry.
	if len(ordered) > 0 {
		combinedReciprocal := joinNonEmpty(reciprocals)
		if _, err := h.AppendRemote(wtx, nil, combined, combinedReciprocal, lastOriginFileIdent, lastOriginTimestamp); err != nil {
			return err
		}
	}

	// Step 7: downloaded_bytes accounting.
	if downloadedDelta > 0 {
		if err := h.AddDownloadedBytes(wtx, downloadedDelta); err != nil {
			return err
		}
	}

	// Step 8: advance progress only on the last message of a bootstrap.
	if state == LastInBatch {
		if err := h.SetSyncProgress(wtx, progress, downloadableBytes); err != nil {
			return err
		}
	}

	// Step 9: caller-injected mutations.
	if runInWriteTr != nil {
		if err := runInWriteTr(wtx); err != nil {
			return err
		}
	}

	// Step 10: commit and report.
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("sync: commit: %w", err)
	}
	committed = true

	newVersion, _, _, err := h.GetStatus()
	if err != nil {
		return err
	}
	if reporter != nil {
		reporter.ReportVersions(oldVersion, newVersion)
	}
	logger.Info("integrated server changesets", "count", len(ordered), "old_version", oldVersion, "new_version", newVersion)
	return nil
}

// joinNonEmpty concatenates every non-empty byte slice in parts. Used to
// fold a batch's per-changeset reciprocal transforms into the single
// combined blob stored alongside the combined changeset entry.
func joinNonEmpty(parts [][]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func integrationError(stage string, err error) error {
	return status.Newf(status.BadChangeset, "integration failed at %s: %v", stage, err)
}
