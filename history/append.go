package history

import "github.com/ledgerwatch/turbodb/storage"

// appendEntryOnRoot is the shared bookkeeping of §4.7.2 applied directly to
// an already-loaded root, used both by appendEntry and by operations that
// need to append as part of a larger root mutation (client-reset, for
// instance) without an extra load/save round trip.
func appendEntryOnRoot(r *root, ctBytes, changesetPlain, reciprocalPlain []byte, originFileIdent, originTimestamp uint64) {
	r.ctHistory = append(r.ctHistory, ctBytes)

	e := entry{
		changeset:       compress(changesetPlain),
		remoteVersion:   r.progress.Download.ServerVersion,
		originFileIdent: originFileIdent,
		originTimestamp: originTimestamp,
	}
	if len(reciprocalPlain) > 0 {
		e.reciprocalTransform = compress(reciprocalPlain)
	}
	r.entries = append(r.entries, e)

	if e.isLocal() {
		r.byteCounters.Uploadable += uint64(len(changesetPlain))
	}
}

// appendEntry loads the root, applies appendEntryOnRoot, and persists the
// result. The three public Append* methods below supply the three sources
// named in §4.7.2 ((a) pending remote, (b) pending reset override, (c) the
// local encoder buffer).
func (c *Client) appendEntry(wtx storage.WriteTxn, ctBytes, changesetPlain, reciprocalPlain []byte, originFileIdent, originTimestamp uint64) (uint64, error) {
	r, err := loadRoot(wtx)
	if err != nil {
		return 0, err
	}
	appendEntryOnRoot(r, ctBytes, changesetPlain, reciprocalPlain, originFileIdent, originTimestamp)
	if err := r.save(wtx); err != nil {
		return 0, err
	}
	return r.currentClientVersion(), nil
}

// AppendLocal commits a locally-originated transaction: source (c) of
// §4.7.2, the encoder's current buffer. ctBytes is the unsynchronized
// continuous-transaction audit changeset (may be nil, stored as empty).
func (c *Client) AppendLocal(wtx storage.WriteTxn, ctBytes, changesetPlain []byte) (uint64, error) {
	return c.appendEntry(wtx, ctBytes, changesetPlain, nil, 0, c.clock())
}

// AppendClientResetOverride commits the adjusted changeset produced by
// SetClientResetAdjustments: source (b) of §4.7.2. It is accounted as a
// local entry like AppendLocal.
func (c *Client) AppendClientResetOverride(wtx storage.WriteTxn, ctBytes, changesetPlain []byte) (uint64, error) {
	return c.appendEntry(wtx, ctBytes, changesetPlain, nil, 0, c.clock())
}

// AppendRemote commits the combined rebased changeset produced by
// integrating a server batch: source (a) of §4.7.2. reciprocalPlain is the
// combined reciprocal transform to store alongside it (GLOSSARY:
// "Reciprocal transform"), may be nil. originFileIdent and originTimestamp
// are taken from the last changeset in the batch per §4.8 step 6.
func (c *Client) AppendRemote(wtx storage.WriteTxn, ctBytes, changesetPlain, reciprocalPlain []byte, originFileIdent, originTimestamp uint64) (uint64, error) {
	return c.appendEntry(wtx, ctBytes, changesetPlain, reciprocalPlain, originFileIdent, originTimestamp)
}
