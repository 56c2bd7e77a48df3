package history

import (
	"github.com/ledgerwatch/turbodb/changeset"
	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/storage"
)

// SetClientFileIdentInWT assigns this peer's file identity and salt,
// zeroes the download/upload client cursors, and produces an empty
// changeset entry (§4.7.1). When fixUpObjectIDs is set, every unuploaded
// local changeset already in history is rewritten per §4.7.4: any
// GlobalKey{hi=0, lo} is replaced with {hi=ident, lo}, and
// uploadable_bytes is adjusted by the net size delta.
func (c *Client) SetClientFileIdentInWT(wtx storage.WriteTxn, ident ClientFileIdent, fixUpObjectIDs bool) (uint64, error) {
	if ident.ID == 0 {
		return 0, status.New(status.InvalidArgument, "client file ident must be nonzero")
	}
	r, err := loadRoot(wtx)
	if err != nil {
		return 0, err
	}

	r.clientFileIdentSalt = ident
	r.progress.Download.LastIntegratedClientVersion = 0
	r.progress.Upload.ClientVersion = 0

	if fixUpObjectIDs {
		if err := fixUpLocalEntries(r, ident.ID); err != nil {
			return 0, err
		}
	}

	appendEntryOnRoot(r, nil, nil, nil, 0, c.clock())

	if err := r.save(wtx); err != nil {
		return 0, err
	}
	return r.currentClientVersion(), nil
}

// fixUpLocalEntries implements §4.7.4 over every local, non-empty entry
// currently in history: decode, rewrite GlobalKey{hi:0} to {hi:ident}, and
// re-encode/recompress. Entries of remote origin are left untouched; the
// fix-up is idempotent since a key already carrying a nonzero Hi is never
// rewritten.
func fixUpLocalEntries(r *root, ident uint64) error {
	for i := range r.entries {
		e := &r.entries[i]
		if !e.isLocal() {
			continue
		}
		plain, oldLen, err := decompress(e.changeset)
		if err != nil {
			return err
		}
		if oldLen == 0 {
			continue
		}
		rewritten, err := changeset.RewriteGlobalKeys(plain, ident)
		if err != nil {
			return status.Newf(status.BadChangeset, "fix-up: %v", err)
		}
		e.changeset = compress(rewritten)
		r.byteCounters.Uploadable += uint64(len(rewritten)) - oldLen
	}
	return nil
}

// SetClientResetAdjustments discards all prior sync history and installs
// the adjusted changeset as the next local entry to upload, resetting
// progress cursors to the server's post-reset baseline (§4.7.1).
func (c *Client) SetClientResetAdjustments(wtx storage.WriteTxn, ident ClientFileIdent, serverVersion uint64, uploadable []byte) (uint64, error) {
	r, err := loadRoot(wtx)
	if err != nil {
		return 0, err
	}

	r.entries = nil
	r.ctHistory = nil
	r.base = r.currentClientVersion()
	r.clientFileIdentSalt = ident
	r.progress.Download.ServerVersion = serverVersion
	r.progress.Download.LastIntegratedClientVersion = r.base
	r.progress.Upload.ClientVersion = r.base
	r.progress.Upload.LastIntegratedServerVersion = serverVersion

	appendEntryOnRoot(r, nil, uploadable, nil, 0, c.clock())

	if err := r.save(wtx); err != nil {
		return 0, err
	}
	return r.currentClientVersion(), nil
}
