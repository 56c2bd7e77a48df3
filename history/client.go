package history

import (
	"time"

	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/storage"
)

// Clock returns milliseconds since the Unix epoch, the pluggable clock
// §4.7.2 calls out ("origin_timestamp comes from a pluggable clock
// function, default wall clock milliseconds").
type Clock func() uint64

func wallClockMillis() uint64 { return uint64(time.Now().UnixMilli()) }

// Client is the history engine bound to one paged storage file (C7).
type Client struct {
	store storage.Paged
	clock Clock
}

// NewClient binds a history engine to store, per §4.7.1's initialize
// operation: "bind to an existing file; if top-ref is null, defer
// allocation until first write." Allocation here is simply "the slots
// read back as their zero values until the first Put", so no eager
// initialization work is required.
func NewClient(store storage.Paged, clock Clock) *Client {
	if clock == nil {
		clock = wallClockMillis
	}
	return &Client{store: store, clock: clock}
}

// GetStatus returns the (current_client_version, ident, progress) snapshot.
func (c *Client) GetStatus() (uint64, ClientFileIdent, Progress, error) {
	rtx, err := c.store.BeginRead()
	if err != nil {
		return 0, ClientFileIdent{}, Progress{}, err
	}
	defer rtx.Close()
	r, err := loadRoot(rtx)
	if err != nil {
		return 0, ClientFileIdent{}, Progress{}, err
	}
	return r.currentClientVersion(), r.clientFileIdentSalt, r.progress, nil
}

// GetUploadDownloadBytes returns the four cumulative byte counters.
func (c *Client) GetUploadDownloadBytes() (ByteCounters, error) {
	rtx, err := c.store.BeginRead()
	if err != nil {
		return ByteCounters{}, err
	}
	defer rtx.Close()
	r, err := loadRoot(rtx)
	if err != nil {
		return ByteCounters{}, err
	}
	return r.byteCounters, nil
}

// LocalChange is one entry returned by GetLocalChanges.
type LocalChange struct {
	Version   uint64
	Changeset []byte // decompressed
}

// GetLocalChanges returns every local entry after currentVersion, in
// commit order, decompressed.
func (c *Client) GetLocalChanges(currentVersion uint64) ([]LocalChange, error) {
	rtx, err := c.store.BeginRead()
	if err != nil {
		return nil, err
	}
	defer rtx.Close()
	r, err := loadRoot(rtx)
	if err != nil {
		return nil, err
	}
	var out []LocalChange
	for i, e := range r.entries {
		v := r.base + uint64(i) + 1
		if v <= currentVersion {
			continue
		}
		if !e.isLocal() {
			continue
		}
		plain, _, err := decompress(e.changeset)
		if err != nil {
			return nil, err
		}
		out = append(out, LocalChange{Version: v, Changeset: plain})
	}
	return out, nil
}

// RecordCurrentSchemaVersion appends an entry to the schema-versions
// sequence recording this code's history schema version, the library
// version string, the snapshot version the call occurred at, and the
// current wall-clock timestamp (§4.7.1).
func (c *Client) RecordCurrentSchemaVersion(wtx storage.WriteTxn) error {
	r, err := loadRoot(wtx)
	if err != nil {
		return err
	}
	r.schemaVersions = append(r.schemaVersions, schemaVersionEntry{
		schemaVersion:   CurrentSchemaVersion,
		libraryVersion:  LibraryVersion,
		snapshotVersion: r.currentClientVersion(),
		timestamp:       c.clock(),
	})
	return r.save(wtx)
}

func validateProgressMonotonic(old, next Progress) error {
	bad := func(field string) error {
		return status.Newf(status.BadProgress, "%s must not decrease", field)
	}
	if next.LatestServerVersion < old.LatestServerVersion {
		return bad("latest_server_version")
	}
	if next.Download.ServerVersion < old.Download.ServerVersion {
		return bad("download.server_version")
	}
	if next.Download.LastIntegratedClientVersion < old.Download.LastIntegratedClientVersion {
		return bad("download.last_integrated_client_version")
	}
	if next.Upload.ClientVersion < old.Upload.ClientVersion {
		return bad("upload.client_version")
	}
	if next.Upload.LastIntegratedServerVersion < old.Upload.LastIntegratedServerVersion {
		return bad("upload.last_integrated_server_version")
	}
	return nil
}

// SetSyncProgress validates that p is non-decreasing relative to the
// stored progress, persists it, updates the uploaded-bytes counter
// (§4.7.5: derived lazily as the upload cursor advances), optionally
// records downloadableBytes verbatim, then trims the history (§4.7.3).
func (c *Client) SetSyncProgress(wtx storage.WriteTxn, p Progress, downloadableBytes *uint64) error {
	r, err := loadRoot(wtx)
	if err != nil {
		return err
	}
	if err := validateProgressMonotonic(r.progress, p); err != nil {
		return err
	}

	oldUpload := r.progress.Upload.ClientVersion
	if p.Upload.ClientVersion > oldUpload {
		delta, err := r.sumUncompressedLocal(oldUpload, p.Upload.ClientVersion)
		if err != nil {
			return err
		}
		r.byteCounters.Uploaded += delta
	}

	r.progress = p
	if downloadableBytes != nil {
		r.byteCounters.Downloadable = *downloadableBytes
	}

	if err := c.trim(r); err != nil {
		return err
	}
	return r.save(wtx)
}

// sumUncompressedLocal sums the uncompressed sizes of local entries whose
// version is in (u0, u1], the byte-accounting rule of §4.7.5.
func (r *root) sumUncompressedLocal(u0, u1 uint64) (uint64, error) {
	var sum uint64
	for i, e := range r.entries {
		v := r.base + uint64(i) + 1
		if v <= u0 || v > u1 {
			continue
		}
		if !e.isLocal() {
			continue
		}
		n, err := uncompressedSize(e.changeset)
		if err != nil {
			return 0, err
		}
		sum += n
	}
	return sum, nil
}
