package history

import "github.com/ledgerwatch/turbodb/storage"

// BaseVersion returns the sync-history base version (snapshot_version -
// sync_history_size), the lower bound §4.8 step 3 clamps incoming
// last_integrated_remote_version values against.
func (c *Client) BaseVersion(wtx storage.WriteTxn) uint64 {
	r, err := loadRoot(wtx)
	if err != nil {
		return 0
	}
	return r.base
}

// AddDownloadedBytes accumulates delta into progress_downloaded_bytes,
// using the original wire size reported by the integration caller
// (§4.7.5).
func (c *Client) AddDownloadedBytes(wtx storage.WriteTxn, delta uint64) error {
	r, err := loadRoot(wtx)
	if err != nil {
		return err
	}
	r.byteCounters.Downloaded += delta
	return r.save(wtx)
}
