package history

import (
	"github.com/c2h5oh/datasize"
)

// softUploadLimit and hardUploadLimit are the §4.7.1 batching limits for
// find_uploadable_changesets: stop once the soft limit is reached, never
// cross the hard limit except for the one changeset that is always
// emitted even alone.
var (
	softUploadLimit = uint64(128 * datasize.KB)
	hardUploadLimit = uint64(16 * datasize.MB)
)

// UploadChangeset is one batched entry returned by FindUploadableChangesets,
// decompressed on demand per §4.7.1.
type UploadChangeset struct {
	OriginTimestamp             uint64
	OriginFileIdent             uint64
	ClientVersion               uint64
	LastIntegratedRemoteVersion uint64
	Raw                         []byte
}

// FindUploadableChangesets scans forward from cursor, skipping non-local
// and empty entries, and returns the next batch plus the cursor position
// to resume from and the server version "locked" for this batch (the
// download server version observed at scan start).
func (c *Client) FindUploadableChangesets(cursor UploadCursor, endVersion uint64) (UploadCursor, []UploadChangeset, uint64, error) {
	rtx, err := c.store.BeginRead()
	if err != nil {
		return cursor, nil, 0, err
	}
	defer rtx.Close()
	r, err := loadRoot(rtx)
	if err != nil {
		return cursor, nil, 0, err
	}

	lockedServerVersion := r.progress.Download.ServerVersion
	newCursor := cursor
	var batch []UploadChangeset
	var total uint64

	for i, e := range r.entries {
		v := r.base + uint64(i) + 1
		if v <= cursor.ClientVersion {
			continue
		}
		if v > endVersion {
			break
		}

		if !e.isLocal() {
			newCursor.ClientVersion = v
			newCursor.LastIntegratedServerVersion = e.remoteVersion
			continue
		}

		plain, n, err := decompress(e.changeset)
		if err != nil {
			return cursor, nil, 0, err
		}
		if n == 0 {
			newCursor.ClientVersion = v
			newCursor.LastIntegratedServerVersion = e.remoteVersion
			continue
		}

		if len(batch) > 0 && total+n > hardUploadLimit {
			break
		}

		batch = append(batch, UploadChangeset{
			OriginTimestamp:             e.originTimestamp,
			OriginFileIdent:             e.originFileIdent,
			ClientVersion:               v,
			LastIntegratedRemoteVersion: e.remoteVersion,
			Raw:                         plain,
		})
		total += n
		newCursor.ClientVersion = v
		newCursor.LastIntegratedServerVersion = e.remoteVersion

		if total >= softUploadLimit {
			break
		}
	}

	return newCursor, batch, lockedServerVersion, nil
}
