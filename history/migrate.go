package history

import (
	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/storage"
)

// legacySchemaVersion is the version the 11->12 migration upgrades from:
// at that version the changesets/reciprocal_transforms arrays held raw
// uncompressed blobs with no compression framing at all.
const legacySchemaVersion = 11

// MigrateSchema implements §4.7.6: if the stored schema version is older
// than CurrentSchemaVersion it must be upgradable; a version newer than
// this code understands is fatal. The only documented migration,
// 11 -> 12, re-reads every changeset/reciprocal-transform entry as an
// uncompressed blob and writes it back through the current codec.
func (c *Client) MigrateSchema(wtx storage.WriteTxn) error {
	r, err := loadRoot(wtx)
	if err != nil {
		return err
	}

	stored := legacySchemaVersion
	if n := len(r.schemaVersions); n > 0 {
		stored = int(r.schemaVersions[n-1].schemaVersion)
	} else if len(r.entries) == 0 {
		// A brand new, empty file has nothing to migrate; record the
		// current version directly.
		stored = CurrentSchemaVersion
	}

	if stored > CurrentSchemaVersion {
		status.Fatal("history: stored schema version %d is newer than this code's %d", stored, CurrentSchemaVersion)
	}
	if stored == CurrentSchemaVersion {
		return nil
	}
	if stored < legacySchemaVersion {
		status.Fatal("history: stored schema version %d predates the oldest supported version %d", stored, legacySchemaVersion)
	}

	for i := range r.entries {
		r.entries[i].changeset = compress(r.entries[i].changeset)
		if len(r.entries[i].reciprocalTransform) > 0 {
			r.entries[i].reciprocalTransform = compress(r.entries[i].reciprocalTransform)
		}
	}

	r.schemaVersions = append(r.schemaVersions, schemaVersionEntry{
		schemaVersion:   CurrentSchemaVersion,
		libraryVersion:  LibraryVersion,
		snapshotVersion: r.currentClientVersion(),
		timestamp:       c.clock(),
	})

	return r.save(wtx)
}
