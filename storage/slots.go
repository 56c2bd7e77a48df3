package storage

// Root slot indices of the persistent history root array, §3.6. These are
// an on-disk ABI: preserve indices 0-18 exactly; adding a new slot requires
// a schema-version bump and a migration entry (see history/migrate.go),
// mirroring the teacher's own "Buckets list is sorted in init, app panics if
// a bucket is missing" discipline for its own named-slot bucket set
// (common/dbutils/bucket.go) — here the discipline is "never renumber"
// rather than "never rename".
const (
	SlotCTHistory                      = 0
	SlotClientFileIdentSalt            = 1
	SlotChangesets                     = 2
	SlotReciprocalTransforms           = 3
	SlotRemoteVersions                 = 4
	SlotOriginFileIdents               = 5
	SlotOriginTimestamps               = 6
	SlotProgressDownloadServerVersion  = 7
	SlotProgressDownloadClientVersion  = 8
	SlotProgressLatestServerVersion    = 9
	SlotProgressLatestServerVersionSalt = 10
	SlotProgressUploadClientVersion    = 11
	SlotProgressUploadServerVersion    = 12
	SlotProgressDownloadedBytes        = 13
	SlotProgressDownloadableBytes      = 14
	SlotProgressUploadedBytes          = 15
	SlotProgressUploadableBytes        = 16
	SlotSchemaVersions                 = 17
	SlotCookedHistory                  = 18 // reserved, always zero

	// NumSlots is the fixed width of the persistent history root array.
	NumSlots = 19
)

// SlotNames gives a human-readable name per slot, for diagnostics and
// migration logging.
var SlotNames = [NumSlots]string{
	SlotCTHistory:                       "ct_history",
	SlotClientFileIdentSalt:             "client_file_ident_salt",
	SlotChangesets:                      "changesets",
	SlotReciprocalTransforms:            "reciprocal_transforms",
	SlotRemoteVersions:                  "remote_versions",
	SlotOriginFileIdents:                "origin_file_idents",
	SlotOriginTimestamps:                "origin_timestamps",
	SlotProgressDownloadServerVersion:   "progress_download_server_version",
	SlotProgressDownloadClientVersion:   "progress_download_client_version",
	SlotProgressLatestServerVersion:     "progress_latest_server_version",
	SlotProgressLatestServerVersionSalt: "progress_latest_server_version_salt",
	SlotProgressUploadClientVersion:     "progress_upload_client_version",
	SlotProgressUploadServerVersion:     "progress_upload_server_version",
	SlotProgressDownloadedBytes:         "progress_downloaded_bytes",
	SlotProgressDownloadableBytes:       "progress_downloadable_bytes",
	SlotProgressUploadedBytes:           "progress_uploaded_bytes",
	SlotProgressUploadableBytes:         "progress_uploadable_bytes",
	SlotSchemaVersions:                  "schema_versions",
	SlotCookedHistory:                   "cooked_history",
}
