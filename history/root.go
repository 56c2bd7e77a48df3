// Package history implements the client sync history engine (C7): the
// per-file append-only record of local and remote changesets, the progress
// cursors that track how much of it has been sent/received, and the
// client-reset and schema-migration fix-up paths that rewrite it in place.
// It binds to a storage.Paged file and persists exactly the nineteen root
// slots of §3.6, via storage/slots.go's named constants.
package history

import (
	"encoding/binary"

	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/storage"
)

// CurrentSchemaVersion is this code's history schema version, compared
// against the stored `schema_versions` sequence by migrate.go.
const CurrentSchemaVersion = 12

// LibraryVersion is recorded verbatim into the schema-versions sequence by
// RecordCurrentSchemaVersion; it identifies the code, not the file format.
const LibraryVersion = "turbodb/0.1"

// ClientFileIdent is the {id, salt} pair the server assigns a peer once,
// per the GLOSSARY's "Client file identity" entry. ID is nonzero once
// assigned.
type ClientFileIdent struct {
	ID   uint64
	Salt uint64
}

// DownloadCursor is the server version acknowledged as integrated locally,
// plus the local version at the time of acknowledgement (§3.7).
type DownloadCursor struct {
	ServerVersion              uint64
	LastIntegratedClientVersion uint64
}

// UploadCursor is the local version already sent, plus its corresponding
// last-integrated server version (§3.7).
type UploadCursor struct {
	ClientVersion               uint64
	LastIntegratedServerVersion uint64
}

// Progress is the full persisted progress record of §3.7.
type Progress struct {
	LatestServerVersion     uint64
	LatestServerVersionSalt uint64
	Download                DownloadCursor
	Upload                  UploadCursor
}

// ByteCounters are the four cumulative counters of §4.7.5, surfaced by
// GetUploadDownloadBytes.
type ByteCounters struct {
	Downloaded   uint64
	Downloadable uint64
	Uploaded     uint64
	Uploadable   uint64
}

// entry is one sync-history row: the parallel arrays of slots 2-6 collapsed
// into a single record for convenience; root.save splits it back out.
type entry struct {
	changeset             []byte // compressed
	reciprocalTransform   []byte // compressed, may be empty
	remoteVersion         uint64
	originFileIdent       uint64
	originTimestamp       uint64
}

// isLocal reports whether this entry originated on this peer (§3.5).
func (e entry) isLocal() bool { return e.originFileIdent == 0 }

// isEmpty reports whether the entry's uncompressed changeset is zero
// length, the other half of the "upload-skippable" predicate (§4.7.3).
func (e entry) isEmpty() (bool, error) {
	n, err := uncompressedSize(e.changeset)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// uploadSkippable implements §4.7.3's "empty or of remote origin" rule.
func (e entry) uploadSkippable() (bool, error) {
	if !e.isLocal() {
		return true, nil
	}
	return e.isEmpty()
}

type schemaVersionEntry struct {
	schemaVersion  uint64
	libraryVersion string
	snapshotVersion uint64
	timestamp      uint64
}

// root is the fully decoded in-memory form of all nineteen persisted
// slots.
type root struct {
	ctHistory [][]byte

	clientFileIdentSalt ClientFileIdent

	entries []entry // slots 2-6, zipped

	progress     Progress     // slots 7-12
	byteCounters ByteCounters // slots 13-16

	schemaVersions []schemaVersionEntry // slot 17

	// base is the sync-history base version: snapshot_version -
	// sync_history_size, implicit in the original but tracked explicitly
	// here since this package does not model a "snapshot_version" concept
	// external to the history itself. base + len(entries) is the current
	// client version.
	base uint64
}

func (r *root) currentClientVersion() uint64 {
	return r.base + uint64(len(r.entries))
}

func loadRoot(rtx storage.ReadTxn) (*root, error) {
	r := &root{}

	if b, err := getSlot(rtx, storage.SlotCTHistory); err != nil {
		return nil, err
	} else if b != nil {
		r.ctHistory = decodeBlobSeq(b)
	}

	if b, err := getSlot(rtx, storage.SlotClientFileIdentSalt); err != nil {
		return nil, err
	} else if len(b) >= 16 {
		r.clientFileIdentSalt.ID = binary.LittleEndian.Uint64(b[0:8])
		r.clientFileIdentSalt.Salt = binary.LittleEndian.Uint64(b[8:16])
	}

	changesets, err := slotBlobSeq(rtx, storage.SlotChangesets)
	if err != nil {
		return nil, err
	}
	reciprocals, err := slotBlobSeq(rtx, storage.SlotReciprocalTransforms)
	if err != nil {
		return nil, err
	}
	remoteVersions, err := slotU64Seq(rtx, storage.SlotRemoteVersions)
	if err != nil {
		return nil, err
	}
	originFileIdents, err := slotU64Seq(rtx, storage.SlotOriginFileIdents)
	if err != nil {
		return nil, err
	}
	originTimestamps, err := slotU64Seq(rtx, storage.SlotOriginTimestamps)
	if err != nil {
		return nil, err
	}
	n := len(changesets)
	if len(reciprocals) != n || len(remoteVersions) != n || len(originFileIdents) != n || len(originTimestamps) != n {
		status.Fatal("history: persisted sync-history arrays have mismatched lengths")
	}
	r.entries = make([]entry, n)
	for i := 0; i < n; i++ {
		r.entries[i] = entry{
			changeset:           changesets[i],
			reciprocalTransform: reciprocals[i],
			remoteVersion:       remoteVersions[i],
			originFileIdent:     originFileIdents[i],
			originTimestamp:     originTimestamps[i],
		}
	}

	r.progress.Download.ServerVersion, err = slotU64(rtx, storage.SlotProgressDownloadServerVersion)
	if err != nil {
		return nil, err
	}
	r.progress.Download.LastIntegratedClientVersion, err = slotU64(rtx, storage.SlotProgressDownloadClientVersion)
	if err != nil {
		return nil, err
	}
	r.progress.LatestServerVersion, err = slotU64(rtx, storage.SlotProgressLatestServerVersion)
	if err != nil {
		return nil, err
	}
	r.progress.LatestServerVersionSalt, err = slotU64(rtx, storage.SlotProgressLatestServerVersionSalt)
	if err != nil {
		return nil, err
	}
	r.progress.Upload.ClientVersion, err = slotU64(rtx, storage.SlotProgressUploadClientVersion)
	if err != nil {
		return nil, err
	}
	r.progress.Upload.LastIntegratedServerVersion, err = slotU64(rtx, storage.SlotProgressUploadServerVersion)
	if err != nil {
		return nil, err
	}
	r.byteCounters.Downloaded, err = slotU64(rtx, storage.SlotProgressDownloadedBytes)
	if err != nil {
		return nil, err
	}
	r.byteCounters.Downloadable, err = slotU64(rtx, storage.SlotProgressDownloadableBytes)
	if err != nil {
		return nil, err
	}
	r.byteCounters.Uploaded, err = slotU64(rtx, storage.SlotProgressUploadedBytes)
	if err != nil {
		return nil, err
	}
	r.byteCounters.Uploadable, err = slotU64(rtx, storage.SlotProgressUploadableBytes)
	if err != nil {
		return nil, err
	}

	if b, err := getSlot(rtx, storage.SlotSchemaVersions); err != nil {
		return nil, err
	} else if b != nil {
		r.schemaVersions = decodeSchemaVersions(b)
	}

	// base is persisted as trailing bytes of the same blob as the client
	// file ident/salt; not part of the original's slot 1 payload, but
	// slot 1 is otherwise unused below byte 16 and the base needs a home.
	if b, err := getSlot(rtx, storage.SlotClientFileIdentSalt); err == nil && len(b) >= 24 {
		r.base = binary.LittleEndian.Uint64(b[16:24])
	}

	return r, nil
}

func (r *root) save(wtx storage.WriteTxn) error {
	if err := putSlot(wtx, storage.SlotCTHistory, encodeBlobSeq(r.ctHistory)); err != nil {
		return err
	}

	identBuf := make([]byte, 24)
	binary.LittleEndian.PutUint64(identBuf[0:8], r.clientFileIdentSalt.ID)
	binary.LittleEndian.PutUint64(identBuf[8:16], r.clientFileIdentSalt.Salt)
	binary.LittleEndian.PutUint64(identBuf[16:24], r.base)
	if err := putSlot(wtx, storage.SlotClientFileIdentSalt, identBuf); err != nil {
		return err
	}

	n := len(r.entries)
	changesets := make([][]byte, n)
	reciprocals := make([][]byte, n)
	remoteVersions := make([]uint64, n)
	originFileIdents := make([]uint64, n)
	originTimestamps := make([]uint64, n)
	for i, e := range r.entries {
		changesets[i] = e.changeset
		reciprocals[i] = e.reciprocalTransform
		remoteVersions[i] = e.remoteVersion
		originFileIdents[i] = e.originFileIdent
		originTimestamps[i] = e.originTimestamp
	}
	if err := putSlot(wtx, storage.SlotChangesets, encodeBlobSeq(changesets)); err != nil {
		return err
	}
	if err := putSlot(wtx, storage.SlotReciprocalTransforms, encodeBlobSeq(reciprocals)); err != nil {
		return err
	}
	if err := putSlot(wtx, storage.SlotRemoteVersions, encodeU64Seq(remoteVersions)); err != nil {
		return err
	}
	if err := putSlot(wtx, storage.SlotOriginFileIdents, encodeU64Seq(originFileIdents)); err != nil {
		return err
	}
	if err := putSlot(wtx, storage.SlotOriginTimestamps, encodeU64Seq(originTimestamps)); err != nil {
		return err
	}

	if err := putU64(wtx, storage.SlotProgressDownloadServerVersion, r.progress.Download.ServerVersion); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressDownloadClientVersion, r.progress.Download.LastIntegratedClientVersion); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressLatestServerVersion, r.progress.LatestServerVersion); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressLatestServerVersionSalt, r.progress.LatestServerVersionSalt); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressUploadClientVersion, r.progress.Upload.ClientVersion); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressUploadServerVersion, r.progress.Upload.LastIntegratedServerVersion); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressDownloadedBytes, r.byteCounters.Downloaded); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressDownloadableBytes, r.byteCounters.Downloadable); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressUploadedBytes, r.byteCounters.Uploaded); err != nil {
		return err
	}
	if err := putU64(wtx, storage.SlotProgressUploadableBytes, r.byteCounters.Uploadable); err != nil {
		return err
	}

	if err := putSlot(wtx, storage.SlotSchemaVersions, encodeSchemaVersions(r.schemaVersions)); err != nil {
		return err
	}

	// Slot 18 (cooked_history) is reserved, always zero; write it once so
	// the slot is never observed as "missing" by a reader.
	if err := putSlot(wtx, storage.SlotCookedHistory, []byte{0}); err != nil {
		return err
	}

	return nil
}

func getSlot(rtx storage.ReadTxn, slot int) ([]byte, error) {
	b, err := rtx.Get(slot)
	if err == storage.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func putSlot(wtx storage.WriteTxn, slot int, b []byte) error {
	return wtx.Put(slot, b)
}

func slotU64(rtx storage.ReadTxn, slot int) (uint64, error) {
	b, err := getSlot(rtx, slot)
	if err != nil {
		return 0, err
	}
	if len(b) < 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(b), nil
}

func putU64(wtx storage.WriteTxn, slot int, v uint64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return putSlot(wtx, slot, b)
}

// encodeU64Seq / decodeU64Seq implement "sequence of u64" slots: u32 count
// followed by count*8 little-endian words.
func encodeU64Seq(vs []uint64) []byte {
	out := make([]byte, 4+8*len(vs))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(vs)))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(out[4+8*i:4+8*i+8], v)
	}
	return out
}

func slotU64Seq(rtx storage.ReadTxn, slot int) ([]uint64, error) {
	b, err := getSlot(rtx, slot)
	if err != nil {
		return nil, err
	}
	return decodeU64Seq(b), nil
}

func decodeU64Seq(b []byte) []uint64 {
	if len(b) < 4 {
		return nil
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	out := make([]uint64, n)
	for i := uint32(0); i < n; i++ {
		off := 4 + 8*int(i)
		out[i] = binary.LittleEndian.Uint64(b[off : off+8])
	}
	return out
}

// encodeBlobSeq / decodeBlobSeq implement "sequence of (compressed) bytes"
// slots: u32 count followed by count*(u32 length + bytes).
func encodeBlobSeq(bs [][]byte) []byte {
	size := 4
	for _, b := range bs {
		size += 4 + len(b)
	}
	out := make([]byte, 0, size)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(bs)))
	out = append(out, tmp[:]...)
	for _, b := range bs {
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(b)))
		out = append(out, tmp[:]...)
		out = append(out, b...)
	}
	return out
}

func slotBlobSeq(rtx storage.ReadTxn, slot int) ([][]byte, error) {
	b, err := getSlot(rtx, slot)
	if err != nil {
		return nil, err
	}
	return decodeBlobSeq(b), nil
}

func decodeBlobSeq(b []byte) [][]byte {
	if len(b) < 4 {
		return nil
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	out := make([][]byte, n)
	off := 4
	for i := uint32(0); i < n; i++ {
		l := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		out[i] = append([]byte(nil), b[off:off+int(l)]...)
		off += int(l)
	}
	return out
}

func encodeSchemaVersions(vs []schemaVersionEntry) []byte {
	size := 4
	for _, v := range vs {
		size += 8 + 8 + 8 + 4 + len(v.libraryVersion)
	}
	out := make([]byte, 0, size)
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(vs)))
	out = append(out, tmp[:4]...)
	for _, v := range vs {
		binary.LittleEndian.PutUint64(tmp[:], v.schemaVersion)
		out = append(out, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], v.snapshotVersion)
		out = append(out, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], v.timestamp)
		out = append(out, tmp[:]...)
		binary.LittleEndian.PutUint32(tmp[:4], uint32(len(v.libraryVersion)))
		out = append(out, tmp[:4]...)
		out = append(out, v.libraryVersion...)
	}
	return out
}

func decodeSchemaVersions(b []byte) []schemaVersionEntry {
	if len(b) < 4 {
		return nil
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	off := 4
	out := make([]schemaVersionEntry, n)
	for i := uint32(0); i < n; i++ {
		var e schemaVersionEntry
		e.schemaVersion = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
		e.snapshotVersion = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
		e.timestamp = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
		l := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		e.libraryVersion = string(b[off : off+int(l)])
		off += int(l)
		out[i] = e
	}
	return out
}
