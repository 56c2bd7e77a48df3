package history

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
)

// compress frames b as u64(uncompressed_size_LE) || snappy-block, the
// non-portable compression format of §3.5/§6.1. The codec is explicitly
// non-portable across builds; only the uncompressed contents are a
// cross-build contract.
func compress(b []byte) []byte {
	out := make([]byte, 8, 8+snappy.MaxEncodedLen(len(b)))
	binary.LittleEndian.PutUint64(out, uint64(len(b)))
	return snappy.Encode(out, b)
}

// decompress is the inverse of compress, returning the original bytes and
// their recorded uncompressed size (the two always agree; the size is
// carried explicitly so callers never need to re-derive it by decoding).
func decompress(b []byte) ([]byte, uint64, error) {
	if len(b) < 8 {
		return nil, 0, fmt.Errorf("history: compressed blob shorter than size header")
	}
	n := binary.LittleEndian.Uint64(b[:8])
	out, err := snappy.Decode(nil, b[8:])
	if err != nil {
		return nil, 0, fmt.Errorf("history: snappy decode: %w", err)
	}
	if uint64(len(out)) != n {
		return nil, 0, fmt.Errorf("history: decoded length %d does not match header %d", len(out), n)
	}
	return out, n, nil
}

// uncompressedSize reads the size header without doing the decompression
// work, used by byte accounting paths that only need the original length.
func uncompressedSize(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("history: compressed blob shorter than size header")
	}
	return binary.LittleEndian.Uint64(b[:8]), nil
}
