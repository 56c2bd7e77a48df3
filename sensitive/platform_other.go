//go:build !linux

package sensitive

// Fallback implementation for platforms without the Linux-specific mlock /
// madvise / rlimit facilities wired above. Every operation is a best-effort
// no-op, matching §4.2's "best-effort" framing for platforms that don't
// support memory pinning or core-dump exclusion at all.
func osPageSize() int { return 4096 }

func mlock(b []byte) error { return errUnsupported }

func munlock(b []byte) error { return nil }

func excludeFromCoreDump(b []byte) {}

func growWorkingSet(uint64) bool { return false }

func physicalRAMBytes() uint64 { return 0 }

func platformProtect(b []byte)   {}
func platformUnprotect(b []byte) {}

type unsupportedError struct{}

func (unsupportedError) Error() string { return "sensitive: memory locking unsupported on this platform" }

var errUnsupported = unsupportedError{}
