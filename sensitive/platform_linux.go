//go:build linux

package sensitive

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func osPageSize() int { return unix.Getpagesize() }

func mlock(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Mlock(b)
}

func munlock(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munlock(b)
}

// excludeFromCoreDump uses madvise(MADV_DONTDUMP), available on Linux since
// 3.4; best-effort, errors are ignored per §4.2.
func excludeFromCoreDump(b []byte) {
	if len(b) == 0 {
		return
	}
	_ = unix.Madvise(b, unix.MADV_DONTDUMP)
}

// growWorkingSet is a no-op on Linux: there is no per-process working-set
// limit analogous to Windows' SetProcessWorkingSetSize; the relevant quota is
// RLIMIT_MEMLOCK, which we attempt to raise to the hard limit once.
func growWorkingSet(uint64) bool {
	var rlim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_MEMLOCK, &rlim); err != nil {
		return false
	}
	if rlim.Cur >= rlim.Max {
		return false
	}
	rlim.Cur = rlim.Max
	return syscall.Setrlimit(syscall.RLIMIT_MEMLOCK, &rlim) == nil
}

func physicalRAMBytes() uint64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0
	}
	return uint64(si.Totalram) * uint64(si.Unit)
}

// platformProtect/platformUnprotect: Linux has no process-local memory
// encryption primitive analogous to Windows CryptProtectMemory, so the
// protect/unprotect pair is a no-op here; Buffer.encrypt stays false on this
// platform (see New).
func platformProtect(b []byte)   {}
func platformUnprotect(b []byte) {}
