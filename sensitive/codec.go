package sensitive

import "unsafe"

// sizeOf, encode and decode treat T as a fixed-size POD, matching the
// static_assert(std::is_trivial_v<T>) constraint on the original
// SensitiveBuffer<T>. Callers must only instantiate Buffer[T] for such types
// (fixed-width byte arrays, integers, small structs of these).
func sizeOf[T any](v T) int {
	return int(unsafe.Sizeof(v))
}

func encode[T any](dst []byte, v T) {
	n := sizeOf(v)
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), n)
	copy(dst, src)
}

func decode[T any](src []byte) T {
	var v T
	n := sizeOf(v)
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&v)), n)
	copy(dst, src[:n])
	return v
}
