package util

import "runtime"

// GetHeapAllocMB returns live heap bytes in whole MiB.
func GetHeapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc >> 20
}
