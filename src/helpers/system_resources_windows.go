//go:build windows

package helpers

import (
	"syscall"
	"unsafe"
)

// PROCESS_MEMORY_COUNTERS structure for GetProcessMemoryInfo
type PROCESS_MEMORY_COUNTERS struct {
	cb                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
}

// getProcessRSSMB returns the working set size in MB.
func getProcessRSSMB() int {
	psapi, err := syscall.LoadDLL("psapi.dll")
	if err != nil {
		return 0
	}
	defer psapi.Release()

	proc, err := psapi.FindProc("GetProcessMemoryInfo")
	if err != nil {
		return 0
	}

	handle, err := syscall.GetCurrentProcess()
	if err != nil {
		return 0
	}

	var counters PROCESS_MEMORY_COUNTERS
	counters.cb = uint32(unsafe.Sizeof(counters))

	ret, _, _ := proc.Call(uintptr(handle), uintptr(unsafe.Pointer(&counters)), uintptr(counters.cb))
	if ret == 0 {
		return 0
	}

	return int(counters.WorkingSetSize / 1024 / 1024)
}
