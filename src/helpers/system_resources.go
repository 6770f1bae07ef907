package helpers

import "runtime"

// GetProcessRSSMB returns the process resident set size in MB.
// Falls back to the Go heap figure when the OS probe fails.
func GetProcessRSSMB() int {
	if rss := getProcessRSSMB(); rss > 0 {
		return rss
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int(m.HeapAlloc / 1024 / 1024)
}
