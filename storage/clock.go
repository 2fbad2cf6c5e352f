package storage

import "time"

// nowMicros returns the current time as microseconds since the Unix epoch,
// the same unit ntcore's Now() (nt::support::Now) uses for entry
// timestamps.
func nowMicros() int64 {
	return time.Now().UnixMicro()
}
