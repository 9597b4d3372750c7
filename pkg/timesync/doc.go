// ABOUTME: Clock synchronization package
// ABOUTME: Fuses NTP-style four-timestamp exchanges into an offset/drift/error estimate
// Package timesync fuses repeated NTP-style four-timestamp exchanges into a
// single recursive estimate of the offset and drift between the local
// monotonic clock and a remote server clock, with an uncertainty bound.
//
// Example:
//
//	f := timesync.NewFilter(timesync.DefaultConfig())
//	f.Observe(measurementUs, maxErrorUs, timesync.NowMicros())
//	localT := f.ComputeClientTime(serverTimestampUs)
package timesync
