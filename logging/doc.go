// Package logging provides a minimal logging interface and adapters for asynctrace.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the collector, store and host integrations use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - TraceLogger with activity-aware helpers (LogEvent, LogAnomaly, LogSnapshot)
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	c := collector.New(source, time.Now(), func(o *collector.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
