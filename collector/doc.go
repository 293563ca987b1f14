// Package collector wires an EventSource to an activity store.
//
// A Collector subscribes to the host's lifecycle notifications while it is
// enabled and forwards each one, synchronously and in order, to its store.
// At every event the configured StackCapturer decides whether the current
// call stack is recorded. Resources are processed into durable snapshots
// when their activity is destroyed, or on demand through CleanupResource and
// CleanAllResources.
//
// Typical usage:
//
//	c := collector.New(source, time.Now(), func(o *collector.Options) {
//		o.StackCapturer = capture.AllowList(nil, []string{"FSREQWRAP"})
//		o.BufferCaptureLimit = 16
//	}).Enable()
//	// ... let the host run ...
//	c.Disable().CleanAllResources().ProcessStacks()
//	snapshot := core.PlainActivities(c.Prune(prune.Types("FSREQWRAP")))
//
// Duplicate creations and notifications for unknown ids never stop the
// collector: they are logged, counted through the Recorder and skipped.
package collector
