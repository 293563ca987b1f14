// Package core provides the foundational domain types and contracts used by
// asynctrace. It defines the core abstractions for:
//
//   - Activities (lifecycle records of one asynchronous operation)
//   - Hooks and EventSource (the boundary to the host that emits lifecycle notifications)
//   - StackCapturer and ResourceProcessor (pluggable capture and processing policies)
//   - ProcessedResource, FunctionRecord and snapshot nodes (the durable, size-capped output)
//   - The error taxonomy shared by every package (duplicate / unknown ids, introspection)
//
// The package intentionally keeps implementation concerns (storage, cloning,
// collection, host integration) out of scope, exposing small interfaces so
// hosts and policies can be swapped without touching calling code. Every
// value reachable from a finalized Activity converts to a plain
// map/slice/scalar tree via the Plain* helpers.
package core
