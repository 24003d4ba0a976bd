// Package worker provides the bounded goroutine pool used to run Jobs
// concurrently.
//
// A Pool is deliberately minimal: it knows nothing about Flows, Jobs, or
// the scheduler's directive bookkeeping. The bounded-parallel Manager in
// internal/engine submits one Task per ready Job and keeps directive
// application and done/cancelled bookkeeping on its own goroutine, so a
// Pool only ever needs to run Tasks and collect their errors.
//
// # Usage
//
// Most callers never construct a Pool directly; RunLocally and the
// bounded-parallel Manager option (WithWorkerPool) create and size one
// internally. The type is exported for callers implementing a custom
// Manager variant.
package worker
