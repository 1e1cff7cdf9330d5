// Package taskrunner executes tasks with a fixed concurrency ceiling, tracking
// each task's lifecycle and giving producers backpressure.
//
// Constructors
//   - New[P, R](opts ...Option): creates a Runner for tasks with payload P and result R.
//   - NewGate(n): the counting semaphore the Runner uses to bound execution.
//
// Defaults
// Unless overridden, the following defaults apply to a newly created Runner:
//   - Concurrency: 1
//   - Logger: discards everything
//   - Metrics: metrics.Noop
//   - Name: "runner"
//   - StopOnError: false
//
// Modes
//   - Batch: Execute seeds the queue with a fixed list and admits up to Capacity
//     tasks; every completion admits the next one.
//   - Streaming: Start, then Enqueue tasks as they arrive and End when there are
//     no more. Each Enqueue admits immediately, so pending may exceed Capacity;
//     use a Feeder (or ChunkWriter) to pause the producer instead.
//
// Lifecycle
// Every task moves queued -> pending -> done once. Observers receive begin,
// queued, take, start, stop, done and end; for one task the order is always
// take, start, stop, done. End is delivered exactly once, last.
//
// Failures
// A failing task never stops the Runner by itself: its error is recorded in the
// Outcome. An ErrorCallback (or WithStopOnError) may abort the run, after which
// no task is admitted, pending tasks finish, and the run ends with the rest of
// the queue untouched.
//
// Helpers
//   - RunAll, Map, ForEach: batch runs with a single call.
//   - RunStream, MapStream, ForEachStream: channel-fed streaming runs.
package taskrunner
