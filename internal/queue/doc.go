// Package queue implements the durable priority job queue backing all
// background work: provider refreshes, selections, catalog sweeps, and
// garbage collection.
//
// Jobs live in a SQLite table. Workers claim the most urgent eligible job
// with a single atomic UPDATE so concurrent workers never double-execute.
// Failed jobs are rescheduled with exponential backoff until their retry
// budget is exhausted; cancellation is cooperative and honored at handler
// checkpoints.
package queue
