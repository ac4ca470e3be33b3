// Package workflow runs the job consumer side of the daemon: a fixed pool
// of worker loops claims jobs from the queue and dispatches them to
// registered handlers. Failures are classified so transient trouble is
// retried with exponential backoff while terminal errors fail the job
// immediately; running jobs heartbeat so a crashed worker's claims get
// reclaimed.
package workflow
