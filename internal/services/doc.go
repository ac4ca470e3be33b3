// Package services defines the failure taxonomy shared by job handlers,
// provider clients, and the workflow manager. Errors are tagged with
// sentinel markers so the queue alone can decide retry versus terminal and
// whether a failure counts toward a circuit breaker.
package services
