// Package logging wraps log/slog with the handlers and attribute helpers
// used across the daemon. Components receive a *slog.Logger and add their
// own component field; nothing here is process-global.
package logging
