// Package api is the daemon-side service layer the IPC surface and the CLI
// talk to. It validates requests, translates between transport DTOs and
// internal types, and never reaches into stores beyond what one operation
// needs.
package api
