// Command keyart is the CLI for the keyart daemon: queue inspection,
// manual curation, and maintenance triggers over the IPC socket.
package main
