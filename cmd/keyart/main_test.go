package main

import (
	"bytes"
	"strings"
	"testing"

	"keyart/internal/ipc"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{"status", "stop", "queue", "refresh", "select", "candidates", "decisions", "lock", "sweep", "gc", "logs", "test-notify", "config"}
	have := make(map[string]bool)
	for _, cmd := range root.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestParseEntityArgs(t *testing.T) {
	if _, _, err := parseEntityArgs([]string{"movie", "12"}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
	if _, _, err := parseEntityArgs([]string{"movie", "zero"}); err == nil {
		t.Fatal("non-numeric id accepted")
	}
	if _, _, err := parseEntityArgs([]string{"movie", "-4"}); err == nil {
		t.Fatal("negative id accepted")
	}
}

func TestRenderStatusPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &ipc.StatusResponse{
		Running:     true,
		PID:         123,
		QueueDBPath: "/tmp/queue.db",
		Entities:    7,
		QueueStats:  map[string]int{"total": 2, "pending": 1, "failed": 1},
		Breakers:    map[string]string{"tmdb": "closed"},
	})
	out := buf.String()
	for _, fragment := range []string{"running", "pid 123", "Entities:  7", "pending", "tmdb", "closed"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, out)
		}
	}
	if strings.Contains(out, ansiGreen) {
		t.Fatal("non-tty writer should not be colorized")
	}
}
