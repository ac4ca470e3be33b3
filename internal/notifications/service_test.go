package notifications

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"keyart/internal/config"
)

type recorded struct {
	title    string
	tags     string
	priority string
	body     string
}

func newRecordingServer(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var requests []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		mu.Lock()
		requests = append(requests, recorded{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]recorded, len(requests))
		copy(cp, requests)
		return cp
	}
}

func serviceFor(t *testing.T, endpoint string, selection, sweep, errs bool) Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	cfg.Notifications.Selection = selection
	cfg.Notifications.Sweep = sweep
	cfg.Notifications.Errors = errs
	return NewService(&cfg)
}

func TestNoTopicYieldsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	if _, ok := NewService(&cfg).(noopService); !ok {
		t.Fatal("empty topic should yield the noop service")
	}
}

func TestJobFailedSendsHighPriority(t *testing.T) {
	server, requests := newRecordingServer(t)
	service := serviceFor(t, server.URL, true, true, true)

	if err := service.NotifyJobFailed(context.Background(), "refresh", 42, errors.New("provider down")); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}

	sent := requests()
	if len(sent) != 1 {
		t.Fatalf("requests = %d, want 1", len(sent))
	}
	if sent[0].priority != "high" || sent[0].title != "Keyart - Job Failed" {
		t.Fatalf("request = %+v", sent[0])
	}
}

func TestDisabledEventsAreSuppressed(t *testing.T) {
	server, requests := newRecordingServer(t)
	service := serviceFor(t, server.URL, false, false, false)
	ctx := context.Background()

	if err := service.NotifySelectionApplied(ctx, "The Matrix", "poster", "tmdb"); err != nil {
		t.Fatalf("NotifySelectionApplied: %v", err)
	}
	if err := service.NotifySweepCompleted(ctx, 10, 2, 0); err != nil {
		t.Fatalf("NotifySweepCompleted: %v", err)
	}
	if err := service.NotifyJobFailed(ctx, "gc", 1, nil); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if sent := requests(); len(sent) != 0 {
		t.Fatalf("disabled events sent %d requests", len(sent))
	}

	// The test notification ignores toggles.
	if err := service.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent := requests(); len(sent) != 1 {
		t.Fatalf("test notification not sent: %d", len(sent))
	}
}
