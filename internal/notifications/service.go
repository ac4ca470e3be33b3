package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"keyart/internal/config"
)

const userAgent = "Keyart-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySelectionApplied(ctx context.Context, entityTitle, assetType, provider string) error
	NotifySweepCompleted(ctx context.Context, scanned, enqueued int, duration time.Duration) error
	NotifyJobFailed(ctx context.Context, jobType string, jobID int64, cause error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		selection: cfg.Notifications.Selection,
		sweep:     cfg.Notifications.Sweep,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	selection bool
	sweep     bool
	errors    bool
}

func (n *ntfyService) NotifySelectionApplied(ctx context.Context, entityTitle, assetType, provider string) error {
	if !n.selection {
		return nil
	}
	entityTitle = strings.TrimSpace(entityTitle)
	if entityTitle == "" {
		entityTitle = "unknown title"
	}
	data := payload{
		title:   "Keyart - Selection",
		message: fmt.Sprintf("New %s selected for %s (via %s)", assetType, entityTitle, provider),
		tags:    []string{"keyart", "selection", "applied"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySweepCompleted(ctx context.Context, scanned, enqueued int, duration time.Duration) error {
	if !n.sweep {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title: "Keyart - Sweep Complete",
		message: fmt.Sprintf("Swept %d entities in %s, %d refreshes queued",
			scanned, duration, enqueued),
		tags: []string{"keyart", "sweep", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobType string, jobID int64, cause error) error {
	if !n.errors {
		return nil
	}
	detail := "unknown"
	if cause != nil {
		detail = strings.TrimSpace(cause.Error())
	}
	data := payload{
		title:    "Keyart - Job Failed",
		message:  fmt.Sprintf("%s job %d failed: %s", jobType, jobID, detail),
		tags:     []string{"keyart", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Keyart - Test",
		message:  "Notification system test",
		tags:     []string{"keyart", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySelectionApplied(context.Context, string, string, string) error { return nil }
func (noopService) NotifySweepCompleted(context.Context, int, int, time.Duration) error  { return nil }
func (noopService) NotifyJobFailed(context.Context, string, int64, error) error          { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }

// Noop returns a notification service that does nothing, used by tests.
func Noop() Service {
	return noopService{}
}
