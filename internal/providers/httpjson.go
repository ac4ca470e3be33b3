package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"keyart/internal/services"
)

// GetJSON performs one GET against a provider endpoint and decodes the JSON
// body, classifying failures so the worker can tell retryable from terminal:
// 401/403/404 are permanent, 429 and 5xx are transient, transport failures
// and deadline hits are timeouts.
func GetJSON(ctx context.Context, client *http.Client, provider, operation, url string, header http.Header, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, provider, operation, "build request", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, provider, operation, "request timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return services.Wrap(services.ErrTransientProvider, provider, operation, "request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(provider, operation, resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrTransientProvider, provider, operation, "decode response", err)
	}
	return nil
}

func classifyStatus(provider, operation string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound:
		return services.Wrap(services.ErrPermanentProvider, provider, operation,
			fmt.Sprintf("status %d", status), nil)
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrTransientProvider, provider, operation,
			"rate limited upstream", nil)
	case status >= 500:
		return services.Wrap(services.ErrTransientProvider, provider, operation,
			fmt.Sprintf("status %d", status), nil)
	default:
		return services.Wrap(services.ErrPermanentProvider, provider, operation,
			fmt.Sprintf("unexpected status %d", status), nil)
	}
}
