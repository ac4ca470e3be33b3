package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad job input. Terminal immediately, never retried.
	ErrValidation = errors.New("validation error")
	// ErrTransientProvider marks network/timeout/limit rejections from an
	// external provider. Retryable; counts toward the provider's breaker.
	ErrTransientProvider = errors.New("transient provider failure")
	// ErrPermanentProvider marks an authoritative provider answer such as
	// "not found". Terminal; does not count toward the breaker.
	ErrPermanentProvider = errors.New("permanent provider failure")
	// ErrInfrastructure marks local persistence or filesystem trouble.
	// Retryable; counts toward the infrastructure breaker.
	ErrInfrastructure = errors.New("infrastructure failure")
	// ErrTimeout marks an exceeded soft deadline. Classified transient.
	ErrTimeout = errors.New("timeout")
	// ErrConfiguration marks unusable configuration. Terminal.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransientProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a handler failure should be rescheduled with
// backoff. Unrecognized errors are treated as transient so an unclassified
// failure never silently becomes terminal.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPermanentProvider),
		errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// CountsTowardBreaker reports whether a failure should advance the failure
// count of the resource it was executed against. Authoritative provider
// answers and caller mistakes say nothing about resource health.
func CountsTowardBreaker(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPermanentProvider),
		errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Kind returns a short machine-readable label for the error's marker,
// recorded on failed jobs and emitted in logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPermanentProvider):
		return "provider_permanent"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransientProvider):
		return "provider_transient"
	case errors.Is(err, ErrInfrastructure):
		return "infrastructure"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
