package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustEnqueue(t *testing.T, store *Store, spec NewJob) *Job {
	t.Helper()
	job, err := store.Enqueue(context.Background(), spec)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

func TestClaimHonorsPriorityThenCreationOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBulkScan})
	urgent := mustEnqueue(t, store, NewJob{Type: TypeSelect, Priority: PriorityUserSync})
	second := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBulkScan})

	claimed, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil || claimed.ID != urgent.ID {
		t.Fatalf("expected urgent job %d first, got %+v", urgent.ID, claimed)
	}
	if claimed.Status != StatusProcessing {
		t.Fatalf("claimed job status = %s, want processing", claimed.Status)
	}
	if claimed.StartedAt == nil || claimed.LastHeartbeat == nil {
		t.Fatal("claim should stamp started_at and last_heartbeat")
	}

	for _, want := range []int64{first.ID, second.ID} {
		claimed, err = store.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if claimed == nil || claimed.ID != want {
			t.Fatalf("expected job %d next, got %+v", want, claimed)
		}
	}

	claimed, err = store.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim on drained queue: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected empty claim, got job %d", claimed.ID)
	}
}

func TestClaimSkipsFutureRetries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBackground, MaxRetries: 3})

	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: job=%v err=%v", claimed, err)
	}
	if err := store.ScheduleRetry(ctx, job.ID, time.Hour, "provider timeout", "timeout"); err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}

	claimed, err = store.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("job with future next_retry_at should not be claimable, got %d", claimed.ID)
	}

	// Move the gate into the past; the job becomes eligible again.
	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339Nano)
	if _, err := store.db.Exec(`UPDATE jobs SET next_retry_at = ? WHERE id = ?`, past, job.ID); err != nil {
		t.Fatalf("rewind next_retry_at: %v", err)
	}

	claimed, err = store.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected job %d after retry gate passed, got %+v", job.ID, claimed)
	}
	if claimed.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", claimed.RetryCount)
	}
}

func TestRetryBudgetExhaustion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const maxRetries = 2
	job := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBackground, MaxRetries: maxRetries})

	attempts := 0
	for {
		// Retry gates are in the future after ScheduleRetry; clear them so
		// the test does not sleep through real backoff.
		if _, err := store.db.Exec(`UPDATE jobs SET next_retry_at = NULL WHERE id = ?`, job.ID); err != nil {
			t.Fatalf("clear retry gate: %v", err)
		}
		claimed, err := store.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if claimed == nil {
			break
		}
		attempts++
		if claimed.RetriesRemaining() {
			if err := store.ScheduleRetry(ctx, claimed.ID, time.Hour, "boom", "provider_transient"); err != nil {
				t.Fatalf("ScheduleRetry: %v", err)
			}
		} else {
			if err := store.MarkFailed(ctx, claimed.ID, "boom", "provider_transient"); err != nil {
				t.Fatalf("MarkFailed: %v", err)
			}
		}
	}

	// Initial attempt plus maxRetries retries.
	if want := maxRetries + 1; attempts != want {
		t.Fatalf("attempts = %d, want %d", attempts, want)
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != StatusFailed {
		t.Fatalf("final status = %s, want failed", final.Status)
	}
	if final.ErrorKind != "provider_transient" {
		t.Fatalf("error kind = %q, want provider_transient", final.ErrorKind)
	}
}

func TestEnqueueDedupeKeySuppressesDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := mustEnqueue(t, store, NewJob{
		Type:      TypeSelect,
		Priority:  PriorityBackground,
		Payload:   map[string]string{"entity_id": "tmdb:603"},
		DedupeKey: "select:movie:tmdb:603:poster",
	})
	duplicate := mustEnqueue(t, store, NewJob{
		Type:      TypeSelect,
		Priority:  PriorityBackground,
		DedupeKey: "select:movie:tmdb:603:poster",
	})
	if duplicate.ID != original.ID {
		t.Fatalf("duplicate enqueue created job %d, want existing %d", duplicate.ID, original.ID)
	}

	jobs, err := store.List(ctx, StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("pending jobs = %d, want 1", len(jobs))
	}

	// Once the original completes, the key is free again.
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.Complete(ctx, original.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	fresh := mustEnqueue(t, store, NewJob{
		Type:      TypeSelect,
		Priority:  PriorityBackground,
		DedupeKey: "select:movie:tmdb:603:poster",
	})
	if fresh.ID == original.ID {
		t.Fatal("completed job should not satisfy a new enqueue")
	}
}

func TestCancellationSemantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pending := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBackground, Cancellable: true})
	status, err := store.RequestCancel(ctx, pending.ID)
	if err != nil {
		t.Fatalf("RequestCancel pending: %v", err)
	}
	if status != StatusCancelled {
		t.Fatalf("pending cancel status = %s, want cancelled", status)
	}

	running := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBackground, Cancellable: true})
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil || claimed.ID != running.ID {
		t.Fatalf("Claim: job=%v err=%v", claimed, err)
	}

	status, err = store.RequestCancel(ctx, running.ID)
	if err != nil {
		t.Fatalf("RequestCancel processing: %v", err)
	}
	if status != StatusProcessing {
		t.Fatalf("processing cancel status = %s, want processing", status)
	}
	flagged, err := store.CancelRequested(ctx, running.ID)
	if err != nil || !flagged {
		t.Fatalf("CancelRequested = %v err=%v, want true", flagged, err)
	}

	// The handler observes the flag at a checkpoint and acknowledges.
	if err := store.AcknowledgeCancel(ctx, running.ID); err != nil {
		t.Fatalf("AcknowledgeCancel: %v", err)
	}
	final, err := store.GetByID(ctx, running.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != StatusCancelled {
		t.Fatalf("final status = %s, want cancelled", final.Status)
	}

	stubborn := mustEnqueue(t, store, NewJob{Type: TypeGC, Priority: PriorityGC, Cancellable: false})
	if _, err := store.RequestCancel(ctx, stubborn.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("cancel of non-cancellable job err = %v, want ErrNotCancellable", err)
	}
}

func TestReclaimStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBackground})
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// A fresh heartbeat keeps the job in place.
	reclaimed, err := store.ReclaimStale(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("reclaimed = %d, want 0", reclaimed)
	}

	stale := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano)
	if _, err := store.db.Exec(`UPDATE jobs SET last_heartbeat = ? WHERE id = ?`, stale, job.ID); err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}

	reclaimed, err = store.ReclaimStale(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	revived, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if revived.Status != StatusPending {
		t.Fatalf("reclaimed status = %s, want pending", revived.Status)
	}
}

func TestRetryFailedAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := mustEnqueue(t, store, NewJob{Type: TypeRefresh, Priority: PriorityBackground})
	mustEnqueue(t, store, NewJob{Type: TypeSweep, Priority: PriorityBulkScan})

	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, "boom", "infrastructure"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Failed != 1 || stats.Pending != 1 || stats.Total != 2 {
		t.Fatalf("stats = %+v, want failed=1 pending=1 total=2", stats)
	}

	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}

	reset, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reset.Status != StatusPending || reset.RetryCount != 0 || reset.ErrorMessage != "" {
		t.Fatalf("retried job = %+v, want pristine pending", reset)
	}
}

func TestBackoffCurve(t *testing.T) {
	cases := []struct {
		retryCount int
		cap        time.Duration
		want       time.Duration
	}{
		{0, 5 * time.Minute, time.Second},
		{1, 5 * time.Minute, 2 * time.Second},
		{4, 5 * time.Minute, 16 * time.Second},
		{8, 5 * time.Minute, 256 * time.Second},
		{9, 5 * time.Minute, 5 * time.Minute},
		{60, 5 * time.Minute, 5 * time.Minute},
		{3, 0, 8 * time.Second},
		{-1, time.Minute, time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(tc.retryCount, tc.cap); got != tc.want {
			t.Errorf("Backoff(%d, %s) = %s, want %s", tc.retryCount, tc.cap, got, tc.want)
		}
	}
}
