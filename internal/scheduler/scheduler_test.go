package scheduler

import (
	"context"
	"testing"

	"keyart/internal/queue"
	"keyart/internal/testsupport"
)

func TestDefaultSchedulesParse(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)

	if _, err := New(cfg, store, nil); err != nil {
		t.Fatalf("New with default schedules: %v", err)
	}
}

func TestBadScheduleRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scheduler.SweepSchedule = "every full moon"
	store := testsupport.MustOpenQueue(t, cfg)

	if _, err := New(cfg, store, nil); err == nil {
		t.Fatal("invalid schedule should fail construction")
	}
}

func TestEnqueueSweepDedupes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	scheduler, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	scheduler.EnqueueSweep()
	scheduler.EnqueueSweep()
	scheduler.EnqueueGC()

	pending, err := store.List(context.Background(), queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var sweeps, gcs int
	for _, job := range pending {
		switch job.Type {
		case queue.TypeSweep:
			sweeps++
		case queue.TypeGC:
			gcs++
		}
	}
	if sweeps != 1 || gcs != 1 {
		t.Fatalf("pending sweeps=%d gcs=%d, want one of each", sweeps, gcs)
	}
}
