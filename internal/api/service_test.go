package api_test

import (
	"context"
	"errors"
	"testing"

	"keyart/internal/api"
	"keyart/internal/assets"
	"keyart/internal/catalog"
	"keyart/internal/queue"
	"keyart/internal/services"
	"keyart/internal/testsupport"
)

func newService(t *testing.T) (*api.Service, *queue.Store, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	queueStore := testsupport.MustOpenQueue(t, cfg)
	catalogStore := testsupport.MustOpenCatalog(t, cfg)
	service := api.NewService(api.Deps{Queue: queueStore, Catalog: catalogStore})
	return service, queueStore, catalogStore
}

func seedCandidate(t *testing.T, store *catalog.Store, entity assets.EntityKey, url string) assets.Candidate {
	t.Helper()
	candidate := testsupport.Candidate(entity, "tmdb", url)
	if err := store.UpsertCandidates(context.Background(), []assets.Candidate{candidate}); err != nil {
		t.Fatalf("UpsertCandidates: %v", err)
	}
	stored, err := store.ListCandidates(context.Background(), candidate.Key())
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	for _, c := range stored {
		if c.URL == url {
			return c
		}
	}
	t.Fatalf("candidate %s not stored", url)
	return assets.Candidate{}
}

func TestForceRefreshValidatesAndDedupes(t *testing.T) {
	service, queueStore, catalogStore := newService(t)
	ctx := context.Background()

	if _, err := service.ForceRefresh(ctx, "movie", 1, nil, true, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown entity should be a validation error, got %v", err)
	}
	if _, err := service.ForceRefresh(ctx, "album", 1, nil, true, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown entity type should be a validation error, got %v", err)
	}

	entity := testsupport.SeedEntity(t, catalogStore, 1, "The Matrix", "603")
	first, err := service.ForceRefresh(ctx, string(entity.Key.Type), entity.Key.ID, []string{"poster"}, true, false)
	if err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	second, err := service.ForceRefresh(ctx, string(entity.Key.Type), entity.Key.ID, nil, true, false)
	if err != nil {
		t.Fatalf("second ForceRefresh: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate refresh got job %d, want existing %d", second.ID, first.ID)
	}

	pending, err := queueStore.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
}

func TestUrgentRefreshGetsUserPriority(t *testing.T) {
	service, _, catalogStore := newService(t)
	entity := testsupport.SeedEntity(t, catalogStore, 2, "Heat", "949")

	view, err := service.ForceRefresh(context.Background(), string(entity.Key.Type), entity.Key.ID, nil, false, true)
	if err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if view.Priority != int(queue.PriorityUserEnrich) {
		t.Fatalf("priority = %d, want %d", view.Priority, queue.PriorityUserEnrich)
	}
}

func TestSelectCandidateRecordsManualProvenanceAndLock(t *testing.T) {
	service, _, catalogStore := newService(t)
	ctx := context.Background()
	entity := testsupport.SeedEntity(t, catalogStore, 3, "Alien", "348")
	candidate := seedCandidate(t, catalogStore, entity.Key, "https://img.example/manual.jpg")

	if err := service.SelectCandidate(ctx, candidate.ID, true); err != nil {
		t.Fatalf("SelectCandidate: %v", err)
	}

	selected, err := catalogStore.CurrentSelection(ctx, candidate.Key())
	if err != nil || selected == nil {
		t.Fatalf("CurrentSelection: %+v, %v", selected, err)
	}
	if selected.SelectedBy != assets.SelectedByManual {
		t.Fatalf("selected_by = %q, want manual", selected.SelectedBy)
	}
	locked, err := catalogStore.IsLocked(ctx, candidate.Key())
	if err != nil || !locked {
		t.Fatalf("IsLocked = %v, %v; want locked", locked, err)
	}

	decisions, err := service.Decisions(ctx, string(entity.Key.Type), entity.Key.ID, 5)
	if err != nil {
		t.Fatalf("Decisions: %v", err)
	}
	if len(decisions) != 1 || !decisions[0].Applied || decisions[0].Reason != "manual selection" {
		t.Fatalf("decisions = %+v", decisions)
	}
}

func TestBlockCandidateClearsSelection(t *testing.T) {
	service, _, catalogStore := newService(t)
	ctx := context.Background()
	entity := testsupport.SeedEntity(t, catalogStore, 4, "Se7en", "807")
	candidate := seedCandidate(t, catalogStore, entity.Key, "https://img.example/blocked.jpg")

	if err := service.SelectCandidate(ctx, candidate.ID, false); err != nil {
		t.Fatalf("SelectCandidate: %v", err)
	}
	if err := service.BlockCandidate(ctx, candidate.ID); err != nil {
		t.Fatalf("BlockCandidate: %v", err)
	}

	selected, err := catalogStore.CurrentSelection(ctx, candidate.Key())
	if err != nil {
		t.Fatalf("CurrentSelection: %v", err)
	}
	if selected != nil {
		t.Fatalf("blocking must clear the selection, still selected: %+v", selected)
	}

	views, err := service.Candidates(ctx, string(entity.Key.Type), entity.Key.ID)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(views) != 1 || !views[0].Blocked {
		t.Fatalf("views = %+v, want blocked candidate", views)
	}

	if err := service.UnblockCandidate(ctx, candidate.ID); err != nil {
		t.Fatalf("UnblockCandidate: %v", err)
	}
}

func TestSnapshotAggregatesStores(t *testing.T) {
	service, queueStore, catalogStore := newService(t)
	ctx := context.Background()
	testsupport.SeedEntity(t, catalogStore, 5, "Movie", "100")
	if _, err := queueStore.Enqueue(ctx, queue.NewJob{Type: queue.TypeGC, Priority: queue.PriorityGC}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	snapshot, err := service.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Entities != 1 {
		t.Fatalf("entities = %d", snapshot.Entities)
	}
	if snapshot.QueueStats["pending"] != 1 || snapshot.QueueStats["total"] != 1 {
		t.Fatalf("queue stats = %+v", snapshot.QueueStats)
	}
}

func TestCancelValidatesID(t *testing.T) {
	service, queueStore, _ := newService(t)
	ctx := context.Background()

	if _, err := service.Cancel(ctx, 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("zero id should be a validation error, got %v", err)
	}

	job, err := queueStore.Enqueue(ctx, queue.NewJob{
		Type: queue.TypeSweep, Priority: queue.PriorityBulkScan, Cancellable: true,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	status, err := service.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if status != string(queue.StatusCancelled) {
		t.Fatalf("status = %q, pending jobs cancel immediately", status)
	}
}
