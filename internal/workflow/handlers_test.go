package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"keyart/internal/assets"
	"keyart/internal/providers"
	"keyart/internal/queue"
	"keyart/internal/services"
	"keyart/internal/testsupport"
)

type stubClient struct {
	name    string
	offers  map[assets.AssetType][]providers.RawCandidate
	err     error
	fetches int
}

func (c *stubClient) Name() string { return c.name }

func (c *stubClient) FetchCandidates(ctx context.Context, entity assets.Entity, assetType assets.AssetType) ([]providers.RawCandidate, error) {
	c.fetches++
	if c.err != nil {
		return nil, c.err
	}
	return c.offers[assetType], nil
}

type feedClient struct {
	*stubClient
	changes []string
}

func (c *feedClient) ChangesSince(ctx context.Context, since time.Time) ([]string, error) {
	return c.changes, nil
}

// claimJob enqueues a job and claims it so a handler can be executed
// directly, the way a worker would hold it.
func claimJob(t *testing.T, env *Env, spec queue.NewJob) *queue.Job {
	t.Helper()
	job, err := env.Queue.Enqueue(context.Background(), spec)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := env.Queue.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claimed %+v, want job %d", claimed, job.ID)
	}
	return claimed
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("image-bytes-for-" + r.URL.Path))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRefreshStoresCandidatesTouchesLedgerAndSelects(t *testing.T) {
	images := newImageServer(t)
	votes := 40
	client := &stubClient{
		name: "stub",
		offers: map[assets.AssetType][]providers.RawCandidate{
			assets.AssetPoster: {
				{URL: images.URL + "/hd.jpg", Width: 2000, Height: 3000, Language: "en", VoteAvg: 8.1, VoteCount: &votes},
				{URL: images.URL + "/sd.jpg", Width: 1000, Height: 1500, Language: "en", VoteAvg: 9.9, VoteCount: &votes},
			},
		},
	}
	env := newTestEnv(t, nil, client)
	entity := testsupport.SeedEntity(t, env.Catalog, 1, "The Matrix", "603")
	ctx := context.Background()

	job := claimJob(t, env, queue.NewJob{
		Type:     queue.TypeRefresh,
		Priority: queue.PriorityBackground,
		Payload: RefreshPayload{
			EntityType: string(entity.Key.Type),
			EntityID:   entity.Key.ID,
			AssetTypes: []string{"poster"},
			Select:     true,
		},
	})
	if err := (RefreshHandler{}).Execute(ctx, env, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	key := assets.AssetKey{Entity: entity.Key, Asset: assets.AssetPoster}
	stored, err := env.Catalog.ListCandidates(ctx, key)
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d candidates, want 2", len(stored))
	}

	selected, err := env.Catalog.CurrentSelection(ctx, key)
	if err != nil {
		t.Fatalf("CurrentSelection: %v", err)
	}
	if selected == nil {
		t.Fatal("no selection applied")
	}
	if selected.URL != images.URL+"/hd.jpg" {
		t.Fatalf("selected %s, the HD poster should outrank the votes", selected.URL)
	}
	if selected.SelectedBy != assets.SelectedByAuto {
		t.Fatalf("selected_by = %q", selected.SelectedBy)
	}
	if selected.CacheDigest == "" {
		t.Fatal("selected image was not cached")
	}
	if _, ok := env.Images.Path(selected.CacheDigest); !ok {
		t.Fatal("cache digest recorded but file missing")
	}

	entry, err := env.Catalog.LedgerEntryFor(ctx, "stub", entity.Key)
	if err != nil {
		t.Fatalf("LedgerEntryFor: %v", err)
	}
	if entry == nil || entry.LastModified.IsZero() {
		t.Fatalf("ledger entry = %+v, want a modified stamp", entry)
	}
}

func TestRefreshSkipsProviderWithPermanentFailure(t *testing.T) {
	bad := &stubClient{
		name: "bad",
		err:  services.Wrap(services.ErrPermanentProvider, "bad", "fetch", "no such entity", nil),
	}
	good := &stubClient{
		name: "good",
		offers: map[assets.AssetType][]providers.RawCandidate{
			assets.AssetPoster: {{URL: "https://good.example/p.jpg", Width: 1000, Height: 1500, Language: "en"}},
		},
	}
	env := newTestEnv(t, nil, bad, good)
	entity := testsupport.SeedEntity(t, env.Catalog, 2, "Heat", "949")
	ctx := context.Background()

	job := claimJob(t, env, queue.NewJob{
		Type:     queue.TypeRefresh,
		Priority: queue.PriorityBackground,
		Payload: RefreshPayload{
			EntityType: string(entity.Key.Type),
			EntityID:   entity.Key.ID,
			AssetTypes: []string{"poster"},
		},
	})
	if err := (RefreshHandler{}).Execute(ctx, env, job); err != nil {
		t.Fatalf("a permanent provider failure must not fail the job: %v", err)
	}

	stored, err := env.Catalog.ListCandidates(ctx, assets.AssetKey{Entity: entity.Key, Asset: assets.AssetPoster})
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(stored) != 1 || stored[0].Provider != "good" {
		t.Fatalf("stored = %+v, want the healthy provider's candidate", stored)
	}

	// The failed provider still gets its check recorded.
	entry, err := env.Catalog.LedgerEntryFor(ctx, "bad", entity.Key)
	if err != nil {
		t.Fatalf("LedgerEntryFor: %v", err)
	}
	if entry == nil {
		t.Fatal("ledger not touched for the failed provider")
	}
}

func TestRefreshUnchangedFetchKeepsLastModified(t *testing.T) {
	client := &stubClient{
		name: "stub",
		offers: map[assets.AssetType][]providers.RawCandidate{
			assets.AssetPoster: {{URL: "https://stub.example/p.jpg", Width: 1000, Height: 1500}},
		},
	}
	env := newTestEnv(t, nil, client)
	entity := testsupport.SeedEntity(t, env.Catalog, 3, "Alien", "348")
	ctx := context.Background()

	payload := RefreshPayload{
		EntityType: string(entity.Key.Type),
		EntityID:   entity.Key.ID,
		AssetTypes: []string{"poster"},
	}
	first := claimJob(t, env, queue.NewJob{Type: queue.TypeRefresh, Priority: queue.PriorityBackground, Payload: payload})
	if err := (RefreshHandler{}).Execute(ctx, env, first); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	before, err := env.Catalog.LedgerEntryFor(ctx, "stub", entity.Key)
	if err != nil || before == nil {
		t.Fatalf("ledger after first fetch: %+v, %v", before, err)
	}

	time.Sleep(5 * time.Millisecond)
	second := claimJob(t, env, queue.NewJob{Type: queue.TypeRefresh, Priority: queue.PriorityBackground, Payload: payload})
	if err := (RefreshHandler{}).Execute(ctx, env, second); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	after, err := env.Catalog.LedgerEntryFor(ctx, "stub", entity.Key)
	if err != nil || after == nil {
		t.Fatalf("ledger after second fetch: %+v, %v", after, err)
	}

	if !after.LastChecked.After(before.LastChecked) {
		t.Fatal("last_checked must advance on every fetch")
	}
	if !after.LastModified.Equal(before.LastModified) {
		t.Fatal("last_modified must hold still when the fetch brings nothing new")
	}
}

func TestSweepEnqueuesRefreshesWithDedupe(t *testing.T) {
	client := &stubClient{name: "stub"}
	env := newTestEnv(t, nil, client)
	testsupport.SeedEntity(t, env.Catalog, 10, "Movie A", "100")
	testsupport.SeedEntity(t, env.Catalog, 11, "Movie B", "101")
	ctx := context.Background()

	sweep := claimJob(t, env, queue.NewJob{Type: queue.TypeSweep, Priority: queue.PriorityUserSync})
	if err := (SweepHandler{}).Execute(ctx, env, sweep); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	pending, err := env.Queue.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending jobs = %d, want a refresh per entity", len(pending))
	}
	for _, job := range pending {
		if job.Type != queue.TypeRefresh || job.DedupeKey == "" {
			t.Fatalf("unexpected sweep output: %+v", job)
		}
	}

	// A second sweep must fold into the refreshes already queued.
	again := claimJob(t, env, queue.NewJob{Type: queue.TypeSweep, Priority: queue.PriorityUserSync})
	if err := (SweepHandler{}).Execute(ctx, env, again); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	pending, err = env.Queue.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending jobs after re-sweep = %d, want 2", len(pending))
	}
}

func TestSweepSkipsEntitiesFeedReportsUnchanged(t *testing.T) {
	client := &feedClient{
		stubClient: &stubClient{name: "stub"},
		changes:    []string{"100"},
	}
	env := newTestEnv(t, nil, client)
	changed := testsupport.SeedEntityFor(t, env.Catalog, 20, "Changed", "stub", "100")
	unchanged := testsupport.SeedEntityFor(t, env.Catalog, 21, "Unchanged", "stub", "101")
	ctx := context.Background()

	// Both entities were checked recently, so only the feed can force work.
	for _, key := range []assets.EntityKey{changed.Key, unchanged.Key} {
		if err := env.Catalog.TouchLedger(ctx, "stub", key, true); err != nil {
			t.Fatalf("TouchLedger: %v", err)
		}
	}
	before, err := env.Catalog.LedgerEntryFor(ctx, "stub", unchanged.Key)
	if err != nil {
		t.Fatalf("LedgerEntryFor: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	sweep := claimJob(t, env, queue.NewJob{Type: queue.TypeSweep, Priority: queue.PriorityUserSync})
	if err := (SweepHandler{}).Execute(ctx, env, sweep); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	pending, err := env.Queue.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending jobs = %d, want only the changed entity", len(pending))
	}
	var payload RefreshPayload
	if err := decodePayload(pending[0], &payload); err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if payload.EntityID != changed.Key.ID {
		t.Fatalf("enqueued entity %d, want %d", payload.EntityID, changed.Key.ID)
	}

	// The skipped entity's check is still recorded.
	after, err := env.Catalog.LedgerEntryFor(ctx, "stub", unchanged.Key)
	if err != nil {
		t.Fatalf("LedgerEntryFor: %v", err)
	}
	if !after.LastChecked.After(before.LastChecked) {
		t.Fatal("skipping via feed must still advance last_checked")
	}
}

func TestSweepRefreshesEntitiesTheFeedCannotVouchFor(t *testing.T) {
	client := &feedClient{
		stubClient: &stubClient{name: "stub"},
		changes:    nil,
	}
	env := newTestEnv(t, nil, client)
	// The entity's only external id belongs to another provider, so the
	// stub's change feed cannot speak for it.
	entity := testsupport.SeedEntityFor(t, env.Catalog, 22, "Unmapped", "elsewhere", "900")
	ctx := context.Background()

	if err := env.Catalog.TouchLedger(ctx, "stub", entity.Key, true); err != nil {
		t.Fatalf("TouchLedger: %v", err)
	}

	sweep := claimJob(t, env, queue.NewJob{Type: queue.TypeSweep, Priority: queue.PriorityUserSync})
	if err := (SweepHandler{}).Execute(ctx, env, sweep); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	pending, err := env.Queue.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].Type != queue.TypeRefresh {
		t.Fatalf("pending = %+v, want one refresh for the unmapped entity", pending)
	}
}

func TestGCPrunesOrphanImagesAndClearsFinishedJobs(t *testing.T) {
	env := newTestEnv(t, nil)
	entity := testsupport.SeedEntity(t, env.Catalog, 30, "Kept", "300")
	ctx := context.Background()

	candidate := testsupport.Candidate(entity.Key, "stub", "https://stub.example/kept.jpg")
	if err := env.Catalog.UpsertCandidates(ctx, []assets.Candidate{candidate}); err != nil {
		t.Fatalf("UpsertCandidates: %v", err)
	}
	stored, err := env.Catalog.ListCandidates(ctx, candidate.Key())
	if err != nil || len(stored) != 1 {
		t.Fatalf("ListCandidates: %+v, %v", stored, err)
	}

	kept, err := env.Images.Put([]byte("kept image"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	orphan, err := env.Images.Put([]byte("orphan image"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := env.Catalog.SetCacheDigest(ctx, stored[0].ID, kept); err != nil {
		t.Fatalf("SetCacheDigest: %v", err)
	}

	done := claimJob(t, env, queue.NewJob{Type: queue.TypeSelect, Priority: queue.PriorityUserSync})
	if err := env.Queue.Complete(ctx, done.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	gc := claimJob(t, env, queue.NewJob{Type: queue.TypeGC, Priority: queue.PriorityGC})
	if err := (GCHandler{}).Execute(ctx, env, gc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, ok := env.Images.Path(kept); !ok {
		t.Fatal("referenced image was pruned")
	}
	if _, ok := env.Images.Path(orphan); ok {
		t.Fatal("orphan image survived")
	}
	if job, err := env.Queue.GetByID(ctx, done.ID); err != nil || job != nil {
		t.Fatalf("completed job not cleared: %+v, %v", job, err)
	}
	if remaining, err := env.Catalog.ListCandidates(ctx, candidate.Key()); err != nil || len(remaining) != 1 {
		t.Fatalf("fresh candidate must survive gc: %+v, %v", remaining, err)
	}
}
