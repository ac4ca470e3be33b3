package fanarttv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"keyart/internal/assets"
)

func TestFetchCandidatesPrefersHDCategoriesWithQualityTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movies/603" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
            "name": "The Matrix",
            "hdmovielogo": [{"id": "1", "url": "https://assets.fanart.tv/hdlogo.png", "likes": "14", "lang": "en"}],
            "movielogo": [{"id": "2", "url": "https://assets.fanart.tv/logo.png", "likes": "3", "lang": "de"}]
        }`))
	}))
	defer server.Close()

	client := New("test-key", server.URL)
	entity := assets.Entity{
		Key:         assets.EntityKey{Type: assets.EntityMovie, ID: 1},
		ExternalIDs: map[string]string{"tmdb": "603"},
	}

	raws, err := client.FetchCandidates(context.Background(), entity, assets.AssetLogo)
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("candidates = %d, want both logo categories", len(raws))
	}
	hd := raws[0]
	if hd.URL != "https://assets.fanart.tv/hdlogo.png" || hd.QualityTag != "hd" {
		t.Fatalf("hd category not tagged: %+v", hd)
	}
	if hd.VoteCount == nil || *hd.VoteCount != 14 || hd.Language != "en" {
		t.Fatalf("likes/lang not mapped: %+v", hd)
	}
	if raws[1].QualityTag != "" {
		t.Fatalf("sd category wrongly tagged: %+v", raws[1])
	}
}

func TestFetchCandidatesSeriesUsesTVDBID(t *testing.T) {
	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tvposter": [{"id": "9", "url": "https://assets.fanart.tv/poster.jpg", "likes": "2", "lang": "en"}]}`))
	}))
	defer server.Close()

	client := New("test-key", server.URL)
	entity := assets.Entity{
		Key:         assets.EntityKey{Type: assets.EntitySeries, ID: 2},
		ExternalIDs: map[string]string{"tvdb": "81189", "tmdb": "1396"},
	}

	raws, err := client.FetchCandidates(context.Background(), entity, assets.AssetPoster)
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if requested != "/tv/81189" {
		t.Fatalf("requested %s, want the tvdb-addressed path", requested)
	}
	if len(raws) != 1 || raws[0].URL != "https://assets.fanart.tv/poster.jpg" {
		t.Fatalf("raws = %+v", raws)
	}
}

func TestFetchCandidatesUnknownCombinationIsEmpty(t *testing.T) {
	client := New("test-key", "http://unreachable.invalid")
	entity := assets.Entity{
		Key:         assets.EntityKey{Type: assets.EntitySeason, ID: 3},
		ExternalIDs: map[string]string{"tvdb": "81189"},
	}
	raws, err := client.FetchCandidates(context.Background(), entity, assets.AssetPoster)
	if err != nil || raws != nil {
		t.Fatalf("season fetch = (%v, %v), want empty without network", raws, err)
	}
}
