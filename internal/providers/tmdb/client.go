// Package tmdb fetches artwork candidates from The Movie Database.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"keyart/internal/assets"
	"keyart/internal/providers"
)

const (
	// Name is the provider identifier used in config, the ledger, and
	// provider ordering.
	Name = "tmdb"

	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/original"
)

// Client talks to the TMDB v3 API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New builds a TMDB client. baseURL overrides the public endpoint, used by
// tests.
func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Name() string { return Name }

type tmdbImage struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Language    string  `json:"iso_639_1"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

type imagesResponse struct {
	Posters   []tmdbImage `json:"posters"`
	Backdrops []tmdbImage `json:"backdrops"`
	Logos     []tmdbImage `json:"logos"`
	Stills    []tmdbImage `json:"stills"`
}

// FetchCandidates returns TMDB's artwork offers for the entity. TMDB serves
// posters, backdrops, logos, and episode stills; asset types it has no
// category for yield an empty result.
func (c *Client) FetchCandidates(ctx context.Context, entity assets.Entity, assetType assets.AssetType) ([]providers.RawCandidate, error) {
	externalID, ok := entity.ExternalID(Name)
	if !ok {
		return nil, nil
	}

	endpoint, ok := imagesEndpoint(entity.Key.Type, externalID)
	if !ok {
		return nil, nil
	}

	var result imagesResponse
	requestURL := fmt.Sprintf("%s%s?api_key=%s", c.baseURL, endpoint, url.QueryEscape(c.apiKey))
	if err := providers.GetJSON(ctx, c.http, Name, "fetch_images", requestURL, nil, &result); err != nil {
		return nil, err
	}

	var images []tmdbImage
	switch assetType {
	case assets.AssetPoster:
		images = result.Posters
	case assets.AssetFanart:
		images = result.Backdrops
	case assets.AssetLogo:
		images = result.Logos
	case assets.AssetThumb:
		images = result.Stills
	default:
		return nil, nil
	}

	raws := make([]providers.RawCandidate, 0, len(images))
	for _, image := range images {
		if image.FilePath == "" {
			continue
		}
		count := image.VoteCount
		raws = append(raws, providers.RawCandidate{
			URL:       imageBaseURL + image.FilePath,
			Width:     image.Width,
			Height:    image.Height,
			Language:  image.Language,
			VoteAvg:   image.VoteAverage,
			VoteCount: &count,
		})
	}
	return raws, nil
}

func imagesEndpoint(entityType assets.EntityType, externalID string) (string, bool) {
	switch entityType {
	case assets.EntityMovie:
		return "/movie/" + url.PathEscape(externalID) + "/images", true
	case assets.EntitySeries:
		return "/tv/" + url.PathEscape(externalID) + "/images", true
	default:
		// Season and episode ids are addressed as series-relative paths the
		// catalog does not track yet.
		return "", false
	}
}

type changesResponse struct {
	Results []struct {
		ID int64 `json:"id"`
	} `json:"results"`
	TotalPages int `json:"total_pages"`
	Page       int `json:"page"`
}

// ChangesSince lists the TMDB ids of movies changed after the given time,
// paging through the bulk changes endpoint.
func (c *Client) ChangesSince(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	for page := 1; ; page++ {
		requestURL := fmt.Sprintf("%s/movie/changes?api_key=%s&start_date=%s&page=%d",
			c.baseURL, url.QueryEscape(c.apiKey), since.UTC().Format("2006-01-02"), page)

		var result changesResponse
		if err := providers.GetJSON(ctx, c.http, Name, "fetch_changes", requestURL, nil, &result); err != nil {
			return nil, err
		}
		for _, entry := range result.Results {
			ids = append(ids, strconv.FormatInt(entry.ID, 10))
		}
		if page >= result.TotalPages || result.TotalPages == 0 {
			break
		}
	}
	return ids, nil
}
