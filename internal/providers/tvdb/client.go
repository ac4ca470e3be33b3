// Package tvdb fetches artwork candidates from TheTVDB v4 API. The API
// wants a JWT obtained from the api key; the token is cached per client and
// refreshed on demand.
package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"keyart/internal/assets"
	"keyart/internal/providers"
	"keyart/internal/services"
)

// Name is the provider identifier.
const Name = "tvdb"

const defaultBaseURL = "https://api4.thetvdb.com/v4"

// Client talks to TheTVDB v4 API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
}

// New builds a TVDB client. baseURL overrides the public endpoint, used by
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

func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, Name, "login", "encode credentials", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, Name, "login", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransientProvider, Name, "login", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrPermanentProvider, Name, "login",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var result struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", services.Wrap(services.ErrTransientProvider, Name, "login", "decode response", err)
	}
	if result.Data.Token == "" {
		return "", services.Wrap(services.ErrPermanentProvider, Name, "login", "empty token", nil)
	}
	c.token = result.Data.Token
	return c.token, nil
}

type tvdbArtwork struct {
	Image    string `json:"image"`
	Type     int    `json:"type"`
	Language string `json:"language"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Score    int    `json:"score"`
}

type extendedResponse struct {
	Data struct {
		Artworks []tvdbArtwork `json:"artworks"`
	} `json:"data"`
}

// TVDB artwork type codes for series records.
var seriesArtworkTypes = map[assets.AssetType]int{
	assets.AssetBanner: 1,
	assets.AssetPoster: 2,
	assets.AssetFanart: 3,
	assets.AssetLogo:   23,
}

// FetchCandidates returns TVDB's artwork offers. Only series-level artwork
// is served; movies and finer-grained entities come from the other
// providers.
func (c *Client) FetchCandidates(ctx context.Context, entity assets.Entity, assetType assets.AssetType) ([]providers.RawCandidate, error) {
	if entity.Key.Type != assets.EntitySeries {
		return nil, nil
	}
	externalID, ok := entity.ExternalID(Name)
	if !ok {
		return nil, nil
	}
	wantedType, ok := seriesArtworkTypes[assetType]
	if !ok {
		return nil, nil
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Accept", "application/json")

	var result extendedResponse
	requestURL := c.baseURL + "/series/" + url.PathEscape(externalID) + "/extended?meta=artworks"
	if err := providers.GetJSON(ctx, c.http, Name, "fetch_artworks", requestURL, header, &result); err != nil {
		return nil, err
	}

	var raws []providers.RawCandidate
	for _, artwork := range result.Data.Artworks {
		if artwork.Image == "" || artwork.Type != wantedType {
			continue
		}
		score := artwork.Score
		raws = append(raws, providers.RawCandidate{
			URL:       artwork.Image,
			Width:     artwork.Width,
			Height:    artwork.Height,
			Language:  artwork.Language,
			VoteCount: &score,
		})
	}
	return raws, nil
}
