// Package fanarttv fetches artwork candidates from fanart.tv. Movies are
// addressed by TMDB id, series by TVDB id; the image categories carry an HD
// variant whose name is forwarded as a quality hint.
package fanarttv

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cast"

	"keyart/internal/assets"
	"keyart/internal/providers"
)

// Name is the provider identifier.
const Name = "fanarttv"

const defaultBaseURL = "https://webservice.fanart.tv/v3"

// Client talks to the fanart.tv v3 API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New builds a fanart.tv client. baseURL overrides the public endpoint,
// used by tests.
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

type fanartImage struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Likes string `json:"likes"`
	Lang  string `json:"lang"`
}

// Category lists per asset type, HD variants first. The response carries
// every category; FetchCandidates picks the ones for the requested type.
var movieCategories = map[assets.AssetType][]string{
	assets.AssetPoster:   {"movieposter"},
	assets.AssetFanart:   {"moviebackground"},
	assets.AssetBanner:   {"moviebanner"},
	assets.AssetLogo:     {"hdmovielogo", "movielogo"},
	assets.AssetClearArt: {"hdmovieclearart", "movieclearart"},
	assets.AssetDisc:     {"moviedisc"},
	assets.AssetThumb:    {"moviethumb"},
}

var tvCategories = map[assets.AssetType][]string{
	assets.AssetPoster:   {"tvposter"},
	assets.AssetFanart:   {"showbackground"},
	assets.AssetBanner:   {"tvbanner"},
	assets.AssetLogo:     {"hdtvlogo", "clearlogo"},
	assets.AssetClearArt: {"hdclearart", "clearart"},
	assets.AssetThumb:    {"tvthumb"},
}

// FetchCandidates returns fanart.tv's offers for the entity and asset type.
func (c *Client) FetchCandidates(ctx context.Context, entity assets.Entity, assetType assets.AssetType) ([]providers.RawCandidate, error) {
	var (
		endpoint   string
		categories []string
	)
	switch entity.Key.Type {
	case assets.EntityMovie:
		tmdbID, ok := entity.ExternalID("tmdb")
		if !ok {
			return nil, nil
		}
		endpoint = "/movies/" + url.PathEscape(tmdbID)
		categories = movieCategories[assetType]
	case assets.EntitySeries:
		tvdbID, ok := entity.ExternalID("tvdb")
		if !ok {
			return nil, nil
		}
		endpoint = "/tv/" + url.PathEscape(tvdbID)
		categories = tvCategories[assetType]
	default:
		return nil, nil
	}
	if len(categories) == 0 {
		return nil, nil
	}

	var result map[string]any
	requestURL := c.baseURL + endpoint + "?api_key=" + url.QueryEscape(c.apiKey)
	if err := providers.GetJSON(ctx, c.http, Name, "fetch_artwork", requestURL, nil, &result); err != nil {
		return nil, err
	}

	var raws []providers.RawCandidate
	for _, category := range categories {
		for _, entry := range decodeImages(result[category]) {
			if entry.URL == "" {
				continue
			}
			likes := cast.ToInt(entry.Likes)
			raw := providers.RawCandidate{
				URL:       entry.URL,
				Language:  entry.Lang,
				VoteCount: &likes,
			}
			if len(category) > 2 && category[:2] == "hd" {
				raw.QualityTag = "hd"
			}
			raws = append(raws, raw)
		}
	}
	return raws, nil
}

// decodeImages tolerates the loose shape of fanart.tv responses: unknown
// categories are absent, present ones are arrays of image objects.
func decodeImages(value any) []fanartImage {
	entries, ok := value.([]any)
	if !ok {
		return nil
	}
	images := make([]fanartImage, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		images = append(images, fanartImage{
			ID:    cast.ToString(fields["id"]),
			URL:   cast.ToString(fields["url"]),
			Likes: cast.ToString(fields["likes"]),
			Lang:  cast.ToString(fields["lang"]),
		})
	}
	return images
}
