package assets

import (
	"strings"
	"time"
)

// EntityType identifies the kind of catalog entity an asset belongs to.
type EntityType string

const (
	EntityMovie   EntityType = "movie"
	EntitySeries  EntityType = "series"
	EntitySeason  EntityType = "season"
	EntityEpisode EntityType = "episode"
)

// AssetType identifies one visual asset slot on an entity.
type AssetType string

const (
	AssetPoster   AssetType = "poster"
	AssetFanart   AssetType = "fanart"
	AssetBanner   AssetType = "banner"
	AssetLogo     AssetType = "logo"
	AssetThumb    AssetType = "thumb"
	AssetClearArt AssetType = "clearart"
	AssetDisc     AssetType = "disc"
)

var allAssetTypes = []AssetType{
	AssetPoster,
	AssetFanart,
	AssetBanner,
	AssetLogo,
	AssetThumb,
	AssetClearArt,
	AssetDisc,
}

// expectedAspect maps asset types to the width/height ratio artwork of that
// type is expected to have. Used only for the informational score.
var expectedAspect = map[AssetType]float64{
	AssetPoster:   2.0 / 3.0,
	AssetFanart:   16.0 / 9.0,
	AssetBanner:   5.4,
	AssetLogo:     16.0 / 9.0,
	AssetThumb:    16.0 / 9.0,
	AssetClearArt: 16.0 / 9.0,
	AssetDisc:     1.0,
}

// AllAssetTypes returns the ordered list of known asset types.
func AllAssetTypes() []AssetType {
	cp := make([]AssetType, len(allAssetTypes))
	copy(cp, allAssetTypes)
	return cp
}

// ParseAssetType converts a string into a known AssetType.
func ParseAssetType(value string) (AssetType, bool) {
	normalized := AssetType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	for _, at := range allAssetTypes {
		if at == normalized {
			return at, true
		}
	}
	return "", false
}

// ExpectedAspect returns the expected aspect ratio for an asset type, or 0
// when the type is unknown.
func (a AssetType) ExpectedAspect() float64 {
	return expectedAspect[a]
}

// Selection provenance values recorded on a selected candidate.
const (
	SelectedByAuto   = "auto"
	SelectedByManual = "manual"
)

// EntityKey identifies one catalog entity.
type EntityKey struct {
	Type EntityType
	ID   int64
}

// AssetKey identifies one asset slot on one entity. Selection writes for a
// single key must be serialized.
type AssetKey struct {
	Entity EntityKey
	Asset  AssetType
}

// Entity is the minimal catalog row this core reads: enough to address an
// entity at each provider. The full catalog schema is owned elsewhere.
type Entity struct {
	Key         EntityKey
	Title       string
	ExternalIDs map[string]string // provider name -> provider-side identifier
}

// ExternalID returns the entity identifier at the named provider.
func (e Entity) ExternalID(provider string) (string, bool) {
	id, ok := e.ExternalIDs[provider]
	return id, ok && id != ""
}

// Candidate is one offered asset from one provider for one (entity, asset
// type). Width/Height of zero and a nil VoteCount mean the provider did not
// report the field.
type Candidate struct {
	ID         int64
	Entity     EntityKey
	Asset      AssetType
	Provider   string
	URL        string
	Width      int
	Height     int
	Language   string
	QualityTag string
	Hints      []string
	FileSize   int64
	PHash      string
	VoteAvg    float64
	VoteCount  *int

	Score         float64
	Selected      bool
	Blocked       bool
	SelectedAt    *time.Time
	SelectedBy    string
	CacheDigest   string
	LastRefreshed time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the asset key this candidate competes for.
func (c Candidate) Key() AssetKey {
	return AssetKey{Entity: c.Entity, Asset: c.Asset}
}

// Resolution returns the pixel count, or 0 when dimensions are unreported.
func (c Candidate) Resolution() int {
	if c.Width <= 0 || c.Height <= 0 {
		return 0
	}
	return c.Width * c.Height
}

// SelectionDecision records one change (or explicit no-op) the auto selector
// made for an asset key. Surfaced to the UI so operators can see why an
// image changed.
type SelectionDecision struct {
	ID          string
	Key         AssetKey
	PreviousURL string
	NewURL      string
	Provider    string
	Score       float64
	Reason      string
	Applied     bool
	DecidedAt   time.Time
}
