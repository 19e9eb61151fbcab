// Package tour provides the scene graph model for 360° tours: scenes,
// hotspots and the per-tour metadata blobs, plus normalization of untrusted
// editor input and repositories for persisting tours.
package tour

import (
	"slices"
	"strings"
	"time"
)

// HotspotType identifies how the viewer reacts to a hotspot.
type HotspotType string

// Known hotspot types. Unknown values normalize to HotspotInfo.
const (
	HotspotInfo  HotspotType = "info"
	HotspotLink  HotspotType = "link"
	HotspotMedia HotspotType = "media"
	HotspotURL   HotspotType = "url"
)

// ParseHotspotType maps raw input to a known type.
func ParseHotspotType(s string) HotspotType {
	switch t := HotspotType(strings.ToLower(strings.TrimSpace(s))); t {
	case HotspotInfo, HotspotLink, HotspotMedia, HotspotURL:
		return t
	default:
		return HotspotInfo
	}
}

// BrandingMode selects between PhantomViews branding and client branding.
type BrandingMode string

const (
	BrandingDefault    BrandingMode = "default"
	BrandingWhiteLabel BrandingMode = "white_label"
)

// Theme defaults applied when a color or font is missing or invalid.
const (
	DefaultPrimaryColor   = "#0f172a"
	DefaultSecondaryColor = "#1e293b"
	DefaultAccentColor    = "#38bdf8"
	DefaultFontFamily     = "inherit"
)

// Position is a point on the panorama sphere.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hotspot is an interactive marker on a scene.
// TargetScene is meaningful only for link hotspots, URL only for url hotspots
// and MediaURL only for media hotspots.
type Hotspot struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        HotspotType `json:"type"`
	IconURL     string      `json:"icon_url"`
	Position    Position    `json:"position"`
	TargetScene string      `json:"target_scene"`
	URL         string      `json:"url"`
	MediaURL    string      `json:"media_url"`
}

// Scene is one panoramic image with its hotspots.
// IDs are generated by the editor and only need to be unique within a tour.
type Scene struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	ImageURL string    `json:"image_url"`
	Hotspots []Hotspot `json:"hotspots"`
}

// Branding controls the badge shown over the viewer.
type Branding struct {
	Mode      BrandingMode `json:"mode"`
	BrandName string       `json:"brand_name"`
	BrandLogo string       `json:"brand_logo"`
	BrandURL  string       `json:"brand_url"`
}

// Theme holds the viewer's CSS custom properties.
type Theme struct {
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	AccentColor    string `json:"accent_color"`
	FontFamily     string `json:"font_family"`
}

// Expiration optionally turns a tour's public link off after a point in time.
type Expiration struct {
	Enabled   bool   `json:"enabled"`
	ExpiresAt string `json:"expires_at"`
}

// expiresAtLayouts are tried in order. Values without a zone are UTC.
var expiresAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Deadline parses ExpiresAt. The second return is false when the value is
// empty or unparseable, in which case the tour never expires.
func (e Expiration) Deadline() (time.Time, bool) {
	raw := strings.TrimSpace(e.ExpiresAt)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range expiresAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Expired reports whether the expiration is enabled and its deadline is strictly before now.
func (e Expiration) Expired(now time.Time) bool {
	if !e.Enabled {
		return false
	}
	deadline, ok := e.Deadline()
	return ok && now.After(deadline)
}

// FloorPlan is an optional 2D map shown beside the viewer.
type FloorPlan struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// AudioTrack is optional background audio.
type AudioTrack struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Tour is the content-store document plus its six metadata blobs.
type Tour struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Scenes      []Scene      `json:"scenes"`
	Branding    Branding     `json:"branding"`
	Theme       Theme        `json:"theme"`
	Expiration  Expiration   `json:"expiration"`
	FloorPlans  []FloorPlan  `json:"floorPlans"`
	AudioTracks []AudioTrack `json:"audioTracks"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// Content is the editable part of a tour, written as a unit.
type Content struct {
	Scenes      []Scene      `json:"scenes"`
	Branding    Branding     `json:"branding"`
	Theme       Theme        `json:"theme"`
	Expiration  Expiration   `json:"expiration"`
	FloorPlans  []FloorPlan  `json:"floorPlans"`
	AudioTracks []AudioTrack `json:"audioTracks"`
}

// Apply replaces all six blobs of t with c.
func (t *Tour) Apply(c Content) {
	t.Scenes = c.Scenes
	t.Branding = c.Branding
	t.Theme = c.Theme
	t.Expiration = c.Expiration
	t.FloorPlans = c.FloorPlans
	t.AudioTracks = c.AudioTracks
}

// Clone returns a deep copy of t.
func (t *Tour) Clone() *Tour {
	c := *t
	c.Scenes = slices.Clone(t.Scenes)
	for i := range c.Scenes {
		c.Scenes[i].Hotspots = slices.Clone(c.Scenes[i].Hotspots)
	}
	c.FloorPlans = slices.Clone(t.FloorPlans)
	c.AudioTracks = slices.Clone(t.AudioTracks)
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		c.UpdatedAt = &u
	}
	return &c
}
