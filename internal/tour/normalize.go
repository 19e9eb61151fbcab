package tour

import (
	"cmp"
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/umarmf343/PhantomViews/internal/color"
	"github.com/umarmf343/PhantomViews/internal/validate"
)

// NormalizeScene builds a fully defaulted scene from decoded, untrusted JSON.
// It never fails: missing or mistyped fields take their zero defaults.
func NormalizeScene(raw map[string]any) Scene {
	s := Scene{
		ID:       stringValue(raw["id"]),
		Title:    stringValue(raw["title"]),
		ImageURL: stringValue(raw["image_url"]),
	}
	for _, h := range objectList(raw["hotspots"]) {
		s.Hotspots = append(s.Hotspots, NormalizeHotspot(h))
	}
	return s.Normalize()
}

// NormalizeHotspot builds a fully defaulted hotspot from decoded, untrusted JSON.
// Position axes accept numbers and numeric strings; anything else is 0.
func NormalizeHotspot(raw map[string]any) Hotspot {
	h := Hotspot{
		ID:          stringValue(raw["id"]),
		Title:       stringValue(raw["title"]),
		Description: stringValue(raw["description"]),
		Type:        HotspotType(stringValue(raw["type"])),
		IconURL:     stringValue(raw["icon_url"]),
		Position:    positionValue(raw["position"]),
		TargetScene: stringValue(raw["target_scene"]),
		URL:         stringValue(raw["url"]),
		MediaURL:    stringValue(raw["media_url"]),
	}
	return h.Normalize()
}

// Normalize returns a sanitized copy of s with every hotspot normalized.
// Applying it twice yields the same scene.
func (s Scene) Normalize() Scene {
	out := Scene{
		ID:       validate.Text(s.ID),
		Title:    validate.Text(s.Title),
		ImageURL: validate.SafeURL(s.ImageURL),
		Hotspots: make([]Hotspot, 0, len(s.Hotspots)),
	}
	for _, h := range s.Hotspots {
		out.Hotspots = append(out.Hotspots, h.Normalize())
	}
	return out
}

// Normalize returns a sanitized copy of h. Unknown types become info and
// URLs that are not safe http(s) or root-relative links become empty.
func (h Hotspot) Normalize() Hotspot {
	return Hotspot{
		ID:          validate.Text(h.ID),
		Title:       validate.Text(h.Title),
		Description: validate.TextArea(h.Description),
		Type:        ParseHotspotType(string(h.Type)),
		IconURL:     validate.SafeURL(h.IconURL),
		Position: Position{
			X: finite(h.Position.X),
			Y: finite(h.Position.Y),
			Z: finite(h.Position.Z),
		},
		TargetScene: validate.Text(h.TargetScene),
		URL:         validate.SafeURL(h.URL),
		MediaURL:    validate.SafeURL(h.MediaURL),
	}
}

// Normalize sanitizes branding. Unknown modes fall back to the default mode.
func (b Branding) Normalize() Branding {
	mode := BrandingDefault
	if BrandingMode(strings.TrimSpace(string(b.Mode))) == BrandingWhiteLabel {
		mode = BrandingWhiteLabel
	}
	return Branding{
		Mode:      mode,
		BrandName: validate.Text(b.BrandName),
		BrandLogo: validate.SafeURL(b.BrandLogo),
		BrandURL:  validate.SafeURL(b.BrandURL),
	}
}

// Normalize fills missing or invalid theme values with the defaults.
func (t Theme) Normalize() Theme {
	font := validate.Text(t.FontFamily)
	if font == "" || strings.ContainsAny(font, ";{}<>") {
		font = DefaultFontFamily
	}
	return Theme{
		PrimaryColor:   color.SanitizeOr(t.PrimaryColor, DefaultPrimaryColor),
		SecondaryColor: color.SanitizeOr(t.SecondaryColor, DefaultSecondaryColor),
		AccentColor:    color.SanitizeOr(t.AccentColor, DefaultAccentColor),
		FontFamily:     font,
	}
}

// Normalize sanitizes the expiration timestamp text.
func (e Expiration) Normalize() Expiration {
	return Expiration{Enabled: e.Enabled, ExpiresAt: validate.Text(e.ExpiresAt)}
}

// Normalize sanitizes a floor plan. Plans without an image are kept so the
// editor can finish them; rendering drops them.
func (f FloorPlan) Normalize() FloorPlan {
	return FloorPlan{Title: validate.Text(f.Title), ImageURL: validate.SafeURL(f.ImageURL)}
}

// Normalize sanitizes an audio track.
func (a AudioTrack) Normalize() AudioTrack {
	return AudioTrack{Label: validate.Text(a.Label), URL: validate.SafeURL(a.URL)}
}

// Normalize returns a copy of c with every blob normalized and every list non-nil.
func (c Content) Normalize() Content {
	out := Content{
		Scenes:      make([]Scene, 0, len(c.Scenes)),
		Branding:    c.Branding.Normalize(),
		Theme:       c.Theme.Normalize(),
		Expiration:  c.Expiration.Normalize(),
		FloorPlans:  make([]FloorPlan, 0, len(c.FloorPlans)),
		AudioTracks: make([]AudioTrack, 0, len(c.AudioTracks)),
	}
	for _, s := range c.Scenes {
		out.Scenes = append(out.Scenes, s.Normalize())
	}
	for _, f := range c.FloorPlans {
		out.FloorPlans = append(out.FloorPlans, f.Normalize())
	}
	for _, a := range c.AudioTracks {
		out.AudioTracks = append(out.AudioTracks, a.Normalize())
	}
	return out
}

// Content returns the editable blobs of t.
func (t *Tour) Content() Content {
	return Content{
		Scenes:      t.Scenes,
		Branding:    t.Branding,
		Theme:       t.Theme,
		Expiration:  t.Expiration,
		FloorPlans:  t.FloorPlans,
		AudioTracks: t.AudioTracks,
	}
}

// stringValue coerces a decoded JSON scalar to text. Objects and arrays become "".
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

// leadingNumber matches the numeric prefix of a string such as "12.5px".
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// floatValue coerces a decoded JSON value to a finite float, defaulting to 0.
func floatValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return finite(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		m := leadingNumber.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		return finite(f)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// boolValue follows the usual form-field truthiness: true, "1", "true", "on", "yes".
func boolValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case json.Number:
		return t.String() == "1"
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}

// positionValue accepts {"x":..,"y":..,"z":..} or a [x, y, z] array.
func positionValue(v any) Position {
	switch t := v.(type) {
	case map[string]any:
		return Position{X: floatValue(t["x"]), Y: floatValue(t["y"]), Z: floatValue(t["z"])}
	case []any:
		var axes [3]float64
		for i := 0; i < len(t) && i < 3; i++ {
			axes[i] = floatValue(t[i])
		}
		return Position{X: axes[0], Y: axes[1], Z: axes[2]}
	default:
		return Position{}
	}
}

// objectMap returns v as an object, or an empty object.
func objectMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// objectList returns the object elements of a JSON array. Objects keyed by
// index, as some form encoders produce, are accepted in key order.
func objectList(v any) []map[string]any {
	var out []map[string]any
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
	case map[string]any:
		for _, key := range sortedIndexKeys(t) {
			if m, ok := t[key].(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// sortedIndexKeys returns the keys of m that are non-negative integers, in numeric order.
func sortedIndexKeys(m map[string]any) []string {
	type kv struct {
		key string
		idx int
	}
	var keys []kv
	for k := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			continue
		}
		keys = append(keys, kv{k, i})
	}
	slices.SortFunc(keys, func(a, b kv) int { return cmp.Compare(a.idx, b.idx) })
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.key
	}
	return out
}
