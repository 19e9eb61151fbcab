package tour

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a write body is not a JSON object.
var ErrInvalidInput = errors.New("invalid tour input")

// ParseInput decodes a tour write body into normalized content.
// Each of the six top-level keys is optional; a key holding the wrong JSON
// type is treated as empty rather than rejected.
func ParseInput(body []byte) (Content, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Content{}, fmt.Errorf("%w: body must be a JSON object", ErrInvalidInput)
	}
	return ContentFromMap(obj), nil
}

// ContentFromMap normalizes already-decoded input.
func ContentFromMap(obj map[string]any) Content {
	var c Content

	for _, s := range objectList(obj["scenes"]) {
		c.Scenes = append(c.Scenes, NormalizeScene(s))
	}

	b := objectMap(obj["branding"])
	c.Branding = Branding{
		Mode:      BrandingMode(stringValue(b["mode"])),
		BrandName: stringValue(b["brand_name"]),
		BrandLogo: stringValue(b["brand_logo"]),
		BrandURL:  stringValue(b["brand_url"]),
	}

	th := objectMap(obj["theme"])
	c.Theme = Theme{
		PrimaryColor:   stringValue(th["primary_color"]),
		SecondaryColor: stringValue(th["secondary_color"]),
		AccentColor:    stringValue(th["accent_color"]),
		FontFamily:     stringValue(th["font_family"]),
	}

	e := objectMap(obj["expiration"])
	c.Expiration = Expiration{
		Enabled:   boolValue(e["enabled"]),
		ExpiresAt: stringValue(e["expires_at"]),
	}

	for _, f := range objectList(obj["floorPlans"]) {
		c.FloorPlans = append(c.FloorPlans, FloorPlan{
			Title:    stringValue(f["title"]),
			ImageURL: stringValue(f["image_url"]),
		})
	}
	for _, a := range objectList(obj["audioTracks"]) {
		c.AudioTracks = append(c.AudioTracks, AudioTrack{
			Label: stringValue(a["label"]),
			URL:   stringValue(a["url"]),
		})
	}

	return c.Normalize()
}
