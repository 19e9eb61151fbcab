package tour

import (
	"errors"
	"testing"
)

func TestParseInput_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"scenes":`},
		{"array body", `[]`},
		{"string body", `"scenes"`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput([]byte(tt.body))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestParseInput_EmptyObjectDefaults(t *testing.T) {
	c, err := ParseInput([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Scenes == nil || c.FloorPlans == nil || c.AudioTracks == nil {
		t.Error("lists should be empty, not nil")
	}
	if c.Branding.Mode != BrandingDefault {
		t.Errorf("expected default branding, got %q", c.Branding.Mode)
	}
	want := Theme{
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		AccentColor:    DefaultAccentColor,
		FontFamily:     DefaultFontFamily,
	}
	if c.Theme != want {
		t.Errorf("expected default theme %+v, got %+v", want, c.Theme)
	}
	if c.Expiration.Enabled {
		t.Error("expiration should be disabled by default")
	}
}

func TestParseInput_MistypedBlobsAreEmpty(t *testing.T) {
	c, err := ParseInput([]byte(`{"scenes":"oops","branding":[1,2],"theme":7,"floorPlans":{"a":1},"audioTracks":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Scenes) != 0 || len(c.FloorPlans) != 0 || len(c.AudioTracks) != 0 {
		t.Errorf("expected empty lists, got %+v", c)
	}
	if c.Theme.PrimaryColor != DefaultPrimaryColor {
		t.Errorf("expected default primary color, got %q", c.Theme.PrimaryColor)
	}
}

func TestParseInput_Scenes(t *testing.T) {
	body := `{
		"scenes": [
			{
				"id": "lobby",
				"title": "  Main   Lobby ",
				"image_url": "https://cdn.example.com/lobby.jpg",
				"hotspots": [
					{"id": "h1", "type": "LINK", "target_scene": "kitchen", "position": {"x": "12.5px", "y": 3, "z": "abc"}},
					{"id": "h2", "type": "teleport", "url": "javascript:alert(1)", "position": [1, "2", 3]}
				]
			},
			"not a scene",
			{"id": 42, "image_url": "/uploads/kitchen.jpg"}
		],
		"branding": {"mode": "white_label", "brand_name": "Acme", "brand_url": "ftp://acme.example"},
		"theme": {"primary_color": "#ABC", "accent_color": "red", "font_family": "Inter;}"},
		"expiration": {"enabled": "yes", "expires_at": "2025-03-01"},
		"floorPlans": {"1": {"title": "Second"}, "0": {"title": "First", "image_url": "https://cdn.example.com/fp.png"}},
		"audioTracks": [{"label": "Ambient", "url": "https://cdn.example.com/a.mp3"}]
	}`

	c, err := ParseInput([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(c.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(c.Scenes))
	}
	lobby := c.Scenes[0]
	if lobby.Title != "Main Lobby" {
		t.Errorf("expected collapsed title, got %q", lobby.Title)
	}
	if len(lobby.Hotspots) != 2 {
		t.Fatalf("expected 2 hotspots, got %d", len(lobby.Hotspots))
	}
	link := lobby.Hotspots[0]
	if link.Type != HotspotLink || link.TargetScene != "kitchen" {
		t.Errorf("unexpected link hotspot: %+v", link)
	}
	if link.Position != (Position{X: 12.5, Y: 3, Z: 0}) {
		t.Errorf("unexpected position: %+v", link.Position)
	}
	unknown := lobby.Hotspots[1]
	if unknown.Type != HotspotInfo {
		t.Errorf("unknown type should become info, got %q", unknown.Type)
	}
	if unknown.URL != "" {
		t.Errorf("unsafe URL should be dropped, got %q", unknown.URL)
	}
	if unknown.Position != (Position{X: 1, Y: 2, Z: 3}) {
		t.Errorf("unexpected array position: %+v", unknown.Position)
	}

	kitchen := c.Scenes[1]
	if kitchen.ID != "42" || kitchen.ImageURL != "/uploads/kitchen.jpg" {
		t.Errorf("unexpected second scene: %+v", kitchen)
	}
	if kitchen.Hotspots == nil {
		t.Error("hotspots should be empty, not nil")
	}

	if c.Branding.Mode != BrandingWhiteLabel || c.Branding.BrandName != "Acme" || c.Branding.BrandURL != "" {
		t.Errorf("unexpected branding: %+v", c.Branding)
	}
	if c.Theme.PrimaryColor != "#aabbcc" || c.Theme.AccentColor != DefaultAccentColor || c.Theme.FontFamily != DefaultFontFamily {
		t.Errorf("unexpected theme: %+v", c.Theme)
	}
	if !c.Expiration.Enabled || c.Expiration.ExpiresAt != "2025-03-01" {
		t.Errorf("unexpected expiration: %+v", c.Expiration)
	}
	if len(c.FloorPlans) != 2 || c.FloorPlans[0].Title != "First" || c.FloorPlans[1].Title != "Second" {
		t.Errorf("floor plans should follow index order, got %+v", c.FloorPlans)
	}
	if len(c.AudioTracks) != 1 || c.AudioTracks[0].Label != "Ambient" {
		t.Errorf("unexpected audio tracks: %+v", c.AudioTracks)
	}
}

func TestContentNormalize_Idempotent(t *testing.T) {
	c, err := ParseInput([]byte(`{"scenes":[{"id":" a ","title":"A\tB","hotspots":[{"type":"media","media_url":"https://cdn.example.com/v.mp4"}]}],"theme":{"secondary_color":"#FFF"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again := c.Normalize()
	if again.Scenes[0].ID != c.Scenes[0].ID || again.Scenes[0].Title != c.Scenes[0].Title {
		t.Errorf("scene changed on second pass: %+v vs %+v", c.Scenes[0], again.Scenes[0])
	}
	if again.Scenes[0].Hotspots[0] != c.Scenes[0].Hotspots[0] {
		t.Errorf("hotspot changed on second pass: %+v vs %+v", c.Scenes[0].Hotspots[0], again.Scenes[0].Hotspots[0])
	}
	if again.Theme != c.Theme {
		t.Errorf("theme changed on second pass: %+v vs %+v", c.Theme, again.Theme)
	}
	if c.Theme.SecondaryColor != "#ffffff" {
		t.Errorf("expected expanded secondary color, got %q", c.Theme.SecondaryColor)
	}
}
