// Package render assembles the payload the 360° viewer consumes and the
// embed markup that carries it.
package render

import (
	"time"

	"github.com/umarmf343/PhantomViews/internal/tour"
)

// ProductName is the badge shown on tours that do not set their own brand name.
const ProductName = "PhantomViews"

// ExpiredMessage replaces the tour once its sharing link has expired.
const ExpiredMessage = "This immersive experience is no longer available because the sharing link has expired."

// Payload is the client render contract.
type Payload struct {
	Scenes      []tour.Scene      `json:"scenes"`
	Branding    tour.Branding     `json:"branding"`
	Theme       tour.Theme        `json:"theme"`
	Expiration  tour.Expiration   `json:"expiration"`
	FloorPlans  []tour.FloorPlan  `json:"floorPlans"`
	AudioTracks []tour.AudioTrack `json:"audioTracks"`
}

// Result is either a payload or an expiry notice, never both.
type Result struct {
	Expired bool
	Message string
	Payload *Payload
}

// Builder builds render results.
type Builder struct {
	now func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time expiration is evaluated against.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build evaluates the tour's expiration and, when still live, assembles its payload.
// Stored content is normalized again so older or hand-edited records render safely.
func (b *Builder) Build(t tour.Tour) Result {
	if t.Expiration.Expired(b.now()) {
		return Result{Expired: true, Message: ExpiredMessage}
	}

	c := t.Content().Normalize()

	branding := c.Branding
	if branding.Mode != tour.BrandingWhiteLabel && branding.BrandName == "" {
		branding.BrandName = ProductName
	}

	p := &Payload{
		Scenes:      c.Scenes,
		Branding:    branding,
		Theme:       c.Theme,
		Expiration:  c.Expiration,
		FloorPlans:  make([]tour.FloorPlan, 0, len(c.FloorPlans)),
		AudioTracks: make([]tour.AudioTrack, 0, len(c.AudioTracks)),
	}
	for _, f := range c.FloorPlans {
		if f.ImageURL != "" {
			p.FloorPlans = append(p.FloorPlans, f)
		}
	}
	for _, a := range c.AudioTracks {
		if a.URL != "" {
			p.AudioTracks = append(p.AudioTracks, a)
		}
	}
	return Result{Payload: p}
}
