package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"

	"github.com/umarmf343/PhantomViews/internal/color"
)

// EmbedOptions size the viewer container.
type EmbedOptions struct {
	Width    string
	Height   string
	Autoplay bool
}

// Default viewer dimensions.
const (
	DefaultWidth  = "100%"
	DefaultHeight = "600px"
)

var cssLength = regexp.MustCompile(`^(?:\d+(?:\.\d+)?(?:px|%|em|rem|vh|vw)|0|auto)$`)

func cssLengthOr(v, fallback string) string {
	v = strings.TrimSpace(v)
	if cssLength.MatchString(v) {
		return v
	}
	return fallback
}

var embedTemplate = template.Must(template.New("embed").Parse(
	`{{if .Expired}}<div class="phantomviews-tour-expired">{{.Message}}</div>
{{else}}<div class="phantomviews-tour" data-tour-id="{{.TourID}}" data-license-state="{{.LicenseState}}" data-autoplay="{{.Autoplay}}" style="{{.Style}}">
	<div class="phantomviews-viewer" aria-live="polite"></div>
	<noscript>PhantomViews requires JavaScript to display the tour.</noscript>
</div>
<script type="application/json" class="phantomviews-data" data-tour-id="{{.TourID}}">{{.Data}}</script>
{{end}}`))

type embedView struct {
	Expired      bool
	Message      string
	TourID       string
	LicenseState string
	Autoplay     bool
	Style        template.CSS
	Data         template.JS
}

// Embed writes the viewer markup for a built result. Expired results render
// only the expiry notice.
func Embed(w io.Writer, tourID, licenseState string, res Result, opts EmbedOptions) error {
	view := embedView{
		Expired:      res.Expired || res.Payload == nil,
		Message:      res.Message,
		TourID:       tourID,
		LicenseState: licenseState,
		Autoplay:     opts.Autoplay,
	}
	if view.Expired && view.Message == "" {
		view.Message = ExpiredMessage
	}

	if !view.Expired {
		data, err := json.Marshal(res.Payload)
		if err != nil {
			return fmt.Errorf("encode tour payload: %w", err)
		}
		view.Data = template.JS(data)

		theme := res.Payload.Theme
		view.Style = template.CSS(fmt.Sprintf(
			"width: %s; height: %s; --pv-primary: %s; --pv-secondary: %s; --pv-accent: %s; --pv-on-primary: %s; --pv-on-accent: %s;",
			cssLengthOr(opts.Width, DefaultWidth),
			cssLengthOr(opts.Height, DefaultHeight),
			theme.PrimaryColor,
			theme.SecondaryColor,
			theme.AccentColor,
			color.ReadableText(theme.PrimaryColor),
			color.ReadableText(theme.AccentColor),
		))
	}

	return embedTemplate.Execute(w, view)
}
