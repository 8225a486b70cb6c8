package render

import (
	"fmt"
	"image"
	"strings"
	"unicode/utf8"
)

// PageSize is a page in logical pixels at 96 dpi.
type PageSize struct {
	Name   string
	Width  float64
	Height float64
	// MillimetersW/H are the physical size used for documents.
	MillimetersW float64
	MillimetersH float64
}

var (
	PageA4 = PageSize{Name: "A4", Width: 794, Height: 1123, MillimetersW: 210, MillimetersH: 297}
	PageA5 = PageSize{Name: "A5", Width: 559, Height: 794, MillimetersW: 148, MillimetersH: 210}
)

func PageSizeByName(name string) (PageSize, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "A4":
		return PageA4, nil
	case "A5":
		return PageA5, nil
	default:
		return PageSize{}, fmt.Errorf("unsupported page size %q", name)
	}
}

// Asset names known to the composer.
const (
	AssetLogo       = "logo"
	AssetLocationQR = "location-qr"
	AssetFeedbackQR = "feedback-qr"
)

// Assets holds the images available to one page.
type Assets map[string]image.Image

// Branding is the fixed content of the cover and back cover.
type Branding struct {
	Name        string
	Subtitle    string
	Tagline     string
	Phone       string
	Handle      string
	Address     string
	LocationURL string
	FeedbackURL string
	Narrative   []string
}

// DefaultBranding is the house identity. The QR links have no default and
// come from configuration.
func DefaultBranding() Branding {
	return Branding{
		Name:     "LIVE",
		Subtitle: "Bar & Kitchen",
		Tagline:  "Eat.Drink.Code.Repeat",
		Phone:    "+91 7507066880",
		Handle:   "Live.lounge.wakad",
		Address:  "Wakad, Pune",
		Narrative: []string{
			"Food is the universal language that connects us all. It transcends borders, cultures, and differences, bringing us together around a shared table.",
			"At LIVE, we believe in the power of this connection. Every dish we serve is a chapter in our story, crafted with passion, tradition, and a touch of innovation.",
			"We invite you to savor the moment, share the joy, and create memories that linger long after the last bite. Here's to good food, great company, and the beautiful tapestry of life woven one meal at a time.",
		},
	}
}

// textWidth estimates the advance of s. The rasterizer measures exactly;
// the composer only needs a conservative figure for wrapping and columns.
func textWidth(s string, size float64, bold bool) float64 {
	factor := 0.55
	if bold {
		factor = 0.6
	}
	return float64(utf8.RuneCountInString(s)) * size * factor
}

// wrap breaks s into lines no wider than width at the given size.
func wrap(s string, width, size float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		candidate := current + " " + w
		if textWidth(candidate, size, false) > width {
			lines = append(lines, current)
			current = w
			continue
		}
		current = candidate
	}
	return append(lines, current)
}

// truncate shortens s with an ellipsis so it fits width.
func truncate(s string, width, size float64, bold bool) string {
	if textWidth(s, size, bold) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "..."
		if textWidth(candidate, size, bold) <= width {
			return candidate
		}
	}
	return string(runes)
}
