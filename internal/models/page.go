package models

import (
	"fmt"
	"strings"
)

// Variant is the accent colour family of a content page.
type Variant string

const (
	VariantCyan    Variant = "cyan"
	VariantMagenta Variant = "magenta"
	VariantGold    Variant = "gold"
)

var variantAccents = map[Variant]string{
	VariantCyan:    "#00f0ff",
	VariantMagenta: "#ff00ff",
	VariantGold:    "#ffd700",
}

func (v Variant) Valid() bool {
	_, ok := variantAccents[v]
	return ok
}

// Accent returns the hex accent colour, falling back to cyan.
func (v Variant) Accent() string {
	if accent, ok := variantAccents[v]; ok {
		return accent
	}
	return variantAccents[VariantCyan]
}

func ParseVariant(raw string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(raw)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown page variant %q", raw)
	}
	return v, nil
}

type Layout string

const (
	LayoutSingle    Layout = "single"
	LayoutTwoColumn Layout = "two-column"
)

func ParseLayout(raw string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(raw))) {
	case "", LayoutSingle:
		return LayoutSingle, nil
	case LayoutTwoColumn, "two_column", "grid":
		return LayoutTwoColumn, nil
	default:
		return "", fmt.Errorf("unknown page layout %q", raw)
	}
}

type PageKind string

const (
	PageCover     PageKind = "cover"
	PageBackCover PageKind = "back-cover"
	PageContent   PageKind = "content"
)

// PageDescriptor is one page of a plan: a CoverPage, a BackCoverPage or a
// ContentPage. The set is closed.
type PageDescriptor interface {
	PageKey() string
	PageKind() PageKind
	isPage()
}

type CoverPage struct{}

func (CoverPage) PageKey() string { return string(PageCover) }
func (CoverPage) PageKind() PageKind { return PageCover }
func (CoverPage) isPage() {}

type BackCoverPage struct{}

func (BackCoverPage) PageKey() string { return string(PageBackCover) }
func (BackCoverPage) PageKind() PageKind { return PageBackCover }
func (BackCoverPage) isPage() {}

// PageCategory is a category as placed on a page: possibly a slice of the
// snapshot category, with the title of the section it came from.
type PageCategory struct {
	Section      SectionKey   `json:"section"`
	SectionTitle string       `json:"section_title"`
	Index        int          `json:"index"`
	Category     MenuCategory `json:"category"`
	Continued    bool         `json:"continued,omitempty"`
}

type ContentPage struct {
	Key        string         `json:"key"`
	Title      string         `json:"title"`
	Variant    Variant        `json:"variant"`
	Layout     Layout         `json:"layout"`
	Categories []PageCategory `json:"categories"`
	Annotation string         `json:"annotation,omitempty"`
}

func (p ContentPage) PageKey() string { return p.Key }
func (ContentPage) PageKind() PageKind { return PageContent }
func (ContentPage) isPage() {}

func (p ContentPage) ItemCount() int {
	n := 0
	for _, c := range p.Categories {
		n += len(c.Category.Items)
	}
	return n
}

// Plan is the ordered list of pages; index+1 is the printed page number.
type Plan []PageDescriptor

func (p Plan) Keys() []string {
	keys := make([]string, len(p))
	for i, d := range p {
		keys[i] = d.PageKey()
	}
	return keys
}

// IndexOf returns the plan index of the page with the given key, or -1.
func (p Plan) IndexOf(key string) int {
	for i, d := range p {
		if d.PageKey() == key {
			return i
		}
	}
	return -1
}

// PageSummary is the JSON friendly view of a plan entry.
type PageSummary struct {
	Number     int      `json:"number"`
	Key        string   `json:"key"`
	Kind       PageKind `json:"kind"`
	Title      string   `json:"title,omitempty"`
	Variant    Variant  `json:"variant,omitempty"`
	Layout     Layout   `json:"layout,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Items      int      `json:"items"`
	Annotation string   `json:"annotation,omitempty"`
}

func (p Plan) Summaries() []PageSummary {
	out := make([]PageSummary, 0, len(p))
	for i, d := range p {
		s := PageSummary{Number: i + 1, Key: d.PageKey(), Kind: d.PageKind()}
		if cp, ok := d.(ContentPage); ok {
			s.Title = cp.Title
			s.Variant = cp.Variant
			s.Layout = cp.Layout
			s.Annotation = cp.Annotation
			s.Items = cp.ItemCount()
			for _, c := range cp.Categories {
				s.Categories = append(s.Categories, c.Category.Title)
			}
		}
		out = append(out, s)
	}
	return out
}
