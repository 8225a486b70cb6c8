// Package plan maps a menu snapshot onto the ordered pages of the printed menu.
package plan

import (
	"fmt"

	"livemenu/internal/models"
)

// DefaultSplitThreshold is the number of items one category may place on a page.
const DefaultSplitThreshold = 18

const continuedSuffix = " (continued)"

// CategoryRef points at a snapshot category, optionally at a slice of its
// items. End == 0 means up to the last item.
type CategoryRef struct {
	Section models.SectionKey `yaml:"section" json:"section"`
	Index   int               `yaml:"index" json:"index"`
	Start   int               `yaml:"start,omitempty" json:"start,omitempty"`
	End     int               `yaml:"end,omitempty" json:"end,omitempty"`
}

// Entry is the static description of one content page.
type Entry struct {
	Key        string         `yaml:"key" json:"key"`
	Title      string         `yaml:"title" json:"title"`
	Variant    models.Variant `yaml:"variant" json:"variant"`
	Layout     models.Layout  `yaml:"layout" json:"layout"`
	Annotation string         `yaml:"annotation,omitempty" json:"annotation,omitempty"`
	MaxItems   int            `yaml:"max_items,omitempty" json:"max_items,omitempty"`
	Categories []CategoryRef  `yaml:"categories" json:"categories"`
}

func (e Entry) validate() error {
	if e.Key == "" {
		return fmt.Errorf("plan entry %q: key is required", e.Title)
	}
	if e.Key == string(models.PageCover) || e.Key == string(models.PageBackCover) {
		return fmt.Errorf("plan entry %q: key is reserved", e.Key)
	}
	if !e.Variant.Valid() {
		return fmt.Errorf("plan entry %q: unknown variant %q", e.Key, e.Variant)
	}
	if e.Layout != models.LayoutSingle && e.Layout != models.LayoutTwoColumn {
		return fmt.Errorf("plan entry %q: unknown layout %q", e.Key, e.Layout)
	}
	for _, ref := range e.Categories {
		if !ref.Section.Valid() {
			return fmt.Errorf("plan entry %q: %w: %q", e.Key, models.ErrUnknownSection, ref.Section)
		}
	}
	return nil
}

// Builder turns a snapshot into a plan. The zero value builds the default
// layout with no back cover and no splitting.
type Builder struct {
	Entries          []Entry
	SplitThreshold   int
	IncludeBackCover bool
}

func NewBuilder(entries []Entry, splitThreshold int, includeBackCover bool) (*Builder, error) {
	if entries == nil {
		entries = DefaultEntries()
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, err
		}
		if seen[e.Key] {
			return nil, fmt.Errorf("duplicate plan entry key %q", e.Key)
		}
		seen[e.Key] = true
	}
	return &Builder{Entries: entries, SplitThreshold: splitThreshold, IncludeBackCover: includeBackCover}, nil
}

// Build is deterministic and never fails: references to categories that are
// not in the snapshot are skipped and pages left empty are dropped.
func (b *Builder) Build(snap models.Snapshot) models.Plan {
	entries := b.Entries
	if entries == nil {
		entries = DefaultEntries()
	}

	out := models.Plan{models.CoverPage{}}
	for _, e := range entries {
		out = append(out, b.expand(e, snap)...)
	}
	if b.IncludeBackCover {
		out = append(out, models.BackCoverPage{})
	}
	return out
}

func (b *Builder) capacity(e Entry) int {
	if e.MaxItems > 0 {
		return e.MaxItems
	}
	return b.SplitThreshold
}

// expand resolves one entry into its page and any continuation pages that
// follow it directly.
func (b *Builder) expand(e Entry, snap models.Snapshot) []models.PageDescriptor {
	limit := b.capacity(e)
	layout := e.Layout
	if layout == "" {
		layout = models.LayoutSingle
	}

	page := models.ContentPage{
		Key:        e.Key,
		Title:      e.Title,
		Variant:    e.Variant,
		Layout:     layout,
		Annotation: e.Annotation,
	}
	var continuations []models.ContentPage

	for _, ref := range e.Categories {
		placed, ok := resolve(snap, ref)
		if !ok {
			continue
		}
		chunks := split(placed.Category.Items, limit)
		first := placed
		first.Category.Items = chunks[0]
		page.Categories = append(page.Categories, first)

		for _, chunk := range chunks[1:] {
			cont := placed
			cont.Continued = true
			cont.Category.Title = placed.Category.Title + continuedSuffix
			cont.Category.Items = chunk
			continuations = append(continuations, models.ContentPage{
				Key:        fmt.Sprintf("%s-cont-%d", e.Key, len(continuations)+1),
				Title:      e.Title + continuedSuffix,
				Variant:    e.Variant,
				Layout:     models.LayoutSingle,
				Categories: []models.PageCategory{cont},
			})
		}
	}

	var pages []models.PageDescriptor
	if len(page.Categories) > 0 {
		pages = append(pages, page)
	}
	for _, c := range continuations {
		pages = append(pages, c)
	}
	return pages
}

// resolve copies the referenced category (or its slice) out of the snapshot.
func resolve(snap models.Snapshot, ref CategoryRef) (models.PageCategory, bool) {
	category, ok := snap.Category(ref.Section, ref.Index)
	if !ok {
		return models.PageCategory{}, false
	}
	section, _ := snap.Section(ref.Section)

	start, end := ref.Start, ref.End
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(category.Items) {
		end = len(category.Items)
	}
	if start >= end {
		return models.PageCategory{}, false
	}

	placed := category.Clone()
	placed.Items = placed.Items[start:end]
	return models.PageCategory{
		Section:      ref.Section,
		SectionTitle: section.Title,
		Index:        ref.Index,
		Category:     placed,
		Continued:    start > 0,
	}, true
}

// split cuts items into chunks of at most limit; concatenating the chunks
// gives back items. limit <= 0 disables splitting.
func split(items []models.MenuItem, limit int) [][]models.MenuItem {
	if limit <= 0 || len(items) <= limit {
		return [][]models.MenuItem{items}
	}
	var chunks [][]models.MenuItem
	for start := 0; start < len(items); start += limit {
		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
