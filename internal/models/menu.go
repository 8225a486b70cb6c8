package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrItemNameRequired   = errors.New("item name is required")
	ErrConflictingPrices  = errors.New("item has more than one price shape")
	ErrUnknownSection     = errors.New("unknown menu section")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrEmptySnapshot      = errors.New("menu snapshot is empty")
	ErrInvalidSectionData = errors.New("invalid section data")
)

// SectionKey names one of the fixed menu sections.
type SectionKey string

const (
	SectionSnacks    SectionKey = "snacks"
	SectionFood      SectionKey = "food"
	SectionBeverages SectionKey = "beverages"
	SectionSides     SectionKey = "sides"
)

// SectionKeys is the canonical section order.
var SectionKeys = []SectionKey{SectionSnacks, SectionFood, SectionBeverages, SectionSides}

func (k SectionKey) Valid() bool {
	for _, key := range SectionKeys {
		if key == k {
			return true
		}
	}
	return false
}

// ParseSectionKey accepts the canonical keys case-insensitively.
func ParseSectionKey(raw string) (SectionKey, error) {
	key := SectionKey(strings.ToLower(strings.TrimSpace(raw)))
	if !key.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, raw)
	}
	return key, nil
}

// PriceShape tells which of the mutually exclusive price fields an item uses.
type PriceShape int

const (
	ShapeNone PriceShape = iota
	ShapeSingle
	ShapeHalfFull
	ShapeSized
)

func (s PriceShape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeHalfFull:
		return "half_full"
	case ShapeSized:
		return "sized"
	default:
		return "none"
	}
}

type MenuItem struct {
	Name        string   `json:"name" yaml:"name"`
	Price       string   `json:"price,omitempty" yaml:"price,omitempty"`
	HalfPrice   string   `json:"half_price,omitempty" yaml:"half_price,omitempty"`
	FullPrice   string   `json:"full_price,omitempty" yaml:"full_price,omitempty"`
	Sizes       []string `json:"sizes,omitempty" yaml:"sizes,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string   `json:"image,omitempty" yaml:"image,omitempty"`
	ChefSpecial bool     `json:"chef_special,omitempty" yaml:"chef_special,omitempty"`
	BestSeller  bool     `json:"best_seller,omitempty" yaml:"best_seller,omitempty"`
	Premium     bool     `json:"premium,omitempty" yaml:"premium,omitempty"`
	TopShelf    bool     `json:"top_shelf,omitempty" yaml:"top_shelf,omitempty"`
}

func (i MenuItem) hasSingle() bool { return strings.TrimSpace(i.Price) != "" }
// A lone half or full amount still counts as the pair; the missing column
// is drawn as a dash.
func (i MenuItem) hasHalfFull() bool { return i.HalfPrice != "" || i.FullPrice != "" }
func (i MenuItem) hasSized() bool { return len(i.Sizes) > 0 }

// PriceShape returns the populated shape. Sized wins over half/full, which
// wins over single, for data that violates the exclusivity rule.
func (i MenuItem) PriceShape() PriceShape {
	switch {
	case i.hasSized():
		return ShapeSized
	case i.hasHalfFull():
		return ShapeHalfFull
	case i.hasSingle():
		return ShapeSingle
	default:
		return ShapeNone
	}
}

func (i MenuItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrItemNameRequired
	}
	populated := 0
	for _, ok := range []bool{i.hasSingle(), i.hasHalfFull(), i.hasSized()} {
		if ok {
			populated++
		}
	}
	if populated > 1 {
		return fmt.Errorf("%w: %s", ErrConflictingPrices, i.Name)
	}
	return nil
}

// Badges returns the labels of the badges that are set, in display order.
func (i MenuItem) Badges() []string {
	var out []string
	if i.ChefSpecial {
		out = append(out, "CHEF'S SPECIAL")
	}
	if i.BestSeller {
		out = append(out, "BEST SELLER")
	}
	if i.Premium {
		out = append(out, "PREMIUM")
	}
	if i.TopShelf {
		out = append(out, "TOP SHELF")
	}
	return out
}

func (i MenuItem) Clone() MenuItem {
	out := i
	if i.Sizes != nil {
		out.Sizes = append([]string(nil), i.Sizes...)
	}
	return out
}

type MenuCategory struct {
	Title string     `json:"title" yaml:"title"`
	Icon  string     `json:"icon,omitempty" yaml:"icon,omitempty"`
	Items []MenuItem `json:"items" yaml:"items"`
}

func (c MenuCategory) Clone() MenuCategory {
	out := c
	out.Items = make([]MenuItem, len(c.Items))
	for i, item := range c.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

type MenuSection struct {
	Title      string         `json:"title" yaml:"title"`
	Categories []MenuCategory `json:"categories" yaml:"categories"`
}

func (s MenuSection) Clone() MenuSection {
	out := MenuSection{Title: s.Title, Categories: make([]MenuCategory, len(s.Categories))}
	for i, c := range s.Categories {
		out.Categories[i] = c.Clone()
	}
	return out
}

// Snapshot is the whole menu, the unit that is stored, archived and exported.
type Snapshot struct {
	Sections map[SectionKey]MenuSection `json:"sections" yaml:"sections"`
}

func NewSnapshot() Snapshot {
	return Snapshot{Sections: make(map[SectionKey]MenuSection, len(SectionKeys))}
}

func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot()
	for key, section := range s.Sections {
		out.Sections[key] = section.Clone()
	}
	return out
}

func (s Snapshot) Section(key SectionKey) (MenuSection, bool) {
	if s.Sections == nil {
		return MenuSection{}, false
	}
	section, ok := s.Sections[key]
	return section, ok
}

// Category tolerates missing sections and out of range indexes.
func (s Snapshot) Category(key SectionKey, index int) (MenuCategory, bool) {
	section, ok := s.Section(key)
	if !ok || index < 0 || index >= len(section.Categories) {
		return MenuCategory{}, false
	}
	return section.Categories[index], true
}

func (s Snapshot) ItemCount() int {
	total := 0
	for _, section := range s.Sections {
		for _, c := range section.Categories {
			total += len(c.Items)
		}
	}
	return total
}

func (s Snapshot) IsEmpty() bool {
	return s.ItemCount() == 0
}

// Validate checks every item and that only known sections are present.
func (s Snapshot) Validate() error {
	for key, section := range s.Sections {
		if !key.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownSection, key)
		}
		for ci, c := range section.Categories {
			for ii, item := range c.Items {
				if err := item.Validate(); err != nil {
					return fmt.Errorf("%s/%d/%d: %w", key, ci, ii, err)
				}
			}
		}
	}
	return nil
}
