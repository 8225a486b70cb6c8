// Package pricing rewrites display prices under a percentage multiplier.
// Everything here is pure: no I/O and no mutation of the inputs.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"livemenu/internal/models"
)

// Currency is prefixed to every formatted amount.
const Currency = "₹"

// ParseAmount parses the single numeric run of raw ("₹1,050" -> 1050).
// ok is false when raw holds no number or more than one, as in
// "₹120 / ₹200" or "6 pcs ₹240".
func ParseAmount(raw string) (float64, bool) {
	var runs []string
	start := -1
	flush := func(end int) {
		if start >= 0 {
			if run := raw[start:end]; strings.ContainsAny(run, "0123456789") {
				runs = append(runs, run)
			}
			start = -1
		}
	}
	for i, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(raw))
	if len(runs) != 1 {
		return 0, false
	}

	cleaned := strings.Trim(strings.ReplaceAll(runs[0], ",", ""), ".")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatAmount renders a whole amount with Indian digit grouping:
// 1050 -> ₹1,050, 100000 -> ₹1,00,000.
func FormatAmount(amount int64) string {
	if amount < 0 {
		amount = 0
	}
	digits := strconv.FormatInt(amount, 10)
	if len(digits) <= 3 {
		return Currency + digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return Currency + strings.Join(groups, ",") + "," + tail
}

// AdjustPrice applies percent to one display price. Empty and unparseable
// values come back unchanged, as does everything when percent is zero.
func AdjustPrice(raw string, percent float64) string {
	if percent == 0 || strings.TrimSpace(raw) == "" {
		return raw
	}
	v, ok := ParseAmount(raw)
	if !ok {
		return raw
	}
	adjusted := math.Round(v * (1 + percent/100))
	if adjusted < 0 {
		adjusted = 0
	}
	// не влезает в int64
	if adjusted >= math.MaxInt64 {
		return raw
	}
	return FormatAmount(int64(adjusted))
}

// AdjustItem returns a copy of item with every populated price field adjusted.
func AdjustItem(item models.MenuItem, percent float64) models.MenuItem {
	out := item.Clone()
	if percent == 0 {
		return out
	}
	out.Price = AdjustPrice(item.Price, percent)
	out.HalfPrice = AdjustPrice(item.HalfPrice, percent)
	out.FullPrice = AdjustPrice(item.FullPrice, percent)
	for i, size := range item.Sizes {
		out.Sizes[i] = AdjustPrice(size, percent)
	}
	return out
}

// AdjustCategory adjusts every item of c, keeping order.
func AdjustCategory(c models.MenuCategory, percent float64) models.MenuCategory {
	out := c.Clone()
	for i, item := range c.Items {
		out.Items[i] = AdjustItem(item, percent)
	}
	return out
}

// Scope limits AdjustSnapshot to part of the menu. The zero value covers the
// whole menu; Category is only honoured together with Section.
type Scope struct {
	Section  models.SectionKey `json:"section,omitempty"`
	Category *int              `json:"category,omitempty"`
}

func (s Scope) covers(key models.SectionKey, index int) bool {
	if s.Section == "" {
		return true
	}
	if s.Section != key {
		return false
	}
	return s.Category == nil || *s.Category == index
}

// AdjustSnapshot returns a new snapshot with the scoped categories adjusted.
func AdjustSnapshot(snap models.Snapshot, percent float64, scope Scope) models.Snapshot {
	out := snap.Clone()
	for key, section := range out.Sections {
		for i, c := range section.Categories {
			if scope.covers(key, i) {
				section.Categories[i] = AdjustCategory(c, percent)
			}
		}
		out.Sections[key] = section
	}
	return out
}
