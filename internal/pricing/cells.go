package pricing

import (
	"fmt"
	"strings"

	"livemenu/internal/models"
)

// PegSizes labels a sized price list of exactly four entries.
var PegSizes = []string{"30ml", "60ml", "90ml", "180ml"}

// Cell is one labelled amount of a price cell.
type Cell struct {
	Label  string `json:"label,omitempty"`
	Amount string `json:"amount"`
}

// SizeLabels returns the column labels for n sized prices.
func SizeLabels(n int) []string {
	if n == len(PegSizes) {
		return append([]string(nil), PegSizes...)
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("Size %d", i+1)
	}
	return labels
}

// Cells lays out the price of item according to its shape. A missing half or
// full amount is shown as a dash so both columns keep their place.
func Cells(item models.MenuItem) []Cell {
	switch item.PriceShape() {
	case models.ShapeSingle:
		return []Cell{{Amount: item.Price}}
	case models.ShapeHalfFull:
		return []Cell{
			{Label: "Half", Amount: orDash(item.HalfPrice)},
			{Label: "Full", Amount: orDash(item.FullPrice)},
		}
	case models.ShapeSized:
		labels := SizeLabels(len(item.Sizes))
		cells := make([]Cell, len(item.Sizes))
		for i, amount := range item.Sizes {
			cells[i] = Cell{Label: labels[i], Amount: orDash(amount)}
		}
		return cells
	default:
		return nil
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Row is one line of the flat price list shared by the spreadsheet exports.
type Row struct {
	Section  string
	Category string
	Item     string
	Shape    string
	Cells    []Cell
	Badges   []string
}

// Rows flattens the snapshot in canonical section order.
func Rows(snap models.Snapshot) []Row {
	var rows []Row
	for _, key := range models.SectionKeys {
		section, ok := snap.Section(key)
		if !ok {
			continue
		}
		for _, c := range section.Categories {
			for _, item := range c.Items {
				rows = append(rows, Row{
					Section:  section.Title,
					Category: c.Title,
					Item:     item.Name,
					Shape:    item.PriceShape().String(),
					Cells:    Cells(item),
					Badges:   item.Badges(),
				})
			}
		}
	}
	return rows
}

// MaxCells is the widest price cell among rows.
func MaxCells(rows []Row) int {
	max := 0
	for _, r := range rows {
		if len(r.Cells) > max {
			max = len(r.Cells)
		}
	}
	return max
}

// Header names the columns of the flat price list for width price cells.
func Header(width int) []string {
	h := []string{"Section", "Category", "Item", "Badges"}
	for i := 1; i <= width; i++ {
		h = append(h, fmt.Sprintf("Price %d", i))
	}
	return h
}

// Values renders r as width price columns, labelled where the shape has
// labels.
func (r Row) Values(width int) []string {
	v := []string{r.Section, r.Category, r.Item, strings.Join(r.Badges, ", ")}
	for i := 0; i < width; i++ {
		switch {
		case i >= len(r.Cells):
			v = append(v, "")
		case r.Cells[i].Label != "":
			v = append(v, r.Cells[i].Label+" "+r.Cells[i].Amount)
		default:
			v = append(v, r.Cells[i].Amount)
		}
	}
	return v
}
