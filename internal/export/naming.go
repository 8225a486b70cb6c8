package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultProduct = "LiveBar"

// ArchiveLabel identifies an archived snapshot being exported.
type ArchiveLabel struct {
	ID         string
	ArchivedAt time.Time
}

// Naming builds artifact file names.
type Naming struct {
	Product string
}

func (n Naming) product() string {
	p := strings.TrimSpace(n.Product)
	if p == "" {
		return DefaultProduct
	}
	return strings.ReplaceAll(p, " ", "_")
}

func percent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// Image names a single raster: menu-<key>.<ext>.
func (n Naming) Image(key string, format Format, promo *float64) string {
	if promo != nil {
		return fmt.Sprintf("menu-%s-promo-%spct.%s", key, percent(*promo), format)
	}
	return fmt.Sprintf("menu-%s.%s", key, format)
}

// PagePDF names the one-page document handed to the printer.
func (n Naming) PagePDF(key string) string {
	return fmt.Sprintf("%s_%s.pdf", n.product(), key)
}

func (n Naming) Document(promo *float64, archive *ArchiveLabel) string {
	switch {
	case archive != nil:
		return fmt.Sprintf("%s_Archive_%s.pdf", n.product(), archive.ArchivedAt.Format("2006-01-02_1504"))
	case promo != nil:
		return fmt.Sprintf("%s_Promo_%spct.pdf", n.product(), percent(*promo))
	default:
		return n.product() + "_Full_Menu.pdf"
	}
}
