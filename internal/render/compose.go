package render

import (
	"errors"
	"fmt"
	"strings"

	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

var ErrUnknownPage = errors.New("unknown page descriptor")

const (
	background  = "#0b0b12"
	textPrimary = "#f5f5f7"
	textMuted   = "#a1a1aa"
	promoColor  = "#ff00ff"
)

// Options carries the per-page inputs of a render.
type Options struct {
	Index        int
	Total        int
	PromoPercent *float64
}

// Composer lays out pages of one fixed size.
type Composer struct {
	Size     PageSize
	Branding Branding
}

// Compose builds the canvas for one page. Layout overflow is flagged on the
// canvas, never returned as an error.
func (c Composer) Compose(desc models.PageDescriptor, opts Options, assets Assets) (*Canvas, error) {
	size := c.Size
	if size.Width <= 0 || size.Height <= 0 {
		size = PageA4
	}
	switch d := desc.(type) {
	case models.CoverPage:
		return c.cover(size, opts, assets), nil
	case models.BackCoverPage:
		return c.backCover(size, opts, assets), nil
	case models.ContentPage:
		return c.content(size, d, opts), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownPage, desc)
	}
}

func (c Composer) frame(cv *Canvas, u float64) {
	w, h := cv.Width, cv.Height
	cv.rect(14*u, 14*u, w-28*u, h-28*u, "", cv.Accent, 2*u)
	cv.rect(22*u, 22*u, w-44*u, h-44*u, "", cv.Accent+"66", 1*u)
	for _, p := range [][2]float64{{14, 14}, {w/u - 22, 14}, {14, h/u - 22}, {w/u - 22, h/u - 22}} {
		cv.rect(p[0]*u, p[1]*u, 8*u, 8*u, cv.Accent, "", 0)
	}
}

// itemLayout is an item measured for a given column width.
type itemLayout struct {
	row     ItemRow
	name    string
	single  string
	labeled bool
	height  float64
}

type categoryLayout struct {
	header CategoryHeader
	items  []itemLayout
	height float64
}

const (
	singlePriceWidth = 80
	labeledCellWidth = 74
	headerHeight     = 34
	categoryGap      = 16
)

func measureItem(item models.MenuItem, category string, width, u float64) itemLayout {
	shape := item.PriceShape()
	l := itemLayout{row: ItemRow{
		Category: category,
		Name:     strings.ToUpper(item.Name),
		Badges:   item.Badges(),
		Price:    PriceCell{Shape: shape.String(), Cells: pricing.Cells(item)},
	}}

	nameWidth := width
	switch shape {
	case models.ShapeSingle:
		l.single = item.Price
		nameWidth -= singlePriceWidth * u
	case models.ShapeHalfFull, models.ShapeSized:
		l.labeled = true
	}
	l.name = truncate(l.row.Name, nameWidth, 13*u, true)

	descWidth := width
	if shape == models.ShapeSingle {
		descWidth -= singlePriceWidth * u
	}
	l.row.Description = wrap(item.Description, descWidth, 10*u)

	h := 13 * u
	if len(l.row.Badges) > 0 {
		h += 13 * u
	}
	h += 13 * u * float64(len(l.row.Description))
	if l.labeled {
		h += 17 * u
	}
	l.height = h + 9*u
	return l
}

func measureCategory(pc models.PageCategory, width, u float64) categoryLayout {
	title := pc.Category.Title
	l := categoryLayout{header: CategoryHeader{
		Title: strings.ToUpper(title),
		Icon:  strings.TrimSpace(pc.Category.Icon),
		Glyph: Glyph(title),
		Diet:  DietFor(title, pc.SectionTitle),
	}}
	l.height = headerHeight * u
	for _, item := range pc.Category.Items {
		il := measureItem(item, title, width, u)
		l.items = append(l.items, il)
		l.height += il.height
	}
	return l
}

func (c Composer) content(size PageSize, page models.ContentPage, opts Options) *Canvas {
	u := size.Width / PageA4.Width
	cv := newCanvas(size, background, page.Variant.Accent())
	cv.Number, cv.Total = opts.Index+1, opts.Total
	cv.Annotation = page.Annotation
	c.frame(cv, u)

	w, h := cv.Width, cv.Height
	cv.Title = page.Title
	cv.Tagline = Tagline(page.Title)
	cv.text(w/2, 92*u, page.Title, 32*u, cv.Accent, true, AlignCenter)
	cv.text(w/2, 122*u, cv.Tagline, 12*u, textMuted, false, AlignCenter)
	cv.line(w*0.3, 140*u, w*0.7, 140*u, cv.Accent, 1.5*u)

	top, bottom := 170*u, h-80*u
	if page.Annotation != "" {
		bottom = h - 112*u
	}

	columns := 1
	if page.Layout == models.LayoutTwoColumn {
		columns = 2
	}
	left, right, gutter := 50*u, w-50*u, 28*u
	colWidth := (right - left - gutter*float64(columns-1)) / float64(columns)

	cursor := make([]float64, columns)
	for i := range cursor {
		cursor[i] = top
	}

	for _, pc := range page.Categories {
		if opts.PromoPercent != nil {
			pc.Category = pricing.AdjustCategory(pc.Category, *opts.PromoPercent)
		}
		block := measureCategory(pc, colWidth, u)

		// shortest column first, leftmost on ties, so reading order holds
		col := 0
		for i := 1; i < columns; i++ {
			if cursor[i] < cursor[col] {
				col = i
			}
		}
		x := left + float64(col)*(colWidth+gutter)
		c.drawCategory(cv, block, col, x, cursor[col], colWidth, u)
		cursor[col] += block.height + categoryGap*u
		if cursor[col]-categoryGap*u > bottom {
			cv.Overflow = true
		}
	}

	c.footer(cv, u)
	return cv
}

func (c Composer) drawCategory(cv *Canvas, block categoryLayout, col int, x, y, width, u float64) {
	header := block.header
	header.Column = col
	cv.Headers = append(cv.Headers, header)

	baseline := y + 18*u
	if header.Icon != "" {
		cv.text(x, baseline, header.Icon, 14*u, cv.Accent, false, AlignLeft)
	} else {
		cv.glyph(header.Glyph, x, baseline-11*u, 11*u, u)
	}
	cv.text(x+18*u, baseline, header.Title, 15*u, cv.Accent, true, AlignLeft)
	if header.Diet != DietNone {
		mark := x + width - 12*u
		cv.rect(mark, baseline-11*u, 12*u, 12*u, "", header.Diet.color(), 1.5*u)
		cv.rect(mark+3.5*u, baseline-7.5*u, 5*u, 5*u, header.Diet.color(), "", 0)
		cv.text(mark-6*u, baseline, strings.ToUpper(header.Diet.String()), 8*u, header.Diet.color(), true, AlignRight)
	}
	cv.line(x, baseline+8*u, x+width, baseline+8*u, cv.Accent+"55", 1*u)

	ty := y + headerHeight*u
	for i, item := range block.items {
		c.drawItem(cv, item, i, col, x, ty, width, u)
		ty += item.height
	}
}

func (c Composer) drawItem(cv *Canvas, l itemLayout, index, col int, x, top, width, u float64) {
	if index%2 == 0 {
		cv.rect(x-6*u, top, width+12*u, l.height, "#ffffff08", "", 0)
	}

	cur := top + 13*u
	cv.text(x, cur, l.name, 13*u, textPrimary, true, AlignLeft)
	if l.single != "" {
		cv.text(x+width, cur, l.single, 13*u, cv.Accent, true, AlignRight)
	}

	if len(l.row.Badges) > 0 {
		cur += 13 * u
		bx := x
		for _, badge := range l.row.Badges {
			pill := textWidth(badge, 7*u, true) + 10*u
			cv.rect(bx, cur-8*u, pill, 11*u, "", cv.Accent, 0.8*u)
			cv.text(bx+5*u, cur, badge, 7*u, cv.Accent, true, AlignLeft)
			bx += pill + 6*u
		}
	}

	for _, line := range l.row.Description {
		cur += 13 * u
		cv.text(x, cur, line, 10*u, textMuted, false, AlignLeft)
	}

	if l.labeled {
		cur += 17 * u
		cells := l.row.Price.Cells
		for i, cell := range cells {
			right := x + width - float64(len(cells)-1-i)*labeledCellWidth*u
			cv.text(right-labeledCellWidth*u+8*u, cur, cell.Label, 8*u, textMuted, false, AlignLeft)
			cv.text(right, cur, cell.Amount, 11*u, cv.Accent, true, AlignRight)
		}
	}

	row := l.row
	row.Column = col
	row.Top = top
	row.Bottom = top + l.height
	cv.Rows = append(cv.Rows, row)
}

func (c Composer) footer(cv *Canvas, u float64) {
	w, h := cv.Width, cv.Height
	if cv.Annotation != "" {
		cv.text(w/2, h-92*u, "“"+cv.Annotation+"”", 12*u, cv.Accent, false, AlignCenter)
	}
	cv.line(60*u, h-70*u, w-60*u, h-70*u, cv.Accent+"66", 1*u)
	cv.Footer = fmt.Sprintf("Page %02d / %02d", cv.Number, cv.Total)
	cv.text(w/2, h-48*u, cv.Footer, 10*u, textMuted, false, AlignCenter)
	if c.Branding.Name != "" {
		cv.text(60*u, h-48*u, strings.TrimSpace(c.Branding.Name+" - "+c.Branding.Subtitle), 9*u, textMuted, false, AlignLeft)
	}
	if c.Branding.Handle != "" {
		cv.text(w-60*u, h-48*u, c.Branding.Handle, 9*u, textMuted, false, AlignRight)
	}
}

func (c Composer) contact(cv *Canvas, assets Assets, u float64) {
	w, h := cv.Width, cv.Height
	b := c.Branding

	qr := 120 * u
	qy := h - 240*u
	if cv.image(AssetLocationQR, assets[AssetLocationQR], 70*u, qy, qr, qr) {
		cv.text(70*u+qr/2, qy+qr+18*u, "FIND US", 9*u, cv.Accent, true, AlignCenter)
	}
	if cv.image(AssetFeedbackQR, assets[AssetFeedbackQR], w-70*u-qr, qy, qr, qr) {
		cv.text(w-70*u-qr/2, qy+qr+18*u, "RATE US", 9*u, cv.Accent, true, AlignCenter)
	}

	cy := qy + 30*u
	for _, line := range []string{b.Phone, b.Handle, b.Address} {
		if line == "" {
			continue
		}
		cv.text(w/2, cy, line, 13*u, textPrimary, false, AlignCenter)
		cy += 24 * u
	}
}

func (c Composer) cover(size PageSize, opts Options, assets Assets) *Canvas {
	u := size.Width / PageA4.Width
	cv := newCanvas(size, background, models.VariantCyan.Accent())
	cv.Number, cv.Total = opts.Index+1, opts.Total
	c.frame(cv, u)

	w := cv.Width
	b := c.Branding
	cv.Title = b.Name
	cv.Tagline = b.Tagline

	cv.image(AssetLogo, assets[AssetLogo], w/2-110*u, 110*u, 220*u, 220*u)
	cv.text(w/2, 420*u, b.Name, 64*u, cv.Accent, true, AlignCenter)
	cv.text(w/2, 462*u, b.Subtitle, 22*u, promoColor, false, AlignCenter)
	cv.text(w/2, 500*u, strings.ToUpper(b.Tagline), 12*u, models.VariantGold.Accent(), true, AlignCenter)
	cv.line(w*0.3, 525*u, w*0.7, 525*u, cv.Accent, 1.5*u)
	cv.text(w/2, 600*u, "MENU", 28*u, textPrimary, true, AlignCenter)

	if opts.PromoPercent != nil {
		cv.Watermark = true
		cv.rect(w*0.15, 650*u, w*0.7, 60*u, promoColor+"22", promoColor, 2*u)
		cv.text(w/2, 690*u, "PROMOTIONAL PRICING", 24*u, promoColor, true, AlignCenter)
		cv.text(w/2, 735*u, fmt.Sprintf("Prices shown include a %+g%% adjustment", *opts.PromoPercent), 11*u, textMuted, false, AlignCenter)
	}

	c.contact(cv, assets, u)
	return cv
}

func (c Composer) backCover(size PageSize, opts Options, assets Assets) *Canvas {
	u := size.Width / PageA4.Width
	cv := newCanvas(size, background, models.VariantMagenta.Accent())
	cv.Number, cv.Total = opts.Index+1, opts.Total
	c.frame(cv, u)

	w := cv.Width
	cv.Title = "OUR STORY"
	cv.text(w/2, 140*u, cv.Title, 30*u, cv.Accent, true, AlignCenter)
	cv.line(w*0.35, 160*u, w*0.65, 160*u, cv.Accent, 1.5*u)

	y := 210 * u
	for _, paragraph := range c.Branding.Narrative {
		for _, line := range wrap(paragraph, w-180*u, 14*u) {
			cv.text(w/2, y, line, 14*u, textPrimary, false, AlignCenter)
			y += 22 * u
		}
		y += 14 * u
	}

	cv.text(w/2, y+30*u, "THANK YOU FOR DINING WITH US", 16*u, models.VariantGold.Accent(), true, AlignCenter)
	if c.Branding.Name != "" {
		cv.text(w/2, y+60*u, strings.TrimSpace(c.Branding.Name+" - "+c.Branding.Subtitle), 12*u, textMuted, false, AlignCenter)
	}

	c.contact(cv, assets, u)
	return cv
}
