package render

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"image"
	"image/png"

	"livemenu/internal/pricing"
)

type OpKind int

const (
	OpRect OpKind = iota
	OpLine
	OpText
	OpImage
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Op is one drawing instruction in logical page pixels. Text ops are
// positioned by baseline; their content is drawn literally.
type Op struct {
	Kind        OpKind
	X, Y        float64
	W, H        float64
	X2, Y2      float64
	Fill        string
	Stroke      string
	StrokeWidth float64
	Text        string
	Size        float64
	Bold        bool
	Align       Align
	Asset       string
	Image       image.Image
}

// PriceCell is the price of one item as laid out on the page.
type PriceCell struct {
	Shape string         `json:"shape"`
	Cells []pricing.Cell `json:"cells,omitempty"`
}

// ItemRow records what was drawn for one menu item.
type ItemRow struct {
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Badges      []string  `json:"badges,omitempty"`
	Description []string  `json:"description,omitempty"`
	Price       PriceCell `json:"price"`
	Column      int       `json:"column"`
	Top         float64   `json:"top"`
	Bottom      float64   `json:"bottom"`
}

type CategoryHeader struct {
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
	Glyph  string `json:"glyph"`
	Diet   Diet   `json:"diet"`
	Column int    `json:"column"`
}

// Canvas is a composed page: a display list plus the semantic record of what
// it shows.
type Canvas struct {
	Width      float64
	Height     float64
	Background string
	Accent     string
	Ops        []Op

	Title      string
	Tagline    string
	Headers    []CategoryHeader
	Rows       []ItemRow
	Footer     string
	Annotation string
	Watermark  bool
	Overflow   bool
	Number     int
	Total      int
	Missing    []string
}

func newCanvas(size PageSize, background, accent string) *Canvas {
	return &Canvas{Width: size.Width, Height: size.Height, Background: background, Accent: accent}
}

func (c *Canvas) rect(x, y, w, h float64, fill, stroke string, strokeWidth float64) {
	c.Ops = append(c.Ops, Op{Kind: OpRect, X: x, Y: y, W: w, H: h, Fill: fill, Stroke: stroke, StrokeWidth: strokeWidth})
}

func (c *Canvas) line(x1, y1, x2, y2 float64, stroke string, width float64) {
	c.Ops = append(c.Ops, Op{Kind: OpLine, X: x1, Y: y1, X2: x2, Y2: y2, Stroke: stroke, StrokeWidth: width})
}

func (c *Canvas) text(x, y float64, s string, size float64, color string, bold bool, align Align) {
	if s == "" {
		return
	}
	c.Ops = append(c.Ops, Op{Kind: OpText, X: x, Y: y, Text: s, Size: size, Fill: color, Bold: bold, Align: align})
}

// image adds an asset op; a missing asset is recorded and skipped.
func (c *Canvas) image(name string, img image.Image, x, y, w, h float64) bool {
	if img == nil {
		c.Missing = append(c.Missing, name)
		return false
	}
	c.Ops = append(c.Ops, Op{Kind: OpImage, X: x, Y: y, W: w, H: h, Asset: name, Image: img})
	return true
}

// Texts returns the content of every text op in drawing order.
func (c *Canvas) Texts() []string {
	var out []string
	for _, op := range c.Ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

// SVG serialises the display list. All text goes through XML escaping.
func (c *Canvas) SVG() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`,
		c.Width, c.Height, c.Width, c.Height)
	fmt.Fprintf(&buf, `<rect x="0" y="0" width="%g" height="%g" fill="%s"/>`, c.Width, c.Height, attr(c.Background))

	for _, op := range c.Ops {
		switch op.Kind {
		case OpRect:
			fill := op.Fill
			if fill == "" {
				fill = "none"
			}
			fmt.Fprintf(&buf, `<rect x="%g" y="%g" width="%g" height="%g" fill="%s"`, op.X, op.Y, op.W, op.H, attr(fill))
			if op.Stroke != "" {
				fmt.Fprintf(&buf, ` stroke="%s" stroke-width="%g"`, attr(op.Stroke), op.StrokeWidth)
			}
			buf.WriteString("/>")
		case OpLine:
			fmt.Fprintf(&buf, `<line x1="%g" y1="%g" x2="%g" y2="%g" stroke="%s" stroke-width="%g"/>`,
				op.X, op.Y, op.X2, op.Y2, attr(op.Stroke), op.StrokeWidth)
		case OpText:
			weight := "normal"
			if op.Bold {
				weight = "bold"
			}
			fmt.Fprintf(&buf, `<text x="%g" y="%g" font-family="Go, sans-serif" font-size="%g" font-weight="%s" text-anchor="%s" fill="%s">`,
				op.X, op.Y, op.Size, weight, anchor(op.Align), attr(op.Fill))
			if err := xml.EscapeText(&buf, []byte(op.Text)); err != nil {
				return nil, err
			}
			buf.WriteString("</text>")
		case OpImage:
			var raw bytes.Buffer
			if err := png.Encode(&raw, op.Image); err != nil {
				return nil, fmt.Errorf("encode asset %s: %w", op.Asset, err)
			}
			fmt.Fprintf(&buf, `<image x="%g" y="%g" width="%g" height="%g" href="data:image/png;base64,%s"/>`,
				op.X, op.Y, op.W, op.H, base64.StdEncoding.EncodeToString(raw.Bytes()))
		}
	}
	buf.WriteString("</svg>")
	return buf.Bytes(), nil
}

func attr(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func anchor(a Align) string {
	switch a {
	case AlignCenter:
		return "middle"
	case AlignRight:
		return "end"
	default:
		return "start"
	}
}
