package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type faceKey struct {
	size float64
	bold bool
}

// Rasterizer paints canvases onto RGBA images with the embedded Go fonts.
type Rasterizer struct {
	Scale float64

	regular *opentype.Font
	bold    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

func NewRasterizer(scale float64) (*Rasterizer, error) {
	if scale <= 0 {
		scale = 1
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Rasterizer{
		Scale:   scale,
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

func (r *Rasterizer) face(size float64, bold bool) (font.Face, error) {
	key := faceKey{size: math.Round(size*10) / 10, bold: bold}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	src := r.regular
	if bold {
		src = r.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: key.size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	r.faces[key] = f
	return f, nil
}

// Bounds is the pixel size of cv at the rasterizer scale.
func (r *Rasterizer) Bounds(cv *Canvas) image.Rectangle {
	return image.Rect(0, 0, int(math.Round(cv.Width*r.Scale)), int(math.Round(cv.Height*r.Scale)))
}

// Rasterize paints the canvas onto a fresh image.
func (r *Rasterizer) Rasterize(cv *Canvas) (*image.RGBA, error) {
	b := r.Bounds(cv)
	if b.Empty() {
		return nil, fmt.Errorf("empty canvas %dx%d", b.Dx(), b.Dy())
	}
	dst := image.NewRGBA(b)
	if err := r.Paint(dst, cv); err != nil {
		return nil, err
	}
	return dst, nil
}

// Paint draws the display list onto dst, background first.
func (r *Rasterizer) Paint(dst draw.Image, cv *Canvas) error {
	bg, err := parseColor(cv.Background)
	if err != nil {
		return err
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for _, op := range cv.Ops {
		switch op.Kind {
		case OpRect:
			err = r.drawRect(dst, op)
		case OpLine:
			err = r.drawLine(dst, op)
		case OpText:
			err = r.drawText(dst, op)
		case OpImage:
			rect := r.scaleRect(op.X, op.Y, op.W, op.H)
			xdraw.CatmullRom.Scale(dst, rect, op.Image, op.Image.Bounds(), draw.Over, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Rasterizer) scaleRect(x, y, w, h float64) image.Rectangle {
	s := r.Scale
	return image.Rect(
		int(math.Round(x*s)), int(math.Round(y*s)),
		int(math.Round((x+w)*s)), int(math.Round((y+h)*s)),
	)
}

func fill(dst draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

func (r *Rasterizer) drawRect(dst draw.Image, op Op) error {
	if op.Fill != "" {
		c, err := parseColor(op.Fill)
		if err != nil {
			return err
		}
		fill(dst, r.scaleRect(op.X, op.Y, op.W, op.H), c)
	}
	if op.Stroke == "" || op.StrokeWidth <= 0 {
		return nil
	}
	c, err := parseColor(op.Stroke)
	if err != nil {
		return err
	}
	sw := op.StrokeWidth
	fill(dst, r.scaleRect(op.X, op.Y, op.W, sw), c)
	fill(dst, r.scaleRect(op.X, op.Y+op.H-sw, op.W, sw), c)
	fill(dst, r.scaleRect(op.X, op.Y+sw, sw, op.H-2*sw), c)
	fill(dst, r.scaleRect(op.X+op.W-sw, op.Y+sw, sw, op.H-2*sw), c)
	return nil
}

func (r *Rasterizer) drawLine(dst draw.Image, op Op) error {
	c, err := parseColor(op.Stroke)
	if err != nil {
		return err
	}
	sw := math.Max(op.StrokeWidth, 1/r.Scale)
	switch {
	case op.Y == op.Y2:
		x := math.Min(op.X, op.X2)
		fill(dst, r.scaleRect(x, op.Y-sw/2, math.Abs(op.X2-op.X), sw), c)
	case op.X == op.X2:
		y := math.Min(op.Y, op.Y2)
		fill(dst, r.scaleRect(op.X-sw/2, y, sw, math.Abs(op.Y2-op.Y)), c)
	default:
		length := math.Hypot(op.X2-op.X, op.Y2-op.Y)
		steps := int(math.Ceil(length * r.Scale))
		for i := 0; i <= steps; i++ {
			t := float64(i) / float64(steps)
			px := op.X + (op.X2-op.X)*t
			py := op.Y + (op.Y2-op.Y)*t
			fill(dst, r.scaleRect(px-sw/2, py-sw/2, sw, sw), c)
		}
	}
	return nil
}

func (r *Rasterizer) drawText(dst draw.Image, op Op) error {
	c, err := parseColor(op.Fill)
	if err != nil {
		return err
	}
	face, err := r.face(op.Size*r.Scale, op.Bold)
	if err != nil {
		return err
	}
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}

	x := fixed.Int26_6(math.Round(op.X * r.Scale * 64))
	y := fixed.Int26_6(math.Round(op.Y * r.Scale * 64))
	switch op.Align {
	case AlignCenter:
		x -= d.MeasureString(op.Text) / 2
	case AlignRight:
		x -= d.MeasureString(op.Text)
	}
	d.Dot = fixed.Point26_6{X: x, Y: y}
	d.DrawString(op.Text)
	return nil
}

// parseColor accepts #rgb, #rrggbb and #rrggbbaa.
func parseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
