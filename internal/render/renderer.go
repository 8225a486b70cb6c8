package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/rs/zerolog"

	"livemenu/internal/models"
)

var ErrRenderFailed = errors.New("render failed")

// Page is one rendered page. Image is owned by the caller.
type Page struct {
	Index  int
	Key    string
	Image  *image.RGBA
	Canvas *Canvas
}

// Renderer composes and rasterizes pages one at a time on a single
// off-screen surface.
type Renderer struct {
	composer Composer
	raster   *Rasterizer
	assets   *AssetLoader
	logger   *zerolog.Logger

	mu      sync.Mutex
	surface *image.RGBA
	paint   func(dst draw.Image, cv *Canvas) error
}

func NewRenderer(composer Composer, raster *Rasterizer, assets *AssetLoader, logger *zerolog.Logger) *Renderer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if assets == nil {
		assets = NewAssetLoader(0, logger)
	}
	l := logger.With().Str("component", "renderer").Logger()
	return &Renderer{
		composer: composer,
		raster:   raster,
		assets:   assets,
		logger:   &l,
		paint:    raster.Paint,
	}
}

// PageSize is the logical size every page of this renderer uses.
func (r *Renderer) PageSize() PageSize {
	if r.composer.Size.Width <= 0 {
		return PageA4
	}
	return r.composer.Size
}

func assetsFor(desc models.PageDescriptor) []string {
	switch desc.(type) {
	case models.CoverPage:
		return []string{AssetLogo, AssetLocationQR, AssetFeedbackQR}
	case models.BackCoverPage:
		return []string{AssetLocationQR, AssetFeedbackQR}
	default:
		return nil
	}
}

// Render produces one page. Missing assets and layout overflow are logged on
// the page; only composition and rasterization failures are errors.
func (r *Renderer) Render(ctx context.Context, desc models.PageDescriptor, opts Options) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, ErrUnknownPage)
	}

	assets, missing := r.assets.Load(ctx, assetsFor(desc)...)
	cv, err := r.compose(desc, opts, assets)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	if len(missing) > 0 {
		r.logger.Warn().Str("page", desc.PageKey()).Strs("assets", missing).Msg("page rendered without assets")
	}
	if cv.Overflow {
		r.logger.Warn().Str("page", desc.PageKey()).Msg("page content overflows the layout")
	}

	img, err := r.rasterize(cv)
	if err != nil {
		return nil, fmt.Errorf("%w: page %s: %w", ErrRenderFailed, desc.PageKey(), err)
	}
	return &Page{Index: opts.Index, Key: desc.PageKey(), Image: img, Canvas: cv}, nil
}

func (r *Renderer) compose(desc models.PageDescriptor, opts Options, assets Assets) (cv *Canvas, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cv, err = nil, fmt.Errorf("panic while composing %s: %v", desc.PageKey(), rec)
		}
	}()
	return r.composer.Compose(desc, opts, assets)
}

// rasterize holds the surface for the duration of one paint. The surface is
// cleared and released on every exit path.
func (r *Renderer) rasterize(cv *Canvas) (img *image.RGBA, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bounds := r.raster.Bounds(cv)
	if bounds.Empty() {
		return nil, fmt.Errorf("empty canvas %dx%d", bounds.Dx(), bounds.Dy())
	}
	if r.surface == nil || r.surface.Bounds() != bounds {
		r.surface = image.NewRGBA(bounds)
	}
	defer clear(r.surface.Pix)
	defer func() {
		if rec := recover(); rec != nil {
			img, err = nil, fmt.Errorf("panic while painting: %v", rec)
		}
	}()

	if err := r.paint(r.surface, cv); err != nil {
		return nil, err
	}
	out := image.NewRGBA(bounds)
	copy(out.Pix, r.surface.Pix)
	return out, nil
}
