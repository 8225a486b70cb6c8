package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"livemenu/internal/metrics"
	"livemenu/internal/models"
	"livemenu/internal/render"
)

// PageRenderer renders one descriptor of a plan.
type PageRenderer interface {
	Render(ctx context.Context, desc models.PageDescriptor, opts render.Options) (*render.Page, error)
}

type Config struct {
	Product      string
	DocumentPage render.PageSize
	JPEGQuality  int
}

// Assembler renders the selected pages of a plan in order and packages the
// successful ones.
type Assembler struct {
	renderer PageRenderer
	printer  Printer
	naming   Naming
	document render.PageSize
	quality  int
	logger   *zerolog.Logger
}

func NewAssembler(renderer PageRenderer, printer Printer, cfg Config, logger *zerolog.Logger) *Assembler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.DocumentPage.Width <= 0 {
		cfg.DocumentPage = render.PageA5
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	l := logger.With().Str("component", "assembler").Logger()
	return &Assembler{
		renderer: renderer,
		printer:  printer,
		naming:   Naming{Product: cfg.Product},
		document: cfg.DocumentPage,
		quality:  cfg.JPEGQuality,
		logger:   &l,
	}
}

func (a *Assembler) Naming() Naming {
	return a.naming
}

func variantOf(desc models.PageDescriptor) string {
	if cp, ok := desc.(models.ContentPage); ok {
		return string(cp.Variant)
	}
	return string(desc.PageKind())
}

// Export runs req against p. On cancellation no artifact is produced and the
// context error is returned. Pages that fail are skipped; if none succeed the
// result is failed and ErrNoPagesRendered is returned.
func (a *Assembler) Export(ctx context.Context, p models.Plan, req Request, progress ProgressFunc) (*Result, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	indexes, err := selectPages(p, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log := a.logger.With().Str("kind", string(req.Kind)).Str("mode", string(req.Mode)).Logger()
	log.Info().Int("pages", len(indexes)).Msg("export started")

	result := &Result{}
	var rendered []*render.Page
	for pos, idx := range indexes {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("export cancelled")
			return nil, err
		}

		desc := p[idx]
		step := Progress{Index: idx, Position: pos + 1, Total: len(indexes), Key: desc.PageKey()}
		step.Status = PageRendering
		progress(step)

		page, err := a.renderPage(ctx, desc, render.Options{
			Index:        idx,
			Total:        len(p),
			PromoPercent: req.PromoPercent,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Warn().Err(err).Msg("export cancelled")
				return nil, err
			}
			log.Error().Err(err).Str("page", desc.PageKey()).Msg("page render failed")
			metrics.IncPageRendered(variantOf(desc), string(PageFailed))

			step.Status, step.Err = PageFailed, err
			progress(step)
			result.Pages = append(result.Pages, PageOutcome{Index: idx, Key: desc.PageKey(), Status: PageFailed, Error: err.Error()})
			continue
		}

		metrics.IncPageRendered(variantOf(desc), string(PageRendered))
		step.Status = PageRendered
		progress(step)
		result.Pages = append(result.Pages, PageOutcome{Index: idx, Key: desc.PageKey(), Status: PageRendered})
		rendered = append(rendered, page)
	}

	if len(rendered) == 0 {
		result.Status = StatusFailed
		metrics.ObserveExport(string(req.Kind), string(result.Status), time.Since(start))
		log.Error().Msg("export produced no pages")
		return result, ErrNoPagesRendered
	}

	if err := a.pack(ctx, req, rendered, result); err != nil {
		metrics.ObserveExport(string(req.Kind), string(StatusFailed), time.Since(start))
		return nil, err
	}

	result.Status = StatusSuccess
	if len(rendered) < len(indexes) {
		result.Status = StatusPartial
	}
	metrics.ObserveExport(string(req.Kind), string(result.Status), time.Since(start))
	log.Info().
		Str("status", string(result.Status)).
		Int("rendered", len(rendered)).
		Int("artifacts", len(result.Artifacts)).
		Dur("took", time.Since(start)).
		Msg("export finished")
	return result, nil
}

// renderPage turns a renderer panic into a failed page.
func (a *Assembler) renderPage(ctx context.Context, desc models.PageDescriptor, opts render.Options) (page *render.Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			page, err = nil, fmt.Errorf("%w: page %s: panic: %v", render.ErrRenderFailed, desc.PageKey(), rec)
		}
	}()
	return a.renderer.Render(ctx, desc, opts)
}

func selectPages(p models.Plan, req Request) ([]int, error) {
	if req.Mode == ModeCurrent {
		idx := p.IndexOf(req.Page)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, req.Page)
		}
		return []int{idx}, nil
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty plan", ErrInvalidRequest)
	}
	indexes := make([]int, len(p))
	for i := range p {
		indexes[i] = i
	}
	return indexes, nil
}

func (a *Assembler) pack(ctx context.Context, req Request, pages []*render.Page, result *Result) error {
	switch req.Kind {
	case KindImage, KindImageSet:
		for _, page := range pages {
			data, err := encodeImage(page.Image, req.Format, a.quality)
			if err != nil {
				return err
			}
			result.Artifacts = append(result.Artifacts, Artifact{
				Name:        a.naming.Image(page.Key, req.Format, req.PromoPercent),
				ContentType: req.Format.ContentType(),
				Data:        data,
			})
		}
		return nil

	case KindDocument:
		doc, err := a.buildPDF(pages)
		if err != nil {
			return err
		}
		doc.Name = a.naming.Document(req.PromoPercent, req.Archive)
		result.Artifacts = append(result.Artifacts, doc)
		return nil

	case KindPrint:
		doc, err := a.buildPDF(pages[:1])
		if err != nil {
			return err
		}
		doc.Name = a.naming.PagePDF(pages[0].Key)
		result.Artifacts = append(result.Artifacts, doc)
		if a.printer == nil {
			return ErrNoPrinter
		}
		if err := a.printer.Print(ctx, doc); err != nil {
			return fmt.Errorf("print %s: %w", doc.Name, err)
		}
		result.Printed = true
		return nil
	}
	return fmt.Errorf("%w: kind %q", ErrInvalidRequest, req.Kind)
}

func (a *Assembler) buildPDF(pages []*render.Page) (Artifact, error) {
	doc := newPDFDocument(a.document, a.quality)
	for _, page := range pages {
		if err := doc.addImage(page.Image); err != nil {
			return Artifact{}, fmt.Errorf("page %s: %w", page.Key, err)
		}
	}
	data, err := doc.bytes()
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{ContentType: "application/pdf", Data: data}, nil
}
