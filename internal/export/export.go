package export

import (
	"errors"
	"fmt"
)

var (
	ErrNoPagesRendered = errors.New("no pages rendered")
	ErrInvalidRequest  = errors.New("invalid export request")
	ErrPageNotFound    = errors.New("page not found in plan")
)

type Mode string

const (
	ModeCurrent Mode = "current"
	ModeAll     Mode = "all"
)

type Kind string

const (
	KindImage    Kind = "image"
	KindImageSet Kind = "image-set"
	KindDocument Kind = "document"
	KindPrint    Kind = "print"
)

type Format string

const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
)

func (f Format) ContentType() string {
	if f == FormatJPG {
		return "image/jpeg"
	}
	return "image/png"
}

// Request selects pages from a plan and the artifact to produce from them.
type Request struct {
	Mode         Mode     `json:"mode"`
	Page         string   `json:"page,omitempty"`
	Kind         Kind     `json:"kind"`
	Format       Format   `json:"format,omitempty"`
	PromoPercent *float64 `json:"promo_percent,omitempty"`
	// Archive names the document after an archived snapshot when set.
	Archive *ArchiveLabel `json:"-"`
}

// Validate fills in defaults and rejects malformed requests.
func (r *Request) Validate() error {
	return r.normalize()
}

func (r *Request) normalize() error {
	if r.Format == "" {
		r.Format = FormatPNG
	}
	if r.Mode == "" {
		r.Mode = ModeAll
		if r.Page != "" {
			r.Mode = ModeCurrent
		}
	}

	switch r.Format {
	case FormatPNG, FormatJPG:
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidRequest, r.Format)
	}

	switch r.Mode {
	case ModeCurrent:
		if r.Page == "" {
			return fmt.Errorf("%w: current mode needs a page", ErrInvalidRequest)
		}
	case ModeAll:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidRequest, r.Mode)
	}

	switch r.Kind {
	case KindImage, KindPrint:
		if r.Mode != ModeCurrent {
			return fmt.Errorf("%w: %s exports a single page", ErrInvalidRequest, r.Kind)
		}
	case KindImageSet, KindDocument:
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidRequest, r.Kind)
	}
	return nil
}

type PageStatus string

const (
	PageRendering PageStatus = "rendering"
	PageRendered  PageStatus = "rendered"
	PageFailed    PageStatus = "failed"
)

// Progress is reported for every selected page, in plan order.
type Progress struct {
	Index    int // position in the plan
	Position int // 1-based position among the selected pages
	Total    int // number of selected pages
	Key      string
	Status   PageStatus
	Err      error
}

type ProgressFunc func(Progress)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

type PageOutcome struct {
	Index  int        `json:"index"`
	Key    string     `json:"key"`
	Status PageStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Artifact is one produced file.
type Artifact struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

type Result struct {
	Status    Status        `json:"status"`
	Pages     []PageOutcome `json:"pages"`
	Artifacts []Artifact    `json:"artifacts"`
	Printed   bool          `json:"printed,omitempty"`
}

func (r *Result) Failed() []PageOutcome {
	var out []PageOutcome
	for _, p := range r.Pages {
		if p.Status == PageFailed {
			out = append(out, p)
		}
	}
	return out
}
