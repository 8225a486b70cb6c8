package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/signintech/gopdf"

	"livemenu/internal/render"
)

const pointsPerMillimeter = 72 / 25.4

// pdfDocument places each page image full-bleed on its own page.
type pdfDocument struct {
	pdf     *gopdf.GoPdf
	page    gopdf.Rect
	quality int
	pages   int
}

func newPDFDocument(size render.PageSize, quality int) *pdfDocument {
	page := gopdf.Rect{
		W: size.MillimetersW * pointsPerMillimeter,
		H: size.MillimetersH * pointsPerMillimeter,
	}
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{Unit: gopdf.UnitPT, PageSize: page})
	return &pdfDocument{pdf: pdf, page: page, quality: quality}
}

func (d *pdfDocument) addImage(img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return fmt.Errorf("failed to convert image to JPEG: %w", err)
	}

	holder, err := gopdf.ImageHolderByBytes(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to create image holder: %w", err)
	}

	d.pdf.AddPageWithOption(gopdf.PageOption{PageSize: &d.page})
	if err := d.pdf.ImageByHolder(holder, 0, 0, &gopdf.Rect{W: d.page.W, H: d.page.H}); err != nil {
		return fmt.Errorf("failed to add image to PDF: %w", err)
	}
	d.pages++
	return nil
}

func (d *pdfDocument) bytes() ([]byte, error) {
	defer d.pdf.Close()

	var out bytes.Buffer
	if _, err := d.pdf.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), nil
}

func encodeImage(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
