// Package renderer draws badge label previews
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/thevladbog/idento-sub000/internal/zpl"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

// Renderer converts a label spec to an image at printer resolution
type Renderer struct {
	spec   *badgeformat.LabelSpec
	dpi    int
	width  int // Label width in dots
	height int // Label height in dots
	ctx    *gg.Context
}

// New creates a renderer with a blank canvas the size of the label
func New(spec *badgeformat.LabelSpec) (*Renderer, error) {
	if spec == nil {
		return nil, fmt.Errorf("label spec is required")
	}

	dpi := spec.DPI
	if dpi == 0 {
		dpi = badgeformat.DefaultDPI
	}

	width := zpl.MMToDots(spec.WidthMM, dpi)
	height := zpl.MMToDots(spec.HeightMM, dpi)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid label size %.1fx%.1fmm", spec.WidthMM, spec.HeightMM)
	}

	ctx := gg.NewContext(width, height)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)

	return &Renderer{
		spec:   spec,
		dpi:    dpi,
		width:  width,
		height: height,
		ctx:    ctx,
	}, nil
}

// Render draws every element with data and returns the label image
func (r *Renderer) Render(data map[string]any) (image.Image, error) {
	for i, el := range r.spec.Elements {
		if err := r.renderElement(el, data); err != nil {
			return nil, fmt.Errorf("failed to render element %d: %w", i, err)
		}
	}

	return r.ctx.Image(), nil
}

// EncodePNG writes the current canvas as PNG
func (r *Renderer) EncodePNG(w io.Writer) error {
	return r.ctx.EncodePNG(w)
}

// Size returns the canvas size in dots
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// RenderPNG renders a label preview and writes it as PNG
func RenderPNG(spec *badgeformat.LabelSpec, data map[string]any, w io.Writer) error {
	r, err := New(spec)
	if err != nil {
		return err
	}
	if _, err := r.Render(data); err != nil {
		return err
	}
	return r.EncodePNG(w)
}

func (r *Renderer) renderElement(el badgeformat.Element, data map[string]any) error {
	switch e := el.(type) {
	case badgeformat.TextElement:
		return r.renderText(e, data)
	case badgeformat.QRCodeElement:
		return r.renderQRCode(e, data)
	case badgeformat.BarcodeElement:
		return r.renderBarcode(e, data)
	case badgeformat.LineElement:
		r.renderLine(e)
		return nil
	case badgeformat.BoxElement:
		r.renderBox(e)
		return nil
	default:
		return fmt.Errorf("unsupported element type: %T", el)
	}
}

func (r *Renderer) dots(mm float64) float64 {
	return float64(zpl.MMToDots(mm, r.dpi))
}

func (r *Renderer) thickness(mm float64) float64 {
	if mm <= 0 {
		mm = 0.3
	}
	return max(r.dots(mm), 1)
}

func (r *Renderer) renderLine(e badgeformat.LineElement) {
	t := r.thickness(e.Thickness)
	r.ctx.DrawRectangle(r.dots(e.X), r.dots(e.Y), max(r.dots(e.Width), t), t)
	r.ctx.Fill()
}

func (r *Renderer) renderBox(e badgeformat.BoxElement) {
	t := r.thickness(e.Thickness)
	x, y := r.dots(e.X), r.dots(e.Y)
	w, h := max(r.dots(e.Width), t), max(r.dots(e.Height), t)

	// ^GB draws the border inside the box
	r.ctx.SetLineWidth(t)
	r.ctx.DrawRectangle(x+t/2, y+t/2, w-t, h-t)
	r.ctx.Stroke()
}

// placeholder outlines a code area whose payload is empty
func (r *Renderer) placeholder(x, y, w, h float64) {
	r.ctx.Push()
	r.ctx.SetColor(color.Gray{Y: 160})
	r.ctx.SetLineWidth(1)
	r.ctx.SetDash(4, 4)
	r.ctx.DrawRectangle(x+0.5, y+0.5, w-1, h-1)
	r.ctx.Stroke()
	r.ctx.Pop()
}
