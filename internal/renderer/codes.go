package renderer

import (
	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/skip2/go-qrcode"
	"github.com/thevladbog/idento-sub000/internal/model"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

func (r *Renderer) renderBarcode(e badgeformat.BarcodeElement, data map[string]any) error {
	x, y := r.dots(e.X), r.dots(e.Y)
	w, h := int(r.dots(e.Width)), int(r.dots(e.Height))
	if w <= 0 || h <= 0 {
		return nil
	}

	value := model.FieldString(data, e.Source)
	if value == "" {
		r.placeholder(x, y, float64(w), float64(h))
		return nil
	}

	bc, err := code128.Encode(value)
	if err != nil {
		// Payloads outside Code 128 still print as an empty field
		r.placeholder(x, y, float64(w), float64(h))
		return nil
	}

	// Scale to whole modules so bars stay crisp
	modules := bc.Bounds().Dx()
	target := max(w/modules, 1) * modules

	scaled, err := barcode.Scale(bc, target, h)
	if err != nil {
		return err
	}

	r.ctx.DrawImage(scaled, int(x), int(y))
	return nil
}

func (r *Renderer) renderQRCode(e badgeformat.QRCodeElement, data map[string]any) error {
	x, y := r.dots(e.X), r.dots(e.Y)
	side := min(int(r.dots(e.Width)), int(r.dots(e.Height)))
	if side <= 0 {
		return nil
	}

	value := model.FieldString(data, e.Source)
	if value == "" {
		r.placeholder(x, y, float64(side), float64(side))
		return nil
	}

	qr, err := qrcode.New(value, qrcode.Medium)
	if err != nil {
		return err
	}
	qr.DisableBorder = true

	r.ctx.DrawImage(qr.Image(side), int(x), int(y))
	return nil
}
