package renderer

import (
	"strings"

	"github.com/thevladbog/idento-sub000/internal/model"
	"github.com/thevladbog/idento-sub000/internal/zpl"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

func (r *Renderer) renderText(e badgeformat.TextElement, data map[string]any) error {
	text := e.Text
	if e.Source != "" {
		text = model.FieldString(data, e.Source)
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	size := e.FontSize
	if size <= 0 {
		size = 12
	}
	h := max(zpl.PointsToDots(size, r.dpi), 1)
	gap := max(h/5, 1)
	width := zpl.MMToDots(e.Width, r.dpi)

	// Same line breaks as the printed label
	lines := zpl.WrapText(text, width, h, e.MaxLines)
	if len(lines) == 0 {
		return nil
	}

	face, err := zpl.NewFace(float64(h), e.Bold)
	if err != nil {
		return err
	}
	defer face.Close()
	r.ctx.SetFontFace(face)

	block := len(lines)*h + (len(lines)-1)*gap
	x := r.dots(e.X)
	y := r.dots(e.Y)
	if boxH := r.dots(e.Height); boxH > float64(block) {
		switch e.VAlign {
		case badgeformat.VAlignMiddle:
			y += (boxH - float64(block)) / 2
		case badgeformat.VAlignBottom:
			y += boxH - float64(block)
		}
	}

	ascent := float64(face.Metrics().Ascent.Ceil())
	for i, line := range lines {
		lw, _ := r.ctx.MeasureString(line)

		var lx float64
		switch {
		case width > 0 && e.Align == badgeformat.AlignCenter:
			lx = x + (float64(width)-lw)/2
		case width > 0 && e.Align == badgeformat.AlignRight:
			lx = x + float64(width) - lw
		case width > 0:
			lx = x
		case e.Align == badgeformat.AlignCenter:
			lx = x - lw/2
		case e.Align == badgeformat.AlignRight:
			lx = x - lw
		default:
			lx = x
		}

		r.ctx.DrawString(line, max(lx, 0), y+float64(i*(h+gap))+ascent)
	}

	return nil
}
