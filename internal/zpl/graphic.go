package zpl

import (
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontsOnce   sync.Once
	regularFont *truetype.Font
	boldFont    *truetype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		regularFont, fontsErr = truetype.Parse(goregular.TTF)
		if fontsErr != nil {
			return
		}
		boldFont, fontsErr = truetype.Parse(gobold.TTF)
	})
	return fontsErr
}

// NewFace returns the Unicode face used for raster text, sized in pixels
func NewFace(sizePx float64, bold bool) (font.Face, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	f := regularFont
	if bold {
		f = boldFont
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// rasterizeLines draws text lines onto a white canvas. Each line occupies
// h dots plus gap dots of spacing. width <= 0 sizes the canvas to the
// widest line.
func rasterizeLines(lines []string, h, gap, width int, align badgeformat.Align, bold bool) (image.Image, error) {
	if len(lines) == 0 || h <= 0 {
		return nil, fmt.Errorf("nothing to rasterize")
	}

	face, err := NewFace(float64(h), bold)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	w := width
	if w <= 0 {
		for _, l := range lines {
			if lw := font.MeasureString(face, l).Ceil(); lw > w {
				w = lw
			}
		}
	}
	if w < 1 {
		w = 1
	}

	total := len(lines)*h + (len(lines)-1)*gap
	ascent := float64(face.Metrics().Ascent.Ceil())

	dc := gg.NewContext(w, total)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)
	dc.SetFontFace(face)

	for i, l := range lines {
		lw, _ := dc.MeasureString(l)

		var x float64
		switch align {
		case badgeformat.AlignCenter:
			x = (float64(w) - lw) / 2
		case badgeformat.AlignRight:
			x = float64(w) - lw
		}
		if x < 0 {
			x = 0
		}

		dc.DrawString(l, x, float64(i*(h+gap))+ascent)
	}

	return dc.Image(), nil
}

// encodeGFA converts an image to a ^GFA graphic field. Pixels darker than
// 50% gray become black dots.
func encodeGFA(img image.Image) string {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	bytesPerRow := (width + 7) / 8
	bitmap := make([]byte, bytesPerRow*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := gray.NRGBAAt(x+bounds.Min.X, y+bounds.Min.Y)
			if c.A >= 128 && c.R < 128 {
				bitmap[y*bytesPerRow+x/8] |= 1 << (7 - x%8)
			}
		}
	}

	total := len(bitmap)
	return fmt.Sprintf("^GFA,%d,%d,%d,%s", total, total, bytesPerRow, strings.ToUpper(hex.EncodeToString(bitmap)))
}
