// Package zpl lays out badge elements as ZPL II label commands.
//
// Coordinates are authored in millimeters and converted to dots with
// MMToDots. Text the printer's built-in fonts cannot draw (anything outside
// printable ASCII) is rasterized and sent as a ^GFA graphic field.
package zpl

import (
	"fmt"
	"strings"

	"github.com/thevladbog/idento-sub000/internal/model"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

const (
	defaultFontPt      = 12
	defaultThicknessMM = 0.3
	defaultFontCode    = '0'
	hexIndicator       = '_'
)

// Config describes the label canvas
type Config struct {
	WidthMM  float64
	HeightMM float64
	DPI      int
}

// ConfigOf returns the canvas of a label spec
func ConfigOf(spec *badgeformat.LabelSpec) Config {
	return Config{WidthMM: spec.WidthMM, HeightMM: spec.HeightMM, DPI: spec.DPI}
}

// GenerateLabel renders a whole label spec against data
func GenerateLabel(spec *badgeformat.LabelSpec, data map[string]any) string {
	if spec == nil {
		return Generate(Config{}, nil, data)
	}
	return Generate(ConfigOf(spec), spec.Elements, data)
}

// Generate renders elements in order into one ^XA..^XZ label. The output is
// fully determined by its inputs. An element that cannot be rendered is
// skipped; Generate never fails.
func Generate(cfg Config, elements []badgeformat.Element, data map[string]any) string {
	g := &generator{dpi: normalizeDPI(cfg.DPI)}

	var b strings.Builder
	b.WriteString("^XA\n^CI28\n")
	fmt.Fprintf(&b, "^PW%d\n^LL%d\n^LH0,0\n", g.dots(cfg.WidthMM), g.dots(cfg.HeightMM))

	for _, el := range elements {
		b.WriteString(g.element(el, data))
	}

	b.WriteString("^XZ\n")
	return b.String()
}

type generator struct {
	dpi int
}

func (g *generator) dots(mm float64) int {
	return MMToDots(mm, g.dpi)
}

func (g *generator) element(el badgeformat.Element, data map[string]any) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()

	switch e := el.(type) {
	case badgeformat.TextElement:
		return g.text(e, data)
	case badgeformat.QRCodeElement:
		return g.qrcode(e, data)
	case badgeformat.BarcodeElement:
		return g.barcode(e, data)
	case badgeformat.LineElement:
		return g.line(e)
	case badgeformat.BoxElement:
		return g.box(e)
	default:
		return ""
	}
}

func (g *generator) text(e badgeformat.TextElement, data map[string]any) string {
	text := e.Text
	if e.Source != "" {
		text = model.FieldString(data, e.Source)
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	pt := e.FontSize
	if pt <= 0 {
		pt = defaultFontPt
	}
	h := max(PointsToDots(pt, g.dpi), 1)
	gap := max(h/5, 1)
	width := g.dots(e.Width)

	lines := WrapText(text, width, h, e.MaxLines)
	if len(lines) == 0 {
		return ""
	}

	block := len(lines)*h + (len(lines)-1)*gap
	x := g.dots(e.X)
	y := anchorY(g.dots(e.Y), g.dots(e.Height), block, e.VAlign)

	if !isPrinterNative(text) {
		return g.rasterText(lines, x, y, h, gap, width, e)
	}

	font := fontCommand(e.FontFamily, h)
	strike := []int{0}
	if e.Bold {
		strike = append(strike, max(h/25, 1))
	}

	var b strings.Builder
	for i, line := range lines {
		ly := y + i*(h+gap)
		for _, dx := range strike {
			if width > 0 {
				fmt.Fprintf(&b, "^FO%d,%d%s^FB%d,1,0,%s,0^FH^FD%s^FS\n",
					x+dx, ly, font, width, justification(e.Align), escapeField(line))
			} else {
				lx := anchorX(x, textWidth(line, h), e.Align)
				fmt.Fprintf(&b, "^FO%d,%d%s^FH^FD%s^FS\n", lx+dx, ly, font, escapeField(line))
			}
		}
	}
	return b.String()
}

func (g *generator) rasterText(lines []string, x, y, h, gap, width int, e badgeformat.TextElement) string {
	img, err := rasterizeLines(lines, h, gap, width, e.Align, e.Bold)
	if err != nil {
		return ""
	}

	if width <= 0 {
		x = anchorX(x, img.Bounds().Dx(), e.Align)
	}
	return fmt.Sprintf("^FO%d,%d%s^FS\n", x, y, encodeGFA(img))
}

func (g *generator) qrcode(e badgeformat.QRCodeElement, data map[string]any) string {
	payload := model.FieldString(data, e.Source)
	side := min(g.dots(e.Width), g.dots(e.Height))
	mag := qrMagnification(payload, side)

	return fmt.Sprintf("^FO%d,%d^BQN,2,%d^FH^FDMA,%s^FS\n",
		g.dots(e.X), g.dots(e.Y), mag, escapeField(payload))
}

func (g *generator) barcode(e badgeformat.BarcodeElement, data map[string]any) string {
	payload := model.FieldString(data, e.Source)
	height := max(g.dots(e.Height), 1)
	module := barcodeModuleWidth(payload, g.dots(e.Width))

	return fmt.Sprintf("^FO%d,%d^BY%d,3,%d^BCN,%d,N,N,N^FH^FD%s^FS\n",
		g.dots(e.X), g.dots(e.Y), module, height, height, escapeField(payload))
}

func (g *generator) line(e badgeformat.LineElement) string {
	t := g.thickness(e.Thickness)
	w := max(g.dots(e.Width), t)

	return fmt.Sprintf("^FO%d,%d^GB%d,%d,%d^FS\n", g.dots(e.X), g.dots(e.Y), w, t, t)
}

func (g *generator) box(e badgeformat.BoxElement) string {
	t := g.thickness(e.Thickness)
	w := max(g.dots(e.Width), t)
	h := max(g.dots(e.Height), t)

	return fmt.Sprintf("^FO%d,%d^GB%d,%d,%d^FS\n", g.dots(e.X), g.dots(e.Y), w, h, t)
}

func (g *generator) thickness(mm float64) int {
	if mm <= 0 {
		mm = defaultThicknessMM
	}
	return max(g.dots(mm), 1)
}

// anchorY places a block of the given height inside a box
func anchorY(top, boxHeight, block int, valign badgeformat.VAlign) int {
	free := boxHeight - block
	if boxHeight <= 0 || free <= 0 {
		return top
	}

	switch valign {
	case badgeformat.VAlignMiddle:
		return top + free/2
	case badgeformat.VAlignBottom:
		return top + free
	default:
		return top
	}
}

// anchorX places content of the given width relative to x when the element
// has no width of its own
func anchorX(x, contentWidth int, align badgeformat.Align) int {
	switch align {
	case badgeformat.AlignCenter:
		x -= contentWidth / 2
	case badgeformat.AlignRight:
		x -= contentWidth
	}
	return max(x, 0)
}

func justification(align badgeformat.Align) string {
	switch align {
	case badgeformat.AlignCenter:
		return "C"
	case badgeformat.AlignRight:
		return "R"
	default:
		return "L"
	}
}

// fontCommand selects a resident font by its one-character code, or a
// downloaded font by name (e.g. "E:ARIAL.TTF").
func fontCommand(family string, h int) string {
	family = strings.TrimSpace(family)

	switch {
	case len(family) == 1 && isFontCode(family[0]):
		return fmt.Sprintf("^A%cN,%d,%d", family[0], h, h)
	case strings.ContainsAny(family, ":."):
		return fmt.Sprintf("^A@N,%d,%d,%s", h, h, family)
	default:
		return fmt.Sprintf("^A%cN,%d,%d", defaultFontCode, h, h)
	}
}

func isFontCode(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}

// isPrinterNative reports whether every rune is printable ASCII
func isPrinterNative(s string) bool {
	for _, r := range s {
		if r < 0x20 || r > 0x7E {
			return false
		}
	}
	return true
}

// escapeField hex-escapes the characters ZPL treats as control prefixes.
// Used together with ^FH.
func escapeField(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case hexIndicator, '^', '~':
			fmt.Fprintf(&b, "_%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
