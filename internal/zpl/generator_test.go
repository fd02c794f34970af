package zpl

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

var label = Config{WidthMM: 80, HeightMM: 50, DPI: badgeformat.DPI203}

func TestMMToDots(t *testing.T) {
	tests := []struct {
		mm   float64
		dpi  int
		want int
	}{
		{10, 203, 80},
		{80, 203, 639},
		{50, 203, 400},
		{25.4, 300, 300},
		{0.3, 203, 2},
		{0, 203, 0},
		{-5, 203, 0},
		{10, 0, 80},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%vmm@%d", tt.mm, tt.dpi), func(t *testing.T) {
			assert.Equal(t, tt.want, MMToDots(tt.mm, tt.dpi))
		})
	}
}

func TestMMToDots_Monotonic(t *testing.T) {
	for _, dpi := range []int{badgeformat.DPI203, badgeformat.DPI300} {
		prev := MMToDots(-1, dpi)
		for i := 0; i <= 4000; i++ {
			mm := float64(i) * 0.05
			got := MMToDots(mm, dpi)
			require.GreaterOrEqual(t, got, prev, "dpi %d mm %v", dpi, mm)
			require.Equal(t, got, MMToDots(mm, dpi))
			prev = got
		}
	}
}

func TestPointsToDots(t *testing.T) {
	assert.Equal(t, 34, PointsToDots(12, 203))
	assert.Equal(t, 50, PointsToDots(12, 300))
	assert.Equal(t, 0, PointsToDots(-1, 203))
}

func TestGenerate_EmptyQRPayload(t *testing.T) {
	cfg := Config{WidthMM: 80, DPI: 203}
	elements := []badgeformat.Element{
		badgeformat.QRCodeElement{Rect: badgeformat.Rect{X: 5, Y: 5, Width: 25, Height: 25}, Source: "code"},
	}

	var out string
	require.NotPanics(t, func() {
		out = Generate(cfg, elements, map[string]any{"code": ""})
	})

	assert.True(t, strings.HasPrefix(out, "^XA\n^CI28\n^PW639\n^LL0\n^LH0,0\n"))
	assert.True(t, strings.HasSuffix(out, "^XZ\n"))
	assert.Contains(t, out, "^BQN,2,9^FH^FDMA,^FS")
}

func TestGenerate_QRMagnification(t *testing.T) {
	elements := []badgeformat.Element{
		badgeformat.QRCodeElement{Rect: badgeformat.Rect{X: 5, Y: 5, Width: 25, Height: 30}, Source: "code"},
		badgeformat.QRCodeElement{Rect: badgeformat.Rect{X: 5, Y: 5, Width: 200, Height: 200}, Source: "code"},
		badgeformat.QRCodeElement{Rect: badgeformat.Rect{X: 5, Y: 5, Width: 1, Height: 1}, Source: "code"},
	}

	out := Generate(label, elements, map[string]any{"code": "ABC1"})

	assert.Contains(t, out, "^FO40,40^BQN,2,9^FH^FDMA,ABC1^FS")
	assert.Contains(t, out, "^BQN,2,10^")
	assert.Contains(t, out, "^BQN,2,1^")
}

func TestGenerate_Barcode(t *testing.T) {
	elements := []badgeformat.Element{
		badgeformat.BarcodeElement{Rect: badgeformat.Rect{X: 5, Y: 30, Width: 50, Height: 10}, Source: "code"},
	}

	out := Generate(label, elements, map[string]any{"code": "ABC1"})

	modules := Code128Modules("ABC1")
	require.Greater(t, modules, 0)
	want := fmt.Sprintf("^FO40,240^BY%d,3,80^BCN,80,N,N,N^FH^FDABC1^FS", clamp(400/modules, 1, 10))
	assert.Contains(t, out, want)

	empty := Generate(label, elements, nil)
	assert.Contains(t, empty, "^BY2,3,80^BCN,80,N,N,N^FH^FD^FS")
}

func TestGenerate_LineAndBox(t *testing.T) {
	elements := []badgeformat.Element{
		badgeformat.LineElement{X: 5, Y: 5, Width: 50},
		badgeformat.BoxElement{Rect: badgeformat.Rect{X: 1, Y: 1, Width: 10, Height: 10}, Thickness: 0.5},
	}

	out := Generate(label, elements, nil)

	line := strings.Index(out, "^FO40,40^GB400,2,2^FS")
	box := strings.Index(out, "^FO8,8^GB80,80,4^FS")
	require.GreaterOrEqual(t, line, 0)
	require.GreaterOrEqual(t, box, 0)
	assert.Less(t, line, box, "elements keep input order")
}

func TestGenerate_TextFromSource(t *testing.T) {
	elements := []badgeformat.Element{
		badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Y: 10, Width: 50}, FontSize: 12, Source: "first_name"},
	}

	out := Generate(label, elements, map[string]any{"first_name": "Jane"})
	assert.Contains(t, out, "^FO80,80^A0N,34,34^FB400,1,0,L,0^FH^FDJane^FS\n")
}

func TestGenerate_EmptyTextEmitsNothing(t *testing.T) {
	header := Generate(label, nil, nil)
	elements := []badgeformat.Element{
		badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Y: 10, Width: 50}, Source: "company"},
		badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Y: 10, Width: 50}, Source: "missing"},
		badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Y: 10, Width: 50}, Text: "   "},
	}

	out := Generate(label, elements, map[string]any{"company": nil})
	assert.Equal(t, header, out)
}

func TestGenerate_Alignment(t *testing.T) {
	tests := []struct {
		name string
		el   badgeformat.TextElement
		want string
	}{
		{
			name: "center in width",
			el:   badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Y: 10, Width: 50}, FontSize: 12, Align: badgeformat.AlignCenter, Text: "Hi"},
			want: "^FO80,80^A0N,34,34^FB400,1,0,C,0^FH^FDHi^FS",
		},
		{
			name: "right in width",
			el:   badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Y: 10, Width: 50}, FontSize: 12, Align: badgeformat.AlignRight, Text: "Hi"},
			want: "^FB400,1,0,R,0^",
		},
		{
			name: "right anchored at x without width",
			el:   badgeformat.TextElement{Rect: badgeformat.Rect{X: 50}, FontSize: 12, Align: badgeformat.AlignRight, Text: "AB"},
			want: "^FO355,0^A0N,34,34^FH^FDAB^FS",
		},
		{
			name: "anchor clamps at zero",
			el:   badgeformat.TextElement{Rect: badgeformat.Rect{X: 1}, FontSize: 12, Align: badgeformat.AlignRight, Text: "AB"},
			want: "^FO0,0^",
		},
		{
			name: "bottom",
			el:   badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Width: 50, Height: 20}, FontSize: 12, VAlign: badgeformat.VAlignBottom, Text: "Hi"},
			want: "^FO80,126^",
		},
		{
			name: "middle",
			el:   badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Width: 50, Height: 20}, FontSize: 12, VAlign: badgeformat.VAlignMiddle, Text: "Hi"},
			want: "^FO80,63^",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Generate(label, []badgeformat.Element{tt.el}, nil)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestGenerate_BoldDoubleStrike(t *testing.T) {
	el := badgeformat.TextElement{Rect: badgeformat.Rect{X: 10, Y: 10, Width: 50}, FontSize: 12, Bold: true, Text: "VIP"}

	out := Generate(label, []badgeformat.Element{el}, nil)

	assert.Equal(t, 2, strings.Count(out, "^FDVIP^FS"))
	assert.Contains(t, out, "^FO80,80^")
	assert.Contains(t, out, "^FO81,80^")
}

func TestGenerate_MultiLine(t *testing.T) {
	el := badgeformat.TextElement{
		Rect:     badgeformat.Rect{X: 10, Y: 10, Width: 30},
		FontSize: 12,
		MaxLines: 2,
		Text:     "International Business Machines Corporation",
	}

	out := Generate(label, []badgeformat.Element{el}, nil)

	assert.Equal(t, 2, strings.Count(out, "^FD"))
	assert.Contains(t, out, "^FO80,80^")
	assert.Contains(t, out, "^FO80,120^")
	assert.NotContains(t, out, "...")
	assert.NotContains(t, out, "Corporation")
}

func TestGenerate_FontSelection(t *testing.T) {
	tests := []struct {
		family string
		want   string
	}{
		{"", "^A0N,34,34"},
		{"D", "^ADN,34,34"},
		{"E:ARIAL.TTF", "^A@N,34,34,E:ARIAL.TTF"},
		{"Arial", "^A0N,34,34"},
	}

	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			el := badgeformat.TextElement{Rect: badgeformat.Rect{X: 1}, FontSize: 12, FontFamily: tt.family, Text: "x"}
			assert.Contains(t, Generate(label, []badgeformat.Element{el}, nil), tt.want+"^FH")
		})
	}
}

func TestGenerate_EscapesControlCharacters(t *testing.T) {
	el := badgeformat.TextElement{Rect: badgeformat.Rect{X: 1}, Text: "a^b~c_d"}

	out := Generate(label, []badgeformat.Element{el}, nil)
	assert.Contains(t, out, "^FDa_5Eb_7Ec_5Fd^FS")
}

func TestGenerate_CyrillicUsesGraphicField(t *testing.T) {
	el := badgeformat.TextElement{
		Rect:     badgeformat.Rect{X: 10, Y: 10, Width: 50},
		FontSize: 14,
		Align:    badgeformat.AlignCenter,
		Source:   "first_name",
	}
	data := map[string]any{"first_name": "Иван Петров"}

	out := Generate(label, []badgeformat.Element{el}, data)

	assert.Contains(t, out, "^FO80,80^GFA,")
	assert.NotContains(t, out, "Иван")
	assert.NotContains(t, out, "^A0N")

	start := strings.Index(out, "^GFA,")
	end := strings.Index(out[start:], "^FS")
	parts := strings.Split(out[start+len("^GFA,"):start+end], ",")
	require.Len(t, parts, 4)

	total, err := strconv.Atoi(parts[0])
	require.NoError(t, err)
	perRow, err := strconv.Atoi(parts[2])
	require.NoError(t, err)
	assert.Equal(t, 50, perRow, "row covers the 400-dot element width")
	assert.Equal(t, total*2, len(parts[3]))
	assert.Equal(t, 0, total%perRow)
	assert.NotEqual(t, strings.Repeat("0", len(parts[3])), parts[3], "glyphs were drawn")
}

func TestGenerate_Deterministic(t *testing.T) {
	elements := []badgeformat.Element{
		badgeformat.TextElement{Rect: badgeformat.Rect{X: 5, Y: 5, Width: 70}, FontSize: 18, Bold: true, Source: "full_name", MaxLines: 2},
		badgeformat.TextElement{Rect: badgeformat.Rect{X: 5, Y: 20}, FontSize: 10, Source: "company"},
		badgeformat.QRCodeElement{Rect: badgeformat.Rect{X: 50, Y: 25, Width: 20, Height: 20}, Source: "code"},
		badgeformat.BarcodeElement{Rect: badgeformat.Rect{X: 5, Y: 35, Width: 40, Height: 10}, Source: "code"},
		badgeformat.LineElement{X: 5, Y: 18, Width: 70},
		badgeformat.BoxElement{Rect: badgeformat.Rect{X: 0.5, Y: 0.5, Width: 79, Height: 49}},
	}
	data := map[string]any{"full_name": "Анна Смирнова", "company": "Acme", "code": "A-100"}

	first := Generate(label, elements, data)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Generate(label, elements, data))
	}
}

func TestGenerateLabel_NilSpec(t *testing.T) {
	assert.NotPanics(t, func() {
		out := GenerateLabel(nil, nil)
		assert.True(t, strings.HasPrefix(out, "^XA"))
	})
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta"}, WrapText("alpha beta gamma", 35, 10, 2))
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, WrapText("alpha beta gamma", 35, 10, 3))
	assert.Equal(t, []string{"alpha"}, WrapText("alpha beta gamma", 35, 10, 0))
	assert.Equal(t, []string{"alpha beta gamma"}, WrapText("  alpha   beta gamma ", 0, 10, 1))
	assert.Nil(t, WrapText("   ", 35, 10, 2))
}

func TestSplitWord(t *testing.T) {
	word := "abcdefghijkl"
	pieces := splitWord(word, 16, 10)

	require.Greater(t, len(pieces), 1)
	assert.Equal(t, word, strings.Join(pieces, ""))
	for _, p := range pieces {
		assert.LessOrEqual(t, textWidth(p, 10), 16, p)
	}
}

func TestEncodeGFA(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 10; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	img.SetGray(0, 1, color.Gray{Y: 255})

	assert.Equal(t, "^GFA,4,4,2,FFC07FC0", encodeGFA(img))
}

func TestQRModules(t *testing.T) {
	assert.Equal(t, 21, QRModules(""))
	assert.Equal(t, 21, QRModules("ABC1"))
	assert.Greater(t, QRModules(strings.Repeat("x", 200)), 21)
}
