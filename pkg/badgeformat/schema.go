// Package badgeformat defines the types for badge label layouts
package badgeformat

// ElementType discriminates badge elements in JSON
type ElementType string

const (
	TypeText    ElementType = "text"
	TypeQRCode  ElementType = "qrcode"
	TypeBarcode ElementType = "barcode"
	TypeLine    ElementType = "line"
	TypeBox     ElementType = "box"
)

// Supported printer resolutions
const (
	DPI203     = 203
	DPI300     = 300
	DefaultDPI = DPI203
)

// Align is the horizontal anchor of a text element
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// VAlign is the vertical anchor of a text element
type VAlign string

const (
	VAlignTop    VAlign = "top"
	VAlignMiddle VAlign = "middle"
	VAlignBottom VAlign = "bottom"
)

// LabelSpec represents the root structure of a badge layout.
// All positions and sizes are millimeters.
type LabelSpec struct {
	WidthMM  float64  `json:"width_mm"`
	HeightMM float64  `json:"height_mm"`
	DPI      int      `json:"dpi"`
	Elements Elements `json:"elements"`
}

// Element is one of TextElement, QRCodeElement, BarcodeElement, LineElement
// or BoxElement. The set is closed: only this package can add variants.
type Element interface {
	Type() ElementType
	Bounds() Rect
	badgeElement()
}

// Rect is a position and size in millimeters
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// TextElement prints a literal text or an attendee field
type TextElement struct {
	Rect
	FontSize   float64 `json:"fontSize,omitempty"`   // points
	FontFamily string  `json:"fontFamily,omitempty"` // printer font code ("0".."H") or a downloaded font name
	Align      Align   `json:"align,omitempty"`
	VAlign     VAlign  `json:"valign,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	MaxLines   int     `json:"maxLines,omitempty"`
	Source     string  `json:"source,omitempty"`
	Text       string  `json:"text,omitempty"`
}

// QRCodeElement encodes an attendee field as a QR code
type QRCodeElement struct {
	Rect
	Source string `json:"source,omitempty"`
}

// BarcodeElement encodes an attendee field as a Code 128 barcode
type BarcodeElement struct {
	Rect
	Source string `json:"source,omitempty"`
}

// LineElement is a horizontal rule of Width millimeters
type LineElement struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Thickness float64 `json:"thickness,omitempty"`
}

// BoxElement is an unfilled rectangle
type BoxElement struct {
	Rect
	Thickness float64 `json:"thickness,omitempty"`
}

func (TextElement) Type() ElementType    { return TypeText }
func (QRCodeElement) Type() ElementType  { return TypeQRCode }
func (BarcodeElement) Type() ElementType { return TypeBarcode }
func (LineElement) Type() ElementType    { return TypeLine }
func (BoxElement) Type() ElementType     { return TypeBox }

func (e TextElement) Bounds() Rect    { return e.Rect }
func (e QRCodeElement) Bounds() Rect  { return e.Rect }
func (e BarcodeElement) Bounds() Rect { return e.Rect }
func (e LineElement) Bounds() Rect    { return Rect{X: e.X, Y: e.Y, Width: e.Width} }
func (e BoxElement) Bounds() Rect     { return e.Rect }

func (TextElement) badgeElement()    {}
func (QRCodeElement) badgeElement()  {}
func (BarcodeElement) badgeElement() {}
func (LineElement) badgeElement()    {}
func (BoxElement) badgeElement()     {}

// Elements is an ordered element list with type-tagged JSON encoding
type Elements []Element
