package badgeformat

import (
	"fmt"
)

// Validate validates a LabelSpec structure
func Validate(s *LabelSpec) error {
	if s.WidthMM <= 0 {
		return fmt.Errorf("width_mm must be positive")
	}
	if s.HeightMM <= 0 {
		return fmt.Errorf("height_mm must be positive")
	}
	if s.DPI != DPI203 && s.DPI != DPI300 {
		return fmt.Errorf("invalid dpi: %d (must be 203 or 300)", s.DPI)
	}

	for i, el := range s.Elements {
		if err := validateElement(el); err != nil {
			return fmt.Errorf("element[%d]: %w", i, err)
		}
	}

	return nil
}

func validateElement(el Element) error {
	switch e := el.(type) {
	case TextElement:
		return validateTextElement(e)
	case QRCodeElement:
		return validateCodeBox("qrcode", e.Rect)
	case BarcodeElement:
		return validateCodeBox("barcode", e.Rect)
	case LineElement:
		if e.Width <= 0 {
			return fmt.Errorf("line requires positive width")
		}
		if e.Thickness < 0 {
			return fmt.Errorf("line thickness cannot be negative")
		}
		return nil
	case BoxElement:
		if e.Width <= 0 || e.Height <= 0 {
			return fmt.Errorf("box requires positive width and height")
		}
		if e.Thickness < 0 {
			return fmt.Errorf("box thickness cannot be negative")
		}
		return nil
	case nil:
		return fmt.Errorf("element is nil")
	default:
		return fmt.Errorf("unsupported element type: %s", el.Type())
	}
}

func validateTextElement(e TextElement) error {
	if e.Width < 0 || e.Height < 0 {
		return fmt.Errorf("text size cannot be negative")
	}
	if e.FontSize < 0 {
		return fmt.Errorf("fontSize cannot be negative")
	}
	if e.MaxLines < 0 {
		return fmt.Errorf("maxLines cannot be negative")
	}
	if e.Source != "" && e.Text != "" {
		return fmt.Errorf("text element cannot have both source and text")
	}

	switch e.Align {
	case "", AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("invalid align '%s' (must be left, center, or right)", e.Align)
	}

	switch e.VAlign {
	case "", VAlignTop, VAlignMiddle, VAlignBottom:
	default:
		return fmt.Errorf("invalid valign '%s' (must be top, middle, or bottom)", e.VAlign)
	}

	return nil
}

func validateCodeBox(kind string, r Rect) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%s requires positive width and height", kind)
	}
	return nil
}
