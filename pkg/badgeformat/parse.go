package badgeformat

import (
	"encoding/json"
	"fmt"
	"os"
)

// Parse parses a badge layout from a byte slice
func Parse(data []byte) (*LabelSpec, error) {
	// Older layouts were saved by the web editor with camelCase size keys
	var temp struct {
		WidthMM        float64  `json:"width_mm"`
		HeightMM       float64  `json:"height_mm"`
		LegacyWidthMM  float64  `json:"widthMM"`
		LegacyHeightMM float64  `json:"heightMM"`
		DPI            int      `json:"dpi"`
		Elements       Elements `json:"elements"`
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return nil, fmt.Errorf("failed to parse label: %w", err)
	}

	spec := LabelSpec{
		WidthMM:  temp.WidthMM,
		HeightMM: temp.HeightMM,
		DPI:      temp.DPI,
		Elements: temp.Elements,
	}

	if spec.WidthMM == 0 {
		spec.WidthMM = temp.LegacyWidthMM
	}
	if spec.HeightMM == 0 {
		spec.HeightMM = temp.LegacyHeightMM
	}
	if spec.DPI == 0 {
		spec.DPI = DefaultDPI
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// ParseFile parses a badge layout from disk
func ParseFile(path string) (*LabelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label file: %w", err)
	}

	return Parse(data)
}

// ToJSON converts a LabelSpec to JSON bytes
func (s *LabelSpec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// SaveToFile saves a LabelSpec to a file
func (s *LabelSpec) SaveToFile(path string) error {
	data, err := s.ToJSON()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// UnmarshalJSON decodes each element according to its "type" key
func (e *Elements) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Elements, 0, len(raw))
	for i, item := range raw {
		var head struct {
			Type ElementType `json:"type"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return fmt.Errorf("element[%d]: %w", i, err)
		}

		el, err := decodeElement(head.Type, item)
		if err != nil {
			return fmt.Errorf("element[%d]: %w", i, err)
		}
		out = append(out, el)
	}

	*e = out
	return nil
}

func decodeElement(t ElementType, item []byte) (Element, error) {
	switch t {
	case TypeText:
		var el TextElement
		err := json.Unmarshal(item, &el)
		return el, err
	case TypeQRCode:
		var el QRCodeElement
		err := json.Unmarshal(item, &el)
		return el, err
	case TypeBarcode:
		var el BarcodeElement
		err := json.Unmarshal(item, &el)
		return el, err
	case TypeLine:
		var el LineElement
		err := json.Unmarshal(item, &el)
		return el, err
	case TypeBox:
		var el BoxElement
		err := json.Unmarshal(item, &el)
		return el, err
	case "":
		return nil, fmt.Errorf("element type is required")
	default:
		return nil, fmt.Errorf("unknown element type: %s", t)
	}
}

// MarshalJSON writes each element with its "type" key
func (e Elements) MarshalJSON() ([]byte, error) {
	out := make([]map[string]json.RawMessage, 0, len(e))
	for i, el := range e {
		if el == nil {
			return nil, fmt.Errorf("element[%d]: nil element", i)
		}

		body, err := json.Marshal(el)
		if err != nil {
			return nil, fmt.Errorf("element[%d]: %w", i, err)
		}

		fields := make(map[string]json.RawMessage)
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("element[%d]: %w", i, err)
		}

		typ, _ := json.Marshal(el.Type())
		fields["type"] = typ
		out = append(out, fields)
	}

	return json.Marshal(out)
}
