package zpl

import (
	"math"

	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

const mmPerInch = 25.4

// MMToDots converts millimeters to printer dots, rounding half up.
// Negative and NaN inputs clamp to 0.
func MMToDots(mm float64, dpi int) int {
	if math.IsNaN(mm) || mm <= 0 {
		return 0
	}
	return int(math.Floor(mm*float64(normalizeDPI(dpi))/mmPerInch + 0.5))
}

// PointsToDots converts a font size in points to dots, rounding half up
func PointsToDots(pt float64, dpi int) int {
	if math.IsNaN(pt) || pt <= 0 {
		return 0
	}
	return int(math.Floor(pt*float64(normalizeDPI(dpi))/72 + 0.5))
}

func normalizeDPI(dpi int) int {
	if dpi <= 0 {
		return badgeformat.DefaultDPI
	}
	return dpi
}
