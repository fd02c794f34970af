package zpl

import (
	"github.com/boombuler/barcode/code128"
	"github.com/skip2/go-qrcode"
)

// Module count of the smallest QR symbol (version 1)
const minQRModules = 21

const (
	maxMagnification  = 10
	defaultModuleDots = 2
)

// QRModules returns the side length in modules of the QR symbol the printer
// will draw for payload at error correction level M, without quiet zone.
func QRModules(payload string) int {
	if payload == "" {
		return minQRModules
	}

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return minQRModules
	}
	qr.DisableBorder = true

	if n := len(qr.Bitmap()); n > 0 {
		return n
	}
	return minQRModules
}

// Code128Modules returns the width in modules of the Code 128 symbol for
// payload, or 0 when it cannot be encoded.
func Code128Modules(payload string) int {
	if payload == "" {
		return 0
	}

	bc, err := code128.Encode(payload)
	if err != nil {
		return 0
	}
	return bc.Bounds().Dx()
}

// qrMagnification fits the QR symbol into a side of the given dots
func qrMagnification(payload string, side int) int {
	return clamp(side/QRModules(payload), 1, maxMagnification)
}

// barcodeModuleWidth fits the barcode into width dots
func barcodeModuleWidth(payload string, width int) int {
	modules := Code128Modules(payload)
	if modules == 0 || width <= 0 {
		return defaultModuleDots
	}
	return clamp(width/modules, 1, maxMagnification)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
