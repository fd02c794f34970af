// Package serialports enumerates candidate serial devices for printers and
// barcode scanners
package serialports

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tarm/serial"
)

// DefaultBaud is used by thermal printers and most USB-serial scanners
const DefaultBaud = 9600

// skipPatterns are macOS pseudo ports that never carry a device
var skipPatterns = []string{"Bluetooth", "Modem", "SPP", "DialIn", "Callout", "KeySerial", "debug-console"}

// Candidates lists device paths that may be serial ports on this OS.
// On Windows every COM name is a candidate; Probe tells which exist.
func Candidates() []string {
	return candidates(runtime.GOOS, filepath.Glob)
}

func candidates(goos string, glob func(string) ([]string, error)) []string {
	var ports []string

	switch goos {
	case "darwin":
		cu, _ := glob("/dev/cu.*")
		tty, _ := glob("/dev/tty.*")
		for _, port := range append(cu, tty...) {
			if !skipped(port) {
				ports = append(ports, port)
			}
		}
	case "linux":
		for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*"} {
			found, _ := glob(pattern)
			ports = append(ports, found...)
		}
	case "windows":
		for i := 1; i <= 256; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
	}

	return ports
}

// USBCandidates is Candidates without on-board UARTs, used as the USB
// printer fallback on macOS
func USBCandidates() []string {
	var out []string
	for _, p := range Candidates() {
		if !strings.HasPrefix(p, "/dev/ttyS") && !strings.HasPrefix(p, "COM") {
			out = append(out, p)
		}
	}
	return out
}

func skipped(port string) bool {
	for _, pattern := range skipPatterns {
		if strings.Contains(port, pattern) {
			return true
		}
	}
	return false
}

// Probe reports whether the port can be opened
func Probe(port string) bool {
	p, err := serial.OpenPort(&serial.Config{Name: port, Baud: DefaultBaud})
	if err != nil {
		return false
	}
	p.Close()
	return true
}

// Available returns the candidates that can be opened, skipping the ones
// in exclude (ports already held by this process)
func Available(exclude map[string]bool) []string {
	var out []string
	for _, port := range Candidates() {
		if exclude[port] {
			out = append(out, port)
			continue
		}
		if Probe(port) {
			out = append(out, port)
		}
	}
	return out
}
