package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

var (
	writeClipboard           = clipboard.WriteAll
	osc52Out       io.Writer = os.Stderr
)

func copyToClipboard(text string) error {
	// Prefer system clipboard (works in most setups including alt-screen).
	if err := writeClipboard(text); err == nil {
		return nil
	}

	// Fallback to OSC52 for terminals that support it (incl. tmux/screen).
	seq := osc52.New(text).Tmux().Screen()
	_, _ = fmt.Fprint(osc52Out, seq)
	return fmt.Errorf("system clipboard unavailable; sent OSC52 copy sequence (may not be supported by your terminal)")
}
