//go:build linux || darwin

package util

import (
	"os"

	"golang.org/x/sys/unix"
)

// TerminalWidth returns the stdout terminal width, or fallback when stdout
// is not a terminal.
func TerminalWidth(fallback int) int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return fallback
	}
	return int(ws.Col)
}
