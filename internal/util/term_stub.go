//go:build !linux && !darwin

package util

// TerminalWidth returns fallback on platforms without TIOCGWINSZ support.
func TerminalWidth(fallback int) int {
	return fallback
}
