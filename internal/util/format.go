package util

import (
	"fmt"
	"strconv"
	"time"
)

// Formatter renders durations, sizes and rates either with human-friendly
// units or as raw delimited figures (nanoseconds / bytes).
type Formatter struct {
	human     bool
	delimiter string
}

func NewFormatter(human bool, delimiter string) *Formatter {
	return &Formatter{human: human, delimiter: delimiter}
}

func (f *Formatter) Duration(d time.Duration) string {
	if f.human {
		return FormatDuration(d)
	}
	return GroupDigits(d.Nanoseconds(), f.delimiter) + " ns"
}

func (f *Formatter) Bytes(n int64) string {
	if f.human {
		return FormatBytes(float64(n))
	}
	return GroupDigits(n, f.delimiter) + " B"
}

func (f *Formatter) Rate(bytesPerSec float64) string {
	if f.human {
		return FormatBytes(bytesPerSec) + "/s"
	}
	return GroupDigits(int64(bytesPerSec), f.delimiter) + " B/s"
}

// FormatBytes formats byte counts with appropriate units.
func FormatBytes(bytes float64) string {
	return formatWithUnits(bytes, []string{"B", "KB", "MB", "GB", "TB", "PB"}, 1000)
}

// FormatBitsPerSecond formats bits per second with appropriate units.
func FormatBitsPerSecond(bps float64) string {
	return formatWithUnits(bps, []string{"bps", "Kbps", "Mbps", "Gbps", "Tbps"}, 1000)
}

// FormatDuration renders a duration with two significant components,
// e.g. "1.52ms", "3.4s", "2m14s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		m := int(d.Minutes())
		s := d.Seconds() - float64(m)*60
		return fmt.Sprintf("%dm%.0fs", m, s)
	}
}

// GroupDigits inserts a delimiter between thousands groups: 1234567 with ","
// becomes "1,234,567". An empty delimiter returns the plain decimal form.
func GroupDigits(n int64, delimiter string) string {
	s := strconv.FormatInt(n, 10)
	if delimiter == "" {
		return s
	}
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, delimiter...)
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// formatWithUnits is a generic formatter for values with scaling units.
func formatWithUnits(value float64, units []string, base float64) string {
	if value < 0 {
		return "0"
	}
	idx := 0
	for value >= base && idx < len(units)-1 {
		value /= base
		idx++
	}
	if value >= 100 {
		return fmt.Sprintf("%.0f %s", value, units[idx])
	}
	if value >= 10 {
		return fmt.Sprintf("%.1f %s", value, units[idx])
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}
