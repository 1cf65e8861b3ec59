package util

import (
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(0); got != "0.00 B" {
		t.Fatalf("FormatBytes(0) = %q", got)
	}
	if got := FormatBytes(8_000_000); got != "8.00 MB" {
		t.Fatalf("FormatBytes(8e6) = %q", got)
	}
	if got := FormatBytes(123_400_000_000); got != "123 GB" {
		t.Fatalf("FormatBytes(123.4e9) = %q", got)
	}
}

func TestGroupDigits(t *testing.T) {
	cases := []struct {
		in   int64
		sep  string
		want string
	}{
		{0, ",", "0"},
		{999, ",", "999"},
		{1000, ",", "1,000"},
		{1234567, ",", "1,234,567"},
		{1234567, "", "1234567"},
		{-1234567, ",", "-1,234,567"},
	}
	for _, c := range cases {
		if got := GroupDigits(c.in, c.sep); got != c.want {
			t.Fatalf("GroupDigits(%d, %q) = %q, want %q", c.in, c.sep, got, c.want)
		}
	}
}

func TestFormatterDelimitedDuration(t *testing.T) {
	f := NewFormatter(false, ",")
	if got := f.Duration(1_234_567 * time.Nanosecond); got != "1,234,567 ns" {
		t.Fatalf("Duration = %q", got)
	}
}

func TestFormatterHumanDuration(t *testing.T) {
	f := NewFormatter(true, "")
	if got := f.Duration(1520 * time.Microsecond); got != "1.52ms" {
		t.Fatalf("Duration = %q", got)
	}
	if got := f.Duration(999 * time.Nanosecond); got != "999ns" {
		t.Fatalf("Duration = %q", got)
	}
}
