package stats

import (
	"errors"
	"testing"
	"time"
)

func collect(ds ...time.Duration) *Collector {
	c := NewCollector(len(ds))
	for _, d := range ds {
		c.Add(d)
	}
	return c
}

func TestSummarizeEmpty(t *testing.T) {
	c := NewCollector(0)
	_, err := c.Summarize()
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
}

func TestSummarizeSingle(t *testing.T) {
	c := collect(42 * time.Millisecond)
	s, err := c.Summarize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Count != 1 {
		t.Fatalf("count = %d, want 1", s.Count)
	}
	for name, got := range map[string]time.Duration{
		"mean": s.Mean, "median": s.Median, "min": s.Min, "max": s.Max,
	} {
		if got != 42*time.Millisecond {
			t.Fatalf("%s = %v, want 42ms", name, got)
		}
	}
	if s.Std != 0 {
		t.Fatalf("std = %v, want 0", s.Std)
	}
}

func TestSummarizePopulationStd(t *testing.T) {
	// 2,4,4,4,5,5,7,9: mean 5, population std 2 (sample std would be ~2.14).
	c := collect(2, 4, 4, 4, 5, 5, 7, 9)
	s, err := c.Summarize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Mean != 5 {
		t.Fatalf("mean = %d, want 5", s.Mean)
	}
	if s.Std != 2 {
		t.Fatalf("std = %d, want 2 (population)", s.Std)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Fatalf("min/max = %d/%d, want 2/9", s.Min, s.Max)
	}
}

func TestSummarizeMedianOdd(t *testing.T) {
	c := collect(9, 1, 5)
	s, err := c.Summarize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Median != 5 {
		t.Fatalf("median = %d, want 5", s.Median)
	}
}

func TestSummarizeMedianEven(t *testing.T) {
	// Sorted: 1,3,5,9 -> median (3+5)/2 = 4.
	c := collect(9, 3, 1, 5)
	s, err := c.Summarize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Median != 4 {
		t.Fatalf("median = %d, want 4", s.Median)
	}
}

func TestSummarizeKeepsInsertionOrder(t *testing.T) {
	c := collect(9, 1, 5, 3)
	if _, err := c.Summarize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{9, 1, 5, 3}
	for i, d := range c.samples {
		if d != want[i] {
			t.Fatalf("samples reordered at %d: got %d, want %d", i, d, want[i])
		}
	}
}

func TestAddClampsNegative(t *testing.T) {
	c := collect(-5 * time.Second)
	s, err := c.Summarize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Min != 0 {
		t.Fatalf("min = %v, want 0", s.Min)
	}
}
