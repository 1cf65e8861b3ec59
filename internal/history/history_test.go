package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sshping/sshping/internal/probe"
	"github.com/sshping/sshping/internal/stats"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fullReport(id, target string, started time.Time) *probe.Report {
	return &probe.Report{
		RunID:       id,
		Target:      target,
		StartedAt:   started,
		ConnectTime: 150 * time.Millisecond,
		Echo: &probe.EchoResult{
			Requested: 1000,
			Sent:      1000,
			Latency: &stats.Summary{
				Count:  1000,
				Mean:   12 * time.Millisecond,
				Std:    2 * time.Millisecond,
				Median: 11 * time.Millisecond,
			},
		},
		Speed: &probe.SpeedSummary{
			Upload:   probe.SpeedResult{Bytes: 8_000_000, Elapsed: 2 * time.Second},
			Download: probe.SpeedResult{Bytes: 8_000_000, Elapsed: time.Second},
		},
	}
}

func TestInsertAndRecent(t *testing.T) {
	s := openTestStore(t)
	started := time.Unix(0, 1_700_000_000_000_000_000)
	if err := s.Insert(fullReport("run-1", "alice@example.com:22", started)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entries, err := s.Recent("alice@example.com:22", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	want := Entry{
		RunID:       "run-1",
		StartedAt:   started,
		Target:      "alice@example.com:22",
		ConnectTime: 150 * time.Millisecond,
		Echo: &EchoEntry{
			Count:  1000,
			Mean:   12 * time.Millisecond,
			Std:    2 * time.Millisecond,
			Median: 11 * time.Millisecond,
		},
		Upload:   &TransferEntry{Bytes: 8_000_000, Elapsed: 2 * time.Second},
		Download: &TransferEntry{Bytes: 8_000_000, Elapsed: time.Second},
	}
	if diff := cmp.Diff(want, entries[0]); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentSkippedSectionsStayNil(t *testing.T) {
	s := openTestStore(t)
	r := &probe.Report{
		RunID:       "run-2",
		Target:      "host",
		StartedAt:   time.Now(),
		ConnectTime: time.Millisecond,
	}
	if err := s.Insert(r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	entries, err := s.Recent("host", 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if entries[0].Echo != nil || entries[0].Upload != nil || entries[0].Download != nil {
		t.Fatalf("skipped sections should be nil: %+v", entries[0])
	}
}

func TestRecentOrdersNewestFirstAndLimits(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		r := fullReport("run-"+string(rune('a'+i)), "host", base.Add(time.Duration(i)*time.Minute))
		if err := s.Insert(r); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	entries, err := s.Recent("host", 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].RunID != "run-e" || entries[2].RunID != "run-c" {
		t.Fatalf("wrong order: %s, %s, %s", entries[0].RunID, entries[1].RunID, entries[2].RunID)
	}
}

func TestRecentFiltersByTarget(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	_ = s.Insert(fullReport("run-x", "host-a", now))
	_ = s.Insert(fullReport("run-y", "host-b", now.Add(time.Second)))

	entries, err := s.Recent("host-a", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "run-x" {
		t.Fatalf("filter failed: %+v", entries)
	}

	all, err := s.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d entries, want 2", len(all))
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	s := openTestStore(t)
	r := fullReport("run-dup", "host", time.Now())
	if err := s.Insert(r); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := s.Insert(r); err == nil {
		t.Fatal("second Insert with same id should fail")
	}
}
