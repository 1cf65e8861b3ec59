package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sshping/sshping/internal/config"
	"github.com/sshping/sshping/internal/control"
	"github.com/sshping/sshping/internal/history"
	"github.com/sshping/sshping/internal/probe"
	"github.com/sshping/sshping/internal/util"
)

// buildProgress composes the terminal progress line with the optional status
// server observer. Updates are rate limited so a fast echo loop does not
// spend its time painting the terminal.
func buildProgress(noProgress bool, srv *control.Server) probe.ProgressFunc {
	var lastUpdate time.Time
	width := util.TerminalWidth(80)
	return func(p probe.Progress) {
		if srv != nil {
			srv.Observe(p)
		}
		if noProgress {
			return
		}
		done := p.Total > 0 && p.Current >= p.Total
		if !done && time.Since(lastUpdate) < 100*time.Millisecond {
			return
		}
		lastUpdate = time.Now()

		line := progressLine(p, 20)
		if len(line) > width-1 {
			line = line[:width-1]
		}
		fmt.Printf("\r%s\033[K", line)
	}
}

func progressLine(p probe.Progress, barWidth int) string {
	label := p.Stage.String()
	if p.Detail != "" {
		label += " " + p.Detail
	}
	if p.Total <= 0 {
		return fmt.Sprintf("[%s]", label)
	}
	ratio := float64(p.Current) / float64(p.Total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(barWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("[%s] %s %3.0f%% (%d/%d)", label, bar, ratio*100, p.Current, p.Total)
}

// renderReport prints the result sections, skipping tests that did not run.
func renderReport(w io.Writer, r *probe.Report, form *util.Formatter, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(r)
		return
	}

	fmt.Fprintf(w, "ssh-Login-Time:  %s\n", form.Duration(r.ConnectTime))

	if e := r.Echo; e != nil {
		if l := e.Latency; l != nil {
			fmt.Fprintf(w, "Minimum-Latency: %s\n", form.Duration(l.Min))
			fmt.Fprintf(w, "Median-Latency:  %s\n", form.Duration(l.Median))
			fmt.Fprintf(w, "Average-Latency: %s\n", form.Duration(l.Mean))
			fmt.Fprintf(w, "Average-Deviation: %s\n", form.Duration(l.Std))
			fmt.Fprintf(w, "Maximum-Latency: %s\n", form.Duration(l.Max))
			fmt.Fprintf(w, "Echo-Count:      %d\n", l.Count)
		} else {
			fmt.Fprintf(w, "Echo-Count:      0\n")
		}
		if e.TimedOut {
			fmt.Fprintf(w, "Echo-Timed-Out:  after %d of %d characters\n", e.Sent, e.Requested)
		}
	}

	if s := r.Speed; s != nil {
		up := s.Upload.BytesPerSecond()
		down := s.Download.BytesPerSecond()
		fmt.Fprintf(w, "Transfer-Size:   %s\n", form.Bytes(s.Upload.Bytes))
		fmt.Fprintf(w, "Upload-Rate:     %s (%s)\n", form.Rate(up), util.FormatBitsPerSecond(8*up))
		fmt.Fprintf(w, "Download-Rate:   %s (%s)\n", form.Rate(down), util.FormatBitsPerSecond(8*down))
	}
}

// printRecent lists archived runs, newest first.
func printRecent(dbPath, target string, limit int, form *util.Formatter) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// A bare host filter is normalized to the canonical user@host:port form
	// runs are archived under; anything unparsable is matched verbatim.
	if target != "" {
		if t, err := config.ParseTarget(target); err == nil {
			target = t.String()
		}
	}

	entries, err := store.Recent(target, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no archived runs")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %s  login %s", e.StartedAt.Format(time.RFC3339), e.Target, form.Duration(e.ConnectTime))
		if e.Echo != nil {
			fmt.Printf("  echo median %s (%d)", form.Duration(e.Echo.Median), e.Echo.Count)
		}
		if e.Upload != nil && e.Upload.Elapsed > 0 {
			up := float64(e.Upload.Bytes) / e.Upload.Elapsed.Seconds()
			fmt.Printf("  up %s", form.Rate(up))
		}
		if e.Download != nil && e.Download.Elapsed > 0 {
			down := float64(e.Download.Bytes) / e.Download.Elapsed.Seconds()
			fmt.Printf("  down %s", form.Rate(down))
		}
		fmt.Println()
	}
	return nil
}
