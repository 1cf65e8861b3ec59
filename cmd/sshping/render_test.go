package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sshping/sshping/internal/probe"
	"github.com/sshping/sshping/internal/stats"
	"github.com/sshping/sshping/internal/util"
)

func sampleReport() *probe.Report {
	return &probe.Report{
		RunID:       "run-1",
		Target:      "alice@example.com:22",
		StartedAt:   time.Now(),
		ConnectTime: 223 * time.Millisecond,
		Echo: &probe.EchoResult{
			Requested: 1000,
			Sent:      1000,
			Latency: &stats.Summary{
				Count:  1000,
				Mean:   12 * time.Millisecond,
				Std:    2 * time.Millisecond,
				Median: 11 * time.Millisecond,
				Min:    9 * time.Millisecond,
				Max:    40 * time.Millisecond,
			},
		},
		Speed: &probe.SpeedSummary{
			Upload:   probe.SpeedResult{Bytes: 8_000_000, Elapsed: 2 * time.Second},
			Download: probe.SpeedResult{Bytes: 8_000_000, Elapsed: time.Second},
		},
	}
}

func TestRenderReportSections(t *testing.T) {
	var buf bytes.Buffer
	renderReport(&buf, sampleReport(), util.NewFormatter(true, ""), false)
	out := buf.String()

	for _, want := range []string{
		"ssh-Login-Time:",
		"Minimum-Latency:",
		"Median-Latency:",
		"Average-Latency:",
		"Maximum-Latency:",
		"Echo-Count:      1000",
		"Transfer-Size:",
		"Upload-Rate:",
		"Download-Rate:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Echo-Timed-Out") {
		t.Fatalf("unexpected timeout line:\n%s", out)
	}
}

func TestRenderReportSkipsMissingSections(t *testing.T) {
	r := sampleReport()
	r.Speed = nil

	var buf bytes.Buffer
	renderReport(&buf, r, util.NewFormatter(true, ""), false)
	out := buf.String()

	if strings.Contains(out, "Upload-Rate") || strings.Contains(out, "Download-Rate") {
		t.Fatalf("speed section rendered for echo-only run:\n%s", out)
	}
}

func TestRenderReportMarksTimeout(t *testing.T) {
	r := sampleReport()
	r.Echo.Sent = 137
	r.Echo.TimedOut = true

	var buf bytes.Buffer
	renderReport(&buf, r, util.NewFormatter(true, ""), false)

	if !strings.Contains(buf.String(), "after 137 of 1000 characters") {
		t.Fatalf("timeout line missing:\n%s", buf.String())
	}
}

func TestRenderReportJSON(t *testing.T) {
	var buf bytes.Buffer
	renderReport(&buf, sampleReport(), util.NewFormatter(false, ""), true)

	var decoded probe.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if decoded.RunID != "run-1" || decoded.Echo == nil || decoded.Speed == nil {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestProgressLine(t *testing.T) {
	line := progressLine(probe.Progress{Stage: probe.StageEcho, Current: 500, Total: 1000}, 20)
	if !strings.Contains(line, "[echo]") || !strings.Contains(line, "50%") || !strings.Contains(line, "(500/1000)") {
		t.Fatalf("line = %q", line)
	}

	line = progressLine(probe.Progress{Stage: probe.StageConnect}, 20)
	if line != "[connect]" {
		t.Fatalf("line = %q", line)
	}

	line = progressLine(probe.Progress{Stage: probe.StageSpeed, Detail: "upload", Current: 12, Total: 8}, 20)
	if !strings.Contains(line, "[speed upload]") || !strings.Contains(line, "100%") {
		t.Fatalf("line = %q", line)
	}
}
