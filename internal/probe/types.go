// Package probe drives the measurement engine: a character-echo latency
// probe and a chunked upload/download throughput probe, sequenced over one
// exclusively-owned SSH session.
package probe

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sshping/sshping/internal/stats"
)

// EchoChannel is a duplex byte stream bound to a remote command that echoes
// its input. The probe owns the channel for the duration of the echo stage.
type EchoChannel interface {
	io.Reader
	io.Writer
	Close() error
}

// FileChannel is a path-addressed remote file store used by the speed stage.
type FileChannel interface {
	Create(path string) (io.WriteCloser, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}

// Session is an established remote session able to open measurement
// channels. Implemented by internal/transport over SSH, and by in-memory
// fakes in tests.
type Session interface {
	OpenEcho(ctx context.Context, command string) (EchoChannel, error)
	OpenFiles(ctx context.Context) (FileChannel, error)
	Close() error
}

// Dialer establishes a Session. The runner times this call and reports it
// as the SSH connect time.
type Dialer interface {
	Connect(ctx context.Context) (Session, error)
}

// Selection names the subset of tests to run.
type Selection int

const (
	SelectBoth Selection = iota
	SelectEcho
	SelectSpeed
)

func (s Selection) Echo() bool  { return s == SelectBoth || s == SelectEcho }
func (s Selection) Speed() bool { return s == SelectBoth || s == SelectSpeed }

func (s Selection) String() string {
	switch s {
	case SelectEcho:
		return "echo"
	case SelectSpeed:
		return "speed"
	default:
		return "both"
	}
}

// ParseSelection parses "echo", "speed" or "both".
func ParseSelection(raw string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "echo":
		return SelectEcho, nil
	case "speed":
		return SelectSpeed, nil
	case "", "both":
		return SelectBoth, nil
	default:
		return SelectBoth, fmt.Errorf("unknown test selection %q (must be echo, speed or both)", raw)
	}
}

// Config defines parameters for one measurement run.
type Config struct {
	// RunID labels the run; the CLI derives it from a UUID and uses it to
	// template the remote path.
	RunID string
	// Target is the display label of the remote endpoint (user@host:port).
	Target string
	// Tests selects the stages to run.
	Tests Selection
	// CharCount is the number of characters the echo stage sends.
	CharCount int
	// EchoCommand is the remote command that echoes stdin (default
	// "cat > /dev/null"; the PTY provides the echo).
	EchoCommand string
	// EchoTimeout bounds each individual round trip; zero disables it.
	EchoTimeout time.Duration
	// PayloadSize is the total bytes transferred per speed direction.
	PayloadSize int64
	// ChunkSize bounds per-write/per-read buffer sizes; must not exceed
	// PayloadSize.
	ChunkSize int64
	// RemotePath is the remote temp file used by the speed stage.
	RemotePath string
}

// Validate checks the configuration before any stage runs.
func (c Config) Validate() error {
	if c.Tests.Echo() {
		if c.CharCount <= 0 {
			return &ConfigError{Field: "char-count", Reason: "must be positive"}
		}
		if c.EchoCommand == "" {
			return &ConfigError{Field: "echo-cmd", Reason: "must not be empty"}
		}
		if c.EchoTimeout < 0 {
			return &ConfigError{Field: "echo-timeout", Reason: "must not be negative"}
		}
	}
	if c.Tests.Speed() {
		if c.PayloadSize <= 0 {
			return &ConfigError{Field: "size", Reason: "must be positive"}
		}
		if c.ChunkSize <= 0 {
			return &ConfigError{Field: "chunk-size", Reason: "must be positive"}
		}
		if c.ChunkSize > c.PayloadSize {
			return &ConfigError{Field: "chunk-size", Reason: "must not exceed payload size"}
		}
		if c.RemotePath == "" {
			return &ConfigError{Field: "remote-file", Reason: "must not be empty"}
		}
	}
	return nil
}

// EchoResult summarizes the echo stage. Latency is nil when no round trip
// completed before the per-character timeout fired.
type EchoResult struct {
	Requested int
	Sent      int
	TimedOut  bool
	Latency   *stats.Summary
}

// SpeedResult holds one direction of the speed stage.
type SpeedResult struct {
	Bytes   int64
	Elapsed time.Duration
}

// BytesPerSecond derives throughput; zero when elapsed is not strictly
// positive.
func (r SpeedResult) BytesPerSecond() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Bytes) / secs
}

// SpeedSummary pairs the two transfer directions.
type SpeedSummary struct {
	Upload   SpeedResult
	Download SpeedResult
}

// Report is the immutable result aggregate of a successful run. Echo and
// Speed are nil for stages that were not selected.
type Report struct {
	RunID       string
	Target      string
	StartedAt   time.Time
	ConnectTime time.Duration
	Echo        *EchoResult
	Speed       *SpeedSummary
}

// Progress describes the state of the stage currently executing.
type Progress struct {
	Stage   Stage
	Current int64
	Total   int64
	Detail  string
}

// ProgressFunc receives progress updates; it must be fast and must not
// block the measurement loop.
type ProgressFunc func(Progress)
