package probe

import (
	"context"
	"time"

	"github.com/sshping/sshping/internal/util"
)

// Stage identifies a step of the run state machine:
// Idle -> Connect -> (Echo)? -> (Speed)? -> Done.
type Stage int

const (
	StageIdle Stage = iota
	StageConnect
	StageEcho
	StageSpeed
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageConnect:
		return "connect"
	case StageEcho:
		return "echo"
	case StageSpeed:
		return "speed"
	case StageDone:
		return "done"
	default:
		return "idle"
	}
}

// nextStage is the single transition function of the run state machine.
// Skipped stages are never entered, so they cannot run with degenerate
// inputs.
func nextStage(cur Stage, sel Selection) Stage {
	switch cur {
	case StageIdle:
		return StageConnect
	case StageConnect:
		if sel.Echo() {
			return StageEcho
		}
		if sel.Speed() {
			return StageSpeed
		}
		return StageDone
	case StageEcho:
		if sel.Speed() {
			return StageSpeed
		}
		return StageDone
	default:
		return StageDone
	}
}

// Runner sequences connect, echo and speed over one exclusively-owned
// session and assembles the Report.
type Runner struct {
	dialer   Dialer
	cfg      Config
	logger   util.Logger
	progress ProgressFunc
}

// NewRunner builds a runner. logger must not be nil; pass util.NopLogger()
// to discard output. progress may be nil.
func NewRunner(dialer Dialer, cfg Config, logger util.Logger, progress ProgressFunc) *Runner {
	return &Runner{dialer: dialer, cfg: cfg, logger: logger, progress: progress}
}

// Run executes the selected stages. On any failure it returns a nil Report
// and a *StageError naming the failing stage; the echo probe's own
// per-character timeout is a success, not a failure. The Report is built
// exactly once, after every selected stage completed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     r.cfg.RunID,
		Target:    r.cfg.Target,
		StartedAt: time.Now(),
	}

	var session Session
	defer func() {
		if session != nil {
			_ = session.Close()
		}
	}()

	for stage := nextStage(StageIdle, r.cfg.Tests); stage != StageDone; stage = nextStage(stage, r.cfg.Tests) {
		switch stage {
		case StageConnect:
			r.logger.Info("connecting", "target", r.cfg.Target)
			start := time.Now()
			s, err := r.dialer.Connect(ctx)
			if err != nil {
				return nil, &StageError{Stage: stage, Err: &ConnectError{Err: err}}
			}
			session = s
			report.ConnectTime = time.Since(start)
			r.logger.Info("connected", "elapsed", report.ConnectTime)

		case StageEcho:
			r.logger.Info("running echo test",
				"chars", r.cfg.CharCount, "command", r.cfg.EchoCommand)
			ch, err := session.OpenEcho(ctx, r.cfg.EchoCommand)
			if err != nil {
				return nil, &StageError{Stage: stage, Err: &ChannelError{Op: "open", Err: err}}
			}
			result, err := runEcho(ctx, ch, r.cfg, r.logger, r.progress)
			_ = ch.Close()
			if err != nil {
				return nil, &StageError{Stage: stage, Err: err}
			}
			report.Echo = result

		case StageSpeed:
			r.logger.Info("running speed test",
				"size", r.cfg.PayloadSize, "chunk", r.cfg.ChunkSize,
				"path", r.cfg.RemotePath)
			files, err := session.OpenFiles(ctx)
			if err != nil {
				return nil, &StageError{Stage: stage, Err: &TransferError{Direction: DirectionUpload, Err: err}}
			}
			summary, err := runSpeed(ctx, files, r.cfg, r.logger, r.progress)
			if err != nil {
				return nil, &StageError{Stage: stage, Err: err}
			}
			report.Speed = summary
		}
	}

	return report, nil
}
