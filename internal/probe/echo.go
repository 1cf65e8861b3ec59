package probe

import (
	"context"
	"time"

	"github.com/sshping/sshping/internal/stats"
	"github.com/sshping/sshping/internal/util"
)

// echoAlphabet is the printable character source, cycled per round trip.
const echoAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

type readEvent struct {
	b   byte
	err error
}

// runEcho performs up to cfg.CharCount lock-step round trips over ch: write
// one character, wait for the same byte to come back, record the elapsed
// time. Round trips never overlap, so each sample isolates per-character
// latency.
//
// A per-character timeout terminates the stage early with a partial result
// and TimedOut set; it is not an error. A transport error or EOF while a
// round trip is outstanding is a ChannelError. Context cancellation aborts
// the stage with the context's error.
func runEcho(ctx context.Context, ch EchoChannel, cfg Config, logger util.Logger, progress ProgressFunc) (*EchoResult, error) {
	events := make(chan readEvent, 64)
	done := make(chan struct{})
	defer close(done)

	// The reader goroutine is the probe's view of the remote stream. It
	// lets the wait below observe echoed bytes, stream closure and the
	// timeout in a single select. On early return it stays blocked in Read
	// until the caller closes the channel; the wait is abandoned, not the
	// channel.
	go func() {
		buf := make([]byte, 512)
		for {
			n, err := ch.Read(buf)
			for i := 0; i < n; i++ {
				select {
				case events <- readEvent{b: buf[i]}:
				case <-done:
					return
				}
			}
			if err != nil {
				select {
				case events <- readEvent{err: err}:
				case <-done:
				}
				return
			}
		}
	}()

	collector := stats.NewCollector(cfg.CharCount)
	result := &EchoResult{Requested: cfg.CharCount}

	var timer *time.Timer
	if cfg.EchoTimeout > 0 {
		timer = time.NewTimer(cfg.EchoTimeout)
		defer timer.Stop()
	}

	write := [1]byte{}
	for i := 0; i < cfg.CharCount; i++ {
		c := echoAlphabet[i%len(echoAlphabet)]
		write[0] = c

		var timeout <-chan time.Time
		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(cfg.EchoTimeout)
			timeout = timer.C
		}

		start := time.Now()
		if _, err := ch.Write(write[:]); err != nil {
			return nil, &ChannelError{Op: "write", Err: err}
		}

		matched := false
		for !matched && !result.TimedOut {
			select {
			case ev := <-events:
				if ev.err != nil {
					// EOF before the run completed means the remote side
					// went away mid-test; the stream state is undefined.
					return nil, &ChannelError{Op: "read", Err: ev.err}
				}
				if ev.b == c {
					matched = true
					break
				}
				// PTY noise (prompt output, CR/LF translation). Skip it
				// without timing it.
				logger.Debug("echo: skipping unexpected byte",
					"got", ev.b, "want", c)
			case <-timeout:
				result.TimedOut = true
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if result.TimedOut {
			logger.Warn("echo: per-character timeout, stopping early",
				"sent", result.Sent, "requested", cfg.CharCount)
			break
		}

		collector.Add(time.Since(start))
		result.Sent++

		if progress != nil {
			progress(Progress{
				Stage:   StageEcho,
				Current: int64(result.Sent),
				Total:   int64(cfg.CharCount),
			})
		}
	}

	if summary, err := collector.Summarize(); err == nil {
		result.Latency = &summary
	}
	if result.Sent > 0 && result.Sent < 20 {
		logger.Warn("echo: few samples, latency figures are noisy",
			"sent", result.Sent)
	}
	return result, nil
}
