package probe

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/sshping/sshping/internal/util"
)

// runSpeed uploads cfg.PayloadSize bytes to cfg.RemotePath in
// cfg.ChunkSize-sized chunks, then downloads them back, timing each phase
// wall-to-wall. The remote file is removed afterwards, including on
// failure; removal problems are logged and never fail the run.
//
// Peak memory is O(chunk size): payload content is generated chunk by chunk
// and never buffered whole. Phases share one remote path and never overlap.
func runSpeed(ctx context.Context, files FileChannel, cfg Config, logger util.Logger, progress ProgressFunc) (*SpeedSummary, error) {
	defer func() {
		if err := files.Remove(cfg.RemotePath); err != nil {
			logger.Warn("speed: remote cleanup failed",
				"path", cfg.RemotePath, "error", err)
		}
	}()

	upload, err := runUpload(ctx, files, cfg, progress)
	if err != nil {
		return nil, err
	}
	logger.Info("speed: upload complete",
		"bytes", upload.Bytes, "elapsed", upload.Elapsed)

	download, err := runDownload(ctx, files, cfg, progress)
	if err != nil {
		return nil, err
	}
	logger.Info("speed: download complete",
		"bytes", download.Bytes, "elapsed", download.Elapsed)

	return &SpeedSummary{Upload: upload, Download: download}, nil
}

func runUpload(ctx context.Context, files FileChannel, cfg Config, progress ProgressFunc) (SpeedResult, error) {
	w, err := files.Create(cfg.RemotePath)
	if err != nil {
		return SpeedResult{}, &TransferError{Direction: DirectionUpload, Err: err}
	}

	chunk := make([]byte, cfg.ChunkSize)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var sent int64
	start := time.Now()
	for sent < cfg.PayloadSize {
		if err := ctx.Err(); err != nil {
			_ = w.Close()
			return SpeedResult{}, err
		}
		n := cfg.ChunkSize
		if remaining := cfg.PayloadSize - sent; remaining < n {
			n = remaining
		}
		fillPrintable(chunk[:n], rng)
		if err := writeFull(w, chunk[:n]); err != nil {
			_ = w.Close()
			return SpeedResult{}, &TransferError{Direction: DirectionUpload, Err: err}
		}
		sent += n
		if progress != nil {
			progress(Progress{
				Stage:   StageSpeed,
				Current: sent,
				Total:   cfg.PayloadSize,
				Detail:  DirectionUpload.String(),
			})
		}
	}
	// Close flushes and acknowledges the final chunk; it belongs to the
	// measured phase.
	if err := w.Close(); err != nil {
		return SpeedResult{}, &TransferError{Direction: DirectionUpload, Err: err}
	}
	return SpeedResult{Bytes: sent, Elapsed: time.Since(start)}, nil
}

func runDownload(ctx context.Context, files FileChannel, cfg Config, progress ProgressFunc) (SpeedResult, error) {
	r, err := files.Open(cfg.RemotePath)
	if err != nil {
		return SpeedResult{}, &TransferError{Direction: DirectionDownload, Err: err}
	}
	defer r.Close()

	chunk := make([]byte, cfg.ChunkSize)

	var received int64
	start := time.Now()
	for received < cfg.PayloadSize {
		if err := ctx.Err(); err != nil {
			return SpeedResult{}, err
		}
		n := cfg.ChunkSize
		if remaining := cfg.PayloadSize - received; remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(r, chunk[:n]); err != nil {
			return SpeedResult{}, &TransferError{Direction: DirectionDownload, Err: err}
		}
		received += n
		if progress != nil {
			progress(Progress{
				Stage:   StageSpeed,
				Current: received,
				Total:   cfg.PayloadSize,
				Detail:  DirectionDownload.String(),
			})
		}
	}
	return SpeedResult{Bytes: received, Elapsed: time.Since(start)}, nil
}

// writeFull loops until buf is fully consumed, guarding against writers
// that return short counts without an error.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("write stalled: %w", io.ErrShortWrite)
		}
		buf = buf[n:]
	}
	return nil
}

// fillPrintable fills buf with printable ASCII (0x20..0x5f), the same
// payload shape interactive traffic has.
func fillPrintable(buf []byte, rng *rand.Rand) {
	for i := range buf {
		buf[i] = byte(rng.Intn(64)) + 0x20
	}
}
