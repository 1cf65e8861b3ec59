package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/sshping/sshping/internal/util"
)

// settleQuiet is how long the remote must stay silent after the echo command
// is written before the channel is handed to the caller. Shell banners and
// the command's own echo arrive within this window on any sane link.
const settleQuiet = 500 * time.Millisecond

// settleMax caps the total settle wait so a chatty remote (motd loops,
// broken prompt) cannot stall the probe forever.
const settleMax = 5 * time.Second

// echoChannel is a remote shell with a PTY running an echo command. A pump
// goroutine moves stdout into a channel so reads can be abandoned on timeout
// without losing the stream.
type echoChannel struct {
	sess     *ssh.Session
	stdin    io.WriteCloser
	chunks   chan []byte
	pumpErr  chan error
	leftover []byte
	closed   chan struct{}
}

func openEchoChannel(ctx context.Context, client *ssh.Client, command string, logger util.Logger) (*echoChannel, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open shell session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm", 24, 80, modes); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.Shell(); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	ch := &echoChannel{
		sess:    sess,
		stdin:   stdin,
		chunks:  make(chan []byte, 16),
		pumpErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
	go ch.pump(stdout)

	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("start echo command: %w", err)
	}

	if err := ch.settle(ctx, logger); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func (c *echoChannel) pump(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.chunks <- chunk:
			case <-c.closed:
				return
			}
		}
		if err != nil {
			select {
			case c.pumpErr <- err:
			case <-c.closed:
			}
			return
		}
	}
}

// settle discards the shell banner and command echo, returning once the
// remote has been quiet for settleQuiet.
func (c *echoChannel) settle(ctx context.Context, logger util.Logger) error {
	deadline := time.NewTimer(settleMax)
	defer deadline.Stop()
	quiet := time.NewTimer(settleQuiet)
	defer quiet.Stop()

	discarded := 0
	for {
		select {
		case chunk := <-c.chunks:
			discarded += len(chunk)
			if !quiet.Stop() {
				<-quiet.C
			}
			quiet.Reset(settleQuiet)
		case err := <-c.pumpErr:
			return fmt.Errorf("remote shell closed during startup: %w", err)
		case <-quiet.C:
			logger.Debug("echo channel settled", "discarded", discarded)
			return nil
		case <-deadline.C:
			logger.Warn("remote output never went quiet, proceeding", "discarded", discarded)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *echoChannel) Read(p []byte) (int, error) {
	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}
	select {
	case chunk := <-c.chunks:
		n := copy(p, chunk)
		c.leftover = chunk[n:]
		return n, nil
	case err := <-c.pumpErr:
		return 0, err
	case <-c.closed:
		return 0, io.EOF
	}
}

func (c *echoChannel) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

func (c *echoChannel) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	close(c.closed)
	_ = c.stdin.Close()
	return c.sess.Close()
}
