// Package transport implements the probe collaborator interfaces over SSH:
// session establishment with an agent/identity/password auth ladder, a
// PTY-backed echo channel, and an SFTP-backed file channel.
package transport

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/sshping/sshping/internal/config"
	"github.com/sshping/sshping/internal/probe"
	"github.com/sshping/sshping/internal/util"
)

// SSHDialer establishes authenticated SSH sessions for the runner. The
// measured "connect time" covers TCP dial, handshake and authentication.
type SSHDialer struct {
	opts   config.Options
	logger util.Logger
}

func NewSSHDialer(opts config.Options, logger util.Logger) *SSHDialer {
	return &SSHDialer{opts: opts, logger: logger}
}

// Connect dials the target and authenticates, trying the agent first, then
// the identity file, then the password.
func (d *SSHDialer) Connect(ctx context.Context) (probe.Session, error) {
	methods, agentConn := d.authMethods()
	if len(methods) == 0 {
		return nil, fmt.Errorf("no usable authentication method (no agent, identity or password)")
	}

	cfg := &ssh.ClientConfig{
		User: d.opts.Target.User,
		Auth: methods,
		// The measurement tool connects to hosts the operator names
		// explicitly; host key verification is out of scope here.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.opts.SSHTimeout,
	}

	dialer := net.Dialer{Timeout: d.opts.SSHTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.opts.Target.Addr())
	if err != nil {
		closeQuiet(agentConn)
		return nil, fmt.Errorf("dial %s: %w", d.opts.Target.Addr(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, d.opts.Target.Addr(), cfg)
	if err != nil {
		closeQuiet(agentConn)
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	d.logger.Debug("ssh session established", "target", d.opts.Target.String())
	return &sshSession{
		client:    client,
		agentConn: agentConn,
		logger:    d.logger,
	}, nil
}

// authMethods assembles the ladder. The agent connection must outlive the
// handshake, so it is returned for the session to close.
func (d *SSHDialer) authMethods() ([]ssh.AuthMethod, net.Conn) {
	var methods []ssh.AuthMethod
	var agentConn net.Conn

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			d.logger.Warn("ssh agent unavailable", "error", err)
		} else {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if d.opts.Identity != "" {
		if signer, err := d.loadIdentity(); err != nil {
			d.logger.Warn("identity file unusable", "path", d.opts.Identity, "error", err)
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if d.opts.Password != "" {
		methods = append(methods, ssh.Password(d.opts.Password))
	}

	return methods, agentConn
}

func (d *SSHDialer) loadIdentity() (ssh.Signer, error) {
	key, err := os.ReadFile(config.ExpandTilde(d.opts.Identity))
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err == nil {
		return signer, nil
	}
	if _, ok := err.(*ssh.PassphraseMissingError); ok && d.opts.Password != "" {
		return ssh.ParsePrivateKeyWithPassphrase(key, []byte(d.opts.Password))
	}
	return nil, err
}

// sshSession adapts *ssh.Client to probe.Session.
type sshSession struct {
	client    *ssh.Client
	agentConn net.Conn
	sftpc     *sftp.Client
	logger    util.Logger
}

func (s *sshSession) OpenEcho(ctx context.Context, command string) (probe.EchoChannel, error) {
	return openEchoChannel(ctx, s.client, command, s.logger)
}

func (s *sshSession) OpenFiles(ctx context.Context) (probe.FileChannel, error) {
	c, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("open sftp subsystem: %w", err)
	}
	s.sftpc = c
	return &sftpFiles{client: c}, nil
}

func (s *sshSession) Close() error {
	if s.sftpc != nil {
		_ = s.sftpc.Close()
	}
	closeQuiet(s.agentConn)
	return s.client.Close()
}

func closeQuiet(c net.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
