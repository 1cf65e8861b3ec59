package config

import (
	"fmt"
	"net"
	"os/user"
	"strconv"
	"strings"
)

// Target identifies the remote endpoint.
type Target struct {
	User string
	Host string
	Port int
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s", t.User, net.JoinHostPort(t.Host, strconv.Itoa(t.Port)))
}

// Addr returns the host:port dial address.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseTarget parses "[user@]host[:port]". A missing user defaults to the
// current user; a missing port defaults to 22.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("target must not be empty")
	}

	t := Target{Port: DefaultPort}

	switch parts := strings.Split(raw, "@"); len(parts) {
	case 1:
		u, err := user.Current()
		if err != nil {
			return Target{}, fmt.Errorf("no user in target and current user unknown: %w", err)
		}
		t.User = u.Username
	case 2:
		if parts[0] == "" {
			return Target{}, fmt.Errorf("invalid target %q: empty user", raw)
		}
		t.User = parts[0]
		raw = parts[1]
	default:
		return Target{}, fmt.Errorf("invalid target %q: must be [user@]host[:port]", raw)
	}

	switch parts := strings.Split(raw, ":"); len(parts) {
	case 1:
		t.Host = parts[0]
	case 2:
		t.Host = parts[0]
		port, err := strconv.Atoi(parts[1])
		if err != nil || port < 1 || port > 65535 {
			return Target{}, fmt.Errorf("invalid target port %q", parts[1])
		}
		t.Port = port
	default:
		return Target{}, fmt.Errorf("invalid target %q: must be [user@]host[:port]", raw)
	}

	if t.Host == "" {
		return Target{}, fmt.Errorf("invalid target: empty host")
	}
	return t, nil
}
