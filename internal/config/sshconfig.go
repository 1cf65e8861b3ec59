package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// ResolveSSHConfig fills options from the user's SSH config file, matching
// against the host alias given on the command line. HostName rewrites the
// dial host; User, Port and IdentityFile only fill values the caller left
// unset, so explicit flags keep precedence. A missing file is not an error.
func ResolveSSHConfig(opts *Options, explicitUser, explicitPort bool) error {
	path := ExpandTilde(opts.SSHConfig)
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ssh config: %w", err)
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return fmt.Errorf("parse ssh config %s: %w", path, err)
	}

	alias := opts.Target.Host

	if hostname, err := cfg.Get(alias, "HostName"); err == nil && hostname != "" {
		opts.Target.Host = hostname
	}
	if !explicitUser {
		if user, err := cfg.Get(alias, "User"); err == nil && user != "" {
			opts.Target.User = user
		}
	}
	if !explicitPort {
		if port, err := cfg.Get(alias, "Port"); err == nil && port != "" {
			if n, convErr := strconv.Atoi(port); convErr == nil {
				opts.Target.Port = n
			}
		}
	}
	if opts.Identity == "" {
		// Get falls back to the library's built-in default when the file
		// has no IdentityFile directive; only honor real directives.
		if identity, err := cfg.Get(alias, "IdentityFile"); err == nil &&
			identity != "" && identity != ssh_config.Default("IdentityFile") {
			opts.Identity = ExpandTilde(identity)
		}
	}
	return nil
}

// ExpandTilde expands a leading ~/ to the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
