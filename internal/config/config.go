// Package config carries the run configuration: CLI options, optional yaml
// profile defaults, target parsing and ~/.ssh/config resolution.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sshping/sshping/internal/probe"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort        = 22
	DefaultSSHTimeout  = 10 * time.Second
	DefaultCharCount   = 1000
	DefaultEchoCommand = "cat > /dev/null"
	DefaultPayloadSize = 8_000_000
	DefaultChunkSize   = 1_000_000
	// DefaultRemoteFile templates the run ID in for collision resistance.
	DefaultRemoteFile = "/tmp/sshping-{id}.dat"
)

// Options is the fully resolved run configuration.
type Options struct {
	Target     Target
	SSHConfig  string // path to ~/.ssh/config, "" disables resolution
	Identity   string // private key path
	Password   string
	SSHTimeout time.Duration

	Tests       probe.Selection
	CharCount   int
	EchoCommand string
	EchoTimeout time.Duration
	PayloadSize int64
	ChunkSize   int64
	RemoteFile  string

	// Output and diagnostics.
	HumanReadable bool
	Delimiter     string
	JSONOutput    bool
	KeyWait       bool
	Verbosity     int
	Preflight     bool
	GeoIPDB       string
	HistoryDB     string
	ListenAddr    string
}

// ProbeConfig derives the engine configuration for a run labeled runID. The
// remote path has its {id} token expanded so concurrent runs against the
// same host cannot collide.
func (o *Options) ProbeConfig(runID string) probe.Config {
	return probe.Config{
		RunID:       runID,
		Target:      o.Target.String(),
		Tests:       o.Tests,
		CharCount:   o.CharCount,
		EchoCommand: o.EchoCommand,
		EchoTimeout: o.EchoTimeout,
		PayloadSize: o.PayloadSize,
		ChunkSize:   o.ChunkSize,
		RemotePath:  ExpandRemotePath(o.RemoteFile, runID),
	}
}

// Validate checks option ranges the engine does not see.
func (o *Options) Validate() error {
	if o.Target.Host == "" {
		return &probe.ConfigError{Field: "target", Reason: "host must not be empty"}
	}
	if o.SSHTimeout <= 0 {
		return &probe.ConfigError{Field: "ssh-timeout", Reason: "must be positive"}
	}
	return o.ProbeConfig("probe").Validate()
}

// ExpandRemotePath substitutes the {id} token with runID. Paths without the
// token are used verbatim.
func ExpandRemotePath(path, runID string) string {
	return strings.ReplaceAll(path, "{id}", runID)
}

// Profile is the optional yaml defaults file. Set fields override built-in
// defaults; explicit flags override both.
type Profile struct {
	Tests       string   `yaml:"tests"`
	CharCount   *int     `yaml:"char_count"`
	EchoCommand string   `yaml:"echo_command"`
	EchoTimeout Duration `yaml:"echo_timeout"`
	PayloadSize Size     `yaml:"payload_size"`
	ChunkSize   Size     `yaml:"chunk_size"`
	RemoteFile  string   `yaml:"remote_file"`
	SSHTimeout  Duration `yaml:"ssh_timeout"`
	Identity    string   `yaml:"identity"`
	HistoryDB   string   `yaml:"history"`
	GeoIPDB     string   `yaml:"geoip_db"`
	ListenAddr  string   `yaml:"listen"`
}

// LoadProfile reads and parses a yaml profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Apply copies set profile fields into opts.
func (p *Profile) Apply(opts *Options) error {
	if p.Tests != "" {
		sel, err := probe.ParseSelection(p.Tests)
		if err != nil {
			return err
		}
		opts.Tests = sel
	}
	if p.CharCount != nil {
		opts.CharCount = *p.CharCount
	}
	if p.EchoCommand != "" {
		opts.EchoCommand = p.EchoCommand
	}
	if p.EchoTimeout != 0 {
		opts.EchoTimeout = time.Duration(p.EchoTimeout)
	}
	if p.PayloadSize != 0 {
		opts.PayloadSize = int64(p.PayloadSize)
	}
	if p.ChunkSize != 0 {
		opts.ChunkSize = int64(p.ChunkSize)
	}
	if p.RemoteFile != "" {
		opts.RemoteFile = p.RemoteFile
	}
	if p.SSHTimeout != 0 {
		opts.SSHTimeout = time.Duration(p.SSHTimeout)
	}
	if p.Identity != "" {
		opts.Identity = p.Identity
	}
	if p.HistoryDB != "" {
		opts.HistoryDB = p.HistoryDB
	}
	if p.GeoIPDB != "" {
		opts.GeoIPDB = p.GeoIPDB
	}
	if p.ListenAddr != "" {
		opts.ListenAddr = p.ListenAddr
	}
	return nil
}

// Duration is a yaml duration accepting either bare seconds or Go duration
// strings ("2.5", "500ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
}

// Size is a yaml byte count accepting bare numbers or unit suffixes
// ("8mb", "500kb").
type Size int64

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("size must be a scalar")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseSize(raw)
	if err != nil {
		return err
	}
	*s = Size(parsed)
	return nil
}

// ParseSize parses a human-readable size string to bytes. Supports bare
// numbers and SI suffixes kb/mb/gb (and k/m/g), case insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("size is empty")
	}

	multiplier := int64(1)
	numStr := s
	switch {
	case strings.HasSuffix(s, "kb"):
		multiplier, numStr = 1_000, s[:len(s)-2]
	case strings.HasSuffix(s, "mb"):
		multiplier, numStr = 1_000_000, s[:len(s)-2]
	case strings.HasSuffix(s, "gb"):
		multiplier, numStr = 1_000_000_000, s[:len(s)-2]
	case strings.HasSuffix(s, "k"):
		multiplier, numStr = 1_000, s[:len(s)-1]
	case strings.HasSuffix(s, "m"):
		multiplier, numStr = 1_000_000, s[:len(s)-1]
	case strings.HasSuffix(s, "g"):
		multiplier, numStr = 1_000_000_000, s[:len(s)-1]
	}

	numStr = strings.TrimSpace(numStr)
	if numStr == "" {
		return 0, fmt.Errorf("invalid size value: %q", s)
	}
	var value float64
	if _, err := fmt.Sscanf(numStr, "%f", &value); err != nil {
		return 0, fmt.Errorf("invalid size value: %q", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("size cannot be negative: %q", s)
	}
	return int64(value * float64(multiplier)), nil
}
