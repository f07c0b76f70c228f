package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SteelMorgan/log-transporter/internal/domain"
)

const (
	defaultSSHPort   = 22
	defaultStatePath = "/var/lib/log-transporter/state.db"
)

// Config holds all configuration for the application
type Config struct {
	Sources     []SourceConfig `yaml:"sources"`
	Destination DestConfig     `yaml:"destination"`

	// Interval between cycles in seconds; 0 or absent means single-shot
	Interval int `yaml:"interval"`

	// StatePath is the transfer-state database location
	StatePath string `yaml:"state_path"`

	// Observability
	LogLevel string        `yaml:"log_level"`
	LogFile  string        `yaml:"log_file"`
	Tracing  TracingConfig `yaml:"tracing"`

	// Audit mirrors per-cycle transfer progress to ClickHouse
	Audit AuditConfig `yaml:"audit"`
}

// SourceConfig describes one source server and its tracked log files
type SourceConfig struct {
	Name     string   `yaml:"name"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	SSHKey   string   `yaml:"ssh_key"`
	LogPaths []string `yaml:"log_paths"`
}

// DestConfig describes the destination server
type DestConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	SSHKey   string `yaml:"ssh_key"`
	BasePath string `yaml:"base_path"`
}

// TracingConfig configures the optional OTLP tracer
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"`
}

// AuditConfig configures the optional ClickHouse progress mirror
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads and validates a YAML configuration file. Unknown fields are
// rejected so that typos fail at startup, before any cycle runs.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Sources {
		if c.Sources[i].Port == 0 {
			c.Sources[i].Port = defaultSSHPort
		}
	}
	if c.Destination.Port == 0 {
		c.Destination.Port = defaultSSHPort
	}
	if c.StatePath == "" {
		c.StatePath = defaultStatePath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Tracing.Protocol == "" {
		c.Tracing.Protocol = "grpc"
	}
	if c.Audit.Port == 0 {
		c.Audit.Port = 9000
	}
	if c.Audit.Database == "" {
		c.Audit.Database = "logs"
	}
	if c.Audit.Username == "" {
		c.Audit.Username = "default"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	names := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if _, ok := names[src.Name]; ok {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		names[src.Name] = struct{}{}

		if src.Host == "" {
			return fmt.Errorf("source %q: host is required", src.Name)
		}
		if src.Port <= 0 || src.Port > 65535 {
			return fmt.Errorf("source %q: port must be between 1 and 65535", src.Name)
		}
		if src.Username == "" {
			return fmt.Errorf("source %q: username is required", src.Name)
		}
		if src.SSHKey == "" {
			return fmt.Errorf("source %q: ssh_key is required", src.Name)
		}
		if len(src.LogPaths) == 0 {
			return fmt.Errorf("source %q: at least one log path is required", src.Name)
		}
		for _, p := range src.LogPaths {
			if p == "" {
				return fmt.Errorf("source %q: empty log path", src.Name)
			}
		}
	}

	if c.Destination.Host == "" {
		return fmt.Errorf("destination: host is required")
	}
	if c.Destination.Port <= 0 || c.Destination.Port > 65535 {
		return fmt.Errorf("destination: port must be between 1 and 65535")
	}
	if c.Destination.Username == "" {
		return fmt.Errorf("destination: username is required")
	}
	if c.Destination.SSHKey == "" {
		return fmt.Errorf("destination: ssh_key is required")
	}
	if c.Destination.BasePath == "" {
		return fmt.Errorf("destination: base_path is required")
	}

	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	if c.Audit.Enabled && c.Audit.Host == "" {
		return fmt.Errorf("audit: host is required when audit is enabled")
	}

	return nil
}

// SourceServers converts the configured sources to domain values
func (c *Config) SourceServers() []domain.SourceServer {
	servers := make([]domain.SourceServer, 0, len(c.Sources))
	for _, src := range c.Sources {
		servers = append(servers, domain.SourceServer{
			Name:     src.Name,
			Host:     src.Host,
			Port:     src.Port,
			Username: src.Username,
			KeyPath:  src.SSHKey,
			LogPaths: src.LogPaths,
		})
	}
	return servers
}

// DestServer converts the configured destination to a domain value
func (c *Config) DestServer() domain.DestServer {
	return domain.DestServer{
		Host:     c.Destination.Host,
		Port:     c.Destination.Port,
		Username: c.Destination.Username,
		KeyPath:  c.Destination.SSHKey,
		BasePath: c.Destination.BasePath,
	}
}

// IntervalDuration returns the cycle interval as a duration
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
