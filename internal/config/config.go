// Package config loads the warren process configuration: which
// hypervisor hosts may be targeted, where the definition templates and
// load-average cache live, and the operational defaults for
// provisioning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "90s" or "5m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the complete warren process configuration.
type Config struct {
	// DefaultHost is targeted when a request names no host.
	DefaultHost string `yaml:"default_host"`
	// ValidHosts is the host allow-list; requests naming any other
	// host are rejected before anything is contacted.
	ValidHosts []string `yaml:"valid_hosts"`
	// SSHUser is the login user for remote command execution. Empty
	// defers to the operator's ssh configuration.
	SSHUser string `yaml:"ssh_user,omitempty"`

	// MountPoint is the fixed staging path used for loop-mounted
	// identity injection on every host.
	MountPoint string `yaml:"mount_point"`
	// PoolTemplate is the storage pool definition template file.
	PoolTemplate string `yaml:"pool_template"`
	// TemplateDir holds the per-VM-template domain definition files,
	// one "<name>.xml" per template identifier.
	TemplateDir string `yaml:"template_dir"`

	// UptimeCache is the YAML file of per-host load averages written
	// by the hosts' cron jobs.
	UptimeCache string `yaml:"uptime_cache"`
	// UptimeCacheTTL bounds the staleness of served load averages.
	UptimeCacheTTL Duration `yaml:"uptime_cache_ttl,omitempty"`
	// TemplateCacheTTL bounds how long template files stay cached.
	TemplateCacheTTL Duration `yaml:"template_cache_ttl,omitempty"`

	// RemoteTimeout bounds each remote command and libvirt call.
	RemoteTimeout Duration `yaml:"remote_timeout,omitempty"`
	// ConnectTimeout bounds opening a libvirt connection.
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`

	// DefaultSnapshot is cloned when a request names no source.
	DefaultSnapshot string `yaml:"default_snapshot,omitempty"`
	// RollbackOnFailure enables reverse-order teardown of created
	// artifacts when a provisioning step fails.
	RollbackOnFailure *bool `yaml:"rollback_on_failure,omitempty"`
}

// Defaults applied by Normalize.
const (
	DefaultMountPoint       = "/mnt/warren"
	DefaultUptimeCacheTTL   = 5 * time.Minute
	DefaultTemplateCacheTTL = time.Hour
	DefaultRemoteTimeout    = 2 * time.Minute
	DefaultConnectTimeout   = 30 * time.Second
)

// LoadFromFile reads, normalizes and validates a configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Normalize fills unset fields with their defaults. The local hostname
// joins the allow-list implicitly, matching how a single-host setup is
// expected to run with an empty config.
func (c *Config) Normalize() {
	if c.DefaultHost == "" {
		if hn, err := os.Hostname(); err == nil {
			c.DefaultHost = hn
		}
	}
	if !c.ValidHost(c.DefaultHost) && c.DefaultHost != "" {
		c.ValidHosts = append(c.ValidHosts, c.DefaultHost)
	}
	if c.MountPoint == "" {
		c.MountPoint = DefaultMountPoint
	}
	if c.UptimeCacheTTL == 0 {
		c.UptimeCacheTTL = Duration(DefaultUptimeCacheTTL)
	}
	if c.TemplateCacheTTL == 0 {
		c.TemplateCacheTTL = Duration(DefaultTemplateCacheTTL)
	}
	if c.RemoteTimeout == 0 {
		c.RemoteTimeout = Duration(DefaultRemoteTimeout)
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = Duration(DefaultConnectTimeout)
	}
	if c.RollbackOnFailure == nil {
		enabled := true
		c.RollbackOnFailure = &enabled
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if len(c.ValidHosts) == 0 {
		return fmt.Errorf("valid_hosts must list at least one host")
	}
	if c.PoolTemplate == "" {
		return fmt.Errorf("pool_template is required")
	}
	if c.TemplateDir == "" {
		return fmt.Errorf("template_dir is required")
	}
	seen := make(map[string]bool, len(c.ValidHosts))
	for _, h := range c.ValidHosts {
		if h == "" {
			return fmt.Errorf("valid_hosts must not contain empty entries")
		}
		if seen[h] {
			return fmt.Errorf("duplicate host %q in valid_hosts", h)
		}
		seen[h] = true
	}
	return nil
}

// ValidHost reports whether host is on the allow-list.
func (c *Config) ValidHost(host string) bool {
	for _, h := range c.ValidHosts {
		if h == host {
			return true
		}
	}
	return false
}

// CheckHosts verifies a requested host set: no more hosts than the
// allow-list holds, and every one present on it.
func (c *Config) CheckHosts(hosts ...string) error {
	if len(hosts) > len(c.ValidHosts) {
		return fmt.Errorf("requested %d hosts but only %d are configured", len(hosts), len(c.ValidHosts))
	}
	for _, h := range hosts {
		if !c.ValidHost(h) {
			return fmt.Errorf("host %q is not a valid host", h)
		}
	}
	return nil
}

// TemplatePath resolves a VM template identifier to its definition
// file under TemplateDir.
func (c *Config) TemplatePath(template string) string {
	return filepath.Join(c.TemplateDir, template+".xml")
}

// Rollback reports whether failed runs tear down created artifacts.
func (c *Config) Rollback() bool {
	return c.RollbackOnFailure == nil || *c.RollbackOnFailure
}
