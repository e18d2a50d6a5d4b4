// Package config provides configuration loading and validation for mxroute.
// It handles reading configuration from files, providing defaults, and ensuring
// all required settings are properly set.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/mxroute/internal/filesys"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
)

const (
	// DefaultConfigPath is the default path for the configuration file.
	DefaultConfigPath = ".mxroute/config.yaml"
	// DefaultDNSTimeout is the default timeout for a single DNS query.
	DefaultDNSTimeout = 5 * time.Second
	// DefaultDNSRetries is the default number of extra attempts per DNS query.
	DefaultDNSRetries = 1

	// FamilyV4 and FamilyV6 are the accepted values for lookup.families.
	FamilyV4 = "ipv4"
	FamilyV6 = "ipv6"
)

// Config holds the application configuration.
type Config struct {
	Lookup LookupConfig `yaml:"lookup"`
	DNS    DNSConfig    `yaml:"dns"`
	Local  LocalConfig  `yaml:"local"`
}

// LookupConfig controls how destination addresses are resolved.
type LookupConfig struct {
	// DNSEnabled enables MX and address lookups via the DNS.
	DNSEnabled bool `yaml:"dns_enabled"`
	// NativeEnabled enables the platform name service (hosts file, nsswitch)
	// as a lookup mechanism, either standalone or as a second chance after a
	// DNS not-found.
	NativeEnabled bool `yaml:"native_enabled"`
	// Families is the ordered list of acceptable address families
	// ("ipv4", "ipv6").
	Families []string `yaml:"families"`
	// Randomize shuffles equal-preference candidates to spread load.
	Randomize bool `yaml:"randomize"`
	// IgnoreMXErrors falls back to direct host resolution when the MX
	// lookup itself fails.
	IgnoreMXErrors bool `yaml:"ignore_mx_errors"`
	// DeferNoMXAddress defers (rather than silently accepting an empty
	// candidate list) when no MX host has a valid address record.
	DeferNoMXAddress bool `yaml:"defer_no_mx_address"`
}

// DNSConfig holds settings for the DNS client.
type DNSConfig struct {
	// Servers lists upstream resolvers as host:port. Empty means the
	// client's built-in default.
	Servers []string `yaml:"servers"`
	Timeout time.Duration `yaml:"timeout"`
	Retries uint          `yaml:"retries"`
}

// LocalConfig describes how the local presence set is assembled.
type LocalConfig struct {
	// ProxyAddresses are addresses a proxy accepts mail on for this system,
	// counted as "self" during loop detection.
	ProxyAddresses []string `yaml:"proxy_addresses"`
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
}

// Verify FSProvider implements Provider interface.
var _ Provider = (*FSProvider)(nil)

// New creates a new configuration provider using the default configuration path.
// It uses the OS filesystem and the user's home directory to locate the
// configuration file. If the home directory cannot be determined, it falls
// back to the current directory.
func New() Provider {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	return NewWithPath(filesys.OS(), filepath.Join(home, DefaultConfigPath))
}

// NewWithPath creates a new provider with a specific config path.
// It allows specifying both the filesystem implementation and the path to use.
func NewWithPath(fs filesys.ReadWriteFS, path string) Provider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns a default configuration with preset values.
// This is used when no configuration file exists.
func Default() *Config {
	return &Config{
		Lookup: LookupConfig{
			DNSEnabled: true,
			Families:   []string{FamilyV4, FamilyV6},
			Randomize:  true,
		},
		DNS: DNSConfig{
			Timeout: DefaultDNSTimeout,
			Retries: DefaultDNSRetries,
		},
	}
}

// Load loads the configuration from the specified path.
func (p *FSProvider) Load() (*Config, error) {
	_ = p.ensureConfigDir()

	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks the configuration to ensure all required fields are set.
func (c *Config) Validate() error {
	if !c.Lookup.DNSEnabled && !c.Lookup.NativeEnabled {
		return errors.New("at least one of dns_enabled and native_enabled must be set")
	}
	if len(c.Lookup.Families) == 0 {
		return errors.New("families cannot be empty")
	}
	for _, f := range c.Lookup.Families {
		if f != FamilyV4 && f != FamilyV6 {
			return fmt.Errorf("unknown address family %q", f)
		}
	}
	if c.DNS.Timeout < time.Second {
		return errors.New("DNS timeout must be at least 1 second")
	}
	for _, a := range c.Local.ProxyAddresses {
		if _, err := netip.ParseAddr(a); err != nil {
			return fmt.Errorf("proxy address %q: %v", a, err)
		}
	}
	return nil
}

// ProxyAddrs returns the configured proxy addresses in parsed form.
// Validate must have been called first; unparsable entries are skipped.
func (c *Config) ProxyAddrs() []netip.Addr {
	addrs := make([]netip.Addr, 0, len(c.Local.ProxyAddresses))
	for _, a := range c.Local.ProxyAddresses {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

func (p *FSProvider) ensureConfigDir() error {
	dir := filepath.Dir(p.path)
	if _, err := p.fs.Stat(dir); os.IsNotExist(err) {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return &cfg, nil
}
