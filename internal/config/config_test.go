package config_test

import (
	"io"
	"io/fs"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lc/mxroute/internal/config"
)

type ConfigTestSuite struct {
	suite.Suite
	fs       mockFS
	provider config.Provider
}

type mockFS struct {
	files map[string]string
}

func (m mockFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; !ok {
		return nil, os.ErrNotExist
	}
	return nil, nil
}

func (m mockFS) MkdirAll(_ string, _ os.FileMode) error {
	return nil
}

func (m mockFS) Open(path string) (*os.File, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	tmp, err := os.CreateTemp("", "mock-*") // caller cleans up in t.Cleanup
	if err != nil {
		return nil, err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, err
	}
	return tmp, nil
}

func (m mockFS) WriteFile(path string, content []byte, _ os.FileMode) error {
	m.files[path] = string(content)
	return nil
}

func (s *ConfigTestSuite) SetupTest() {
	s.fs = mockFS{
		files: make(map[string]string),
	}
	s.provider = config.NewWithPath(s.fs, "test/config.yaml")
}

func (s *ConfigTestSuite) TestLoadMissingFileReturnsDefaults() {
	cfg, err := s.provider.Load()

	s.NoError(err)
	s.Require().NotNil(cfg)
	s.True(cfg.Lookup.DNSEnabled)
	s.False(cfg.Lookup.NativeEnabled)
	s.Equal([]string{config.FamilyV4, config.FamilyV6}, cfg.Lookup.Families)
	s.True(cfg.Lookup.Randomize)
	s.Equal(config.DefaultDNSTimeout, cfg.DNS.Timeout)
	s.Equal(uint(config.DefaultDNSRetries), cfg.DNS.Retries)
}

func (s *ConfigTestSuite) TestLoadValidConfig() {
	s.fs.files["test/config.yaml"] = `
lookup:
  dns_enabled: true
  native_enabled: true
  families: ["ipv6", "ipv4"]
  randomize: true
  ignore_mx_errors: true
  defer_no_mx_address: true
dns:
  servers: ["127.0.0.53:53"]
  timeout: 3s
  retries: 2
local:
  proxy_addresses: ["192.0.2.10"]
`

	cfg, err := s.provider.Load()

	s.NoError(err)
	s.Require().NotNil(cfg)
	s.True(cfg.Lookup.NativeEnabled)
	s.Equal([]string{config.FamilyV6, config.FamilyV4}, cfg.Lookup.Families)
	s.True(cfg.Lookup.IgnoreMXErrors)
	s.True(cfg.Lookup.DeferNoMXAddress)
	s.Equal([]string{"127.0.0.53:53"}, cfg.DNS.Servers)
	s.Equal(3*time.Second, cfg.DNS.Timeout)
	s.Equal(uint(2), cfg.DNS.Retries)
	s.Equal([]string{"192.0.2.10"}, cfg.Local.ProxyAddresses)
}

func (s *ConfigTestSuite) TestLoadMalformedYAML() {
	s.fs.files["test/config.yaml"] = "lookup: ["

	cfg, err := s.provider.Load()

	s.Error(err)
	s.Nil(cfg)
}

func (s *ConfigTestSuite) TestLoadInvalidConfig() {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name: "no lookup mechanism",
			content: `
lookup:
  families: ["ipv4"]
dns:
  timeout: 5s
`,
		},
		{
			name: "no families",
			content: `
lookup:
  dns_enabled: true
dns:
  timeout: 5s
`,
		},
		{
			name: "unknown family",
			content: `
lookup:
  dns_enabled: true
  families: ["ipx"]
dns:
  timeout: 5s
`,
		},
		{
			name: "timeout too small",
			content: `
lookup:
  dns_enabled: true
  families: ["ipv4"]
dns:
  timeout: 100ms
`,
		},
		{
			name: "bad proxy address",
			content: `
lookup:
  dns_enabled: true
  families: ["ipv4"]
dns:
  timeout: 5s
local:
  proxy_addresses: ["not-an-address"]
`,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.fs.files["test/config.yaml"] = tc.content

			cfg, err := s.provider.Load()

			s.ErrorIs(err, config.ErrInvalidConfig)
			s.Nil(cfg)
		})
	}
}

func (s *ConfigTestSuite) TestProxyAddrs() {
	cfg := config.Default()
	cfg.Local.ProxyAddresses = []string{"192.0.2.10", "2001:db8::10"}

	addrs := cfg.ProxyAddrs()

	s.Equal([]netip.Addr{
		netip.MustParseAddr("192.0.2.10"),
		netip.MustParseAddr("2001:db8::10"),
	}, addrs)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
