package clientcli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const DefaultEndpoint = "http://localhost:8080"

// Profile is a saved server connection.
type Profile struct {
	Name     string `yaml:"name" json:"name"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Token    string `yaml:"token,omitempty" json:"token,omitempty"`
	Default  bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

// ConfigFile is the on-disk list of profiles.
type ConfigFile struct {
	Profiles []Profile `yaml:"profiles"`
}

func (c *ConfigFile) index(name string) int {
	_, i, _ := lo.FindIndexOf(c.Profiles, func(p Profile) bool { return p.Name == name })
	return i
}

// GetProfile returns the named profile, or the default one when name is empty.
func (c *ConfigFile) GetProfile(name string) (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if name == "" {
		return c.GetDefaultProfile()
	}

	i := c.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return &c.Profiles[i], nil
}

// GetDefaultProfile returns the profile marked default, falling back to the
// first one.
func (c *ConfigFile) GetDefaultProfile() (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	_, i, ok := lo.FindIndexOf(c.Profiles, func(p Profile) bool { return p.Default })
	if !ok {
		i = 0
	}
	return &c.Profiles[i], nil
}

// DefaultName is the name GetDefaultProfile resolves to, or "" with no profiles.
func (c *ConfigFile) DefaultName() string {
	p, err := c.GetDefaultProfile()
	if err != nil {
		return ""
	}
	return p.Name
}

// Upsert adds p, or replaces the profile with the same name. It reports
// whether an existing profile was replaced. A default p clears the flag on
// every other profile.
func (c *ConfigFile) Upsert(p Profile) bool {
	if p.Default {
		for i := range c.Profiles {
			c.Profiles[i].Default = false
		}
	}

	if i := c.index(p.Name); i >= 0 {
		c.Profiles[i] = p
		return true
	}
	c.Profiles = append(c.Profiles, p)
	return false
}

func (c *ConfigFile) RemoveProfile(name string) error {
	i := c.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
	return nil
}

func (c *ConfigFile) SetDefault(name string) error {
	if c.index(name) < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	for i := range c.Profiles {
		c.Profiles[i].Default = c.Profiles[i].Name == name
	}
	return nil
}

func (c *ConfigFile) ProfileNames() []string {
	return lo.Map(c.Profiles, func(p Profile, _ int) string { return p.Name })
}

// Save writes the profiles to path with owner-only permissions, creating the
// parent directory.
func (c *ConfigFile) Save(path string) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided profile file
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return &cfg, nil
}

// DefaultConfigPath returns ~/.ferry/profiles.yaml, or "" without a home
// directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ferry", "profiles.yaml")
}

// Config is a resolved server connection.
type Config struct {
	Endpoint string
	Token    string
}

// WithDefaults returns a copy with DefaultEndpoint filled in and any trailing
// slash removed.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	return &cfg
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidEndpoint
	}
	return nil
}

func ConfigFromProfile(p *Profile) *Config {
	if p == nil {
		return &Config{}
	}
	return &Config{Endpoint: p.Endpoint, Token: p.Token}
}

func ConfigFromEnv() *Config {
	return &Config{
		Endpoint: os.Getenv("FERRY_ENDPOINT"),
		Token:    os.Getenv("FERRY_TOKEN"),
	}
}

func ProfileFromEnv() string {
	return os.Getenv("FERRY_PROFILE")
}

// MergeConfig layers configs left to right. Empty fields never override.
func MergeConfig(configs ...*Config) *Config {
	result := &Config{}
	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		result.Endpoint = lo.CoalesceOrEmpty(cfg.Endpoint, result.Endpoint)
		result.Token = lo.CoalesceOrEmpty(cfg.Token, result.Token)
	}
	return result
}
