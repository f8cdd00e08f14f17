package nnpcore

import (
	"fmt"

	"github.com/spf13/viper"
)

// StoreBackend selects which Store implementation a process wires up.
type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendFile   StoreBackend = "file"
)

// Config is nnpshare's process configuration, loaded from YAML (or env,
// via viper's automatic env binding) the way headscale's config.go loads
// hscontrol.Config.
type Config struct {
	// Role is "backend" or "frontend"; cmd/nnpshare overwrites it to match
	// the subcommand being run (serve or request).
	Role string `mapstructure:"role"`

	// DomainID stands in for a guest domain id: the backend's own id, or
	// the id a frontend registers itself under.
	DomainID int `mapstructure:"domain_id"`

	// Model is the model a frontend requests at startup.
	Model string `mapstructure:"model"`

	Store struct {
		Backend StoreBackend `mapstructure:"backend"`
		// Dir is the filesystem root for StoreBackendFile.
		Dir string `mapstructure:"dir"`
	} `mapstructure:"store"`

	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`

	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	Admin struct {
		DatabasePath string `mapstructure:"database_path"`
	} `mapstructure:"admin"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("role", "backend")
	v.SetDefault("domain_id", 0)
	v.SetDefault("store.backend", string(StoreBackendMemory))
	v.SetDefault("store.dir", "/tmp/nnpshare-store")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", "127.0.0.1:9090")
	v.SetDefault("admin.database_path", "nnpshare.sqlite")
}

// LoadConfig reads configuration from path (if non-empty) plus
// NNPSHARE_-prefixed environment variables, the way headscale's config
// loader layers a YAML file under env overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("NNPSHARE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config %q: %v", ErrConfigurationFatal, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", ErrConfigurationFatal, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would never produce a working
// backend or frontend, per §7's ConfigurationFatal kind.
func (c *Config) Validate() error {
	switch c.Role {
	case "backend", "frontend":
	default:
		return fmt.Errorf("%w: role must be \"backend\" or \"frontend\", got %q", ErrConfigurationFatal, c.Role)
	}

	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendFile:
	default:
		return fmt.Errorf("%w: store.backend must be \"memory\" or \"file\", got %q", ErrConfigurationFatal, c.Store.Backend)
	}

	if c.Role == "frontend" && c.Model != "" {
		if err := validateModelName(c.Model); err != nil {
			return fmt.Errorf("%w: %v", ErrConfigurationFatal, err)
		}
	}

	return nil
}
