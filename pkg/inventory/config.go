package inventory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the inventory core.
type Config struct {
	// URNPrefix is prepended to every generated URN.
	URNPrefix string `yaml:"urnPrefix"`
	// NameProbeLimit bounds the numbered-name probe used on collisions.
	NameProbeLimit int `yaml:"nameProbeLimit"`
	// MaxTreeDepth bounds subtree walks during move, copy and delete.
	MaxTreeDepth int `yaml:"maxTreeDepth"`
	// MaxBOMBytes caps the size of an uploaded BOM document.
	MaxBOMBytes int64 `yaml:"maxBomBytes"`
}

// DefaultConfig returns the default inventory configuration.
func DefaultConfig() *Config {
	return &Config{
		URNPrefix:      DefaultURNPrefix,
		NameProbeLimit: DefaultNameProbeLimit,
		MaxTreeDepth:   1000,
		MaxBOMBytes:    32 << 20,
	}
}

// LoadConfig loads inventory configuration from a YAML file.
// If the file does not exist, default configuration is returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read inventory config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse inventory config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.URNPrefix == "" {
		c.URNPrefix = d.URNPrefix
	}
	if c.NameProbeLimit <= 0 {
		c.NameProbeLimit = d.NameProbeLimit
	}
	if c.MaxTreeDepth <= 0 {
		c.MaxTreeDepth = d.MaxTreeDepth
	}
	if c.MaxBOMBytes <= 0 {
		c.MaxBOMBytes = d.MaxBOMBytes
	}
}
