package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/courierhq/dispatchd/core/dispatch"
	"github.com/courierhq/dispatchd/core/metrics"
	"github.com/courierhq/dispatchd/infra/mqtt"
)

type Config struct {
	MQTT       mqtt.Config      `json:"mqtt"`
	Dispatch   dispatch.Config  `json:"dispatch"`
	Metrics    metrics.Config   `json:"metrics"`
	OrderLog   OrderLogConfig   `json:"order_log"`
	Deliveries DeliveriesConfig `json:"deliveries"`
	API        APIConfig        `json:"api"`
}

// APIConfig defines the HTTP surface settings.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	// Token guards the outcomes endpoint when non-empty.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("CD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "cd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Dispatch.SetDefaults()
	cfg.OrderLog.SetDefaults()
	cfg.Deliveries.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.OrderLog.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Deliveries.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
