package config

import "fmt"

// OrderLogConfig defines settings for dispatch outcome log storage.
type OrderLogConfig struct {
	// Backend selects the log store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// Enabled toggles outcome logging entirely.
	Enabled bool `json:"enabled"`
}

// SetDefaults applies sane defaults.
func (c *OrderLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "dispatch_outcomes.log"
	}
}

// Validate checks mandatory fields.
func (c OrderLogConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown order log backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("order log path is required")
	}
	return nil
}

// DeliveriesConfig selects the delivery store backend.
type DeliveriesConfig struct {
	// Backend selects the store type: "sqlite" or "memory".
	Backend string `json:"backend"`
	// Path is the database location for the sqlite backend.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *DeliveriesConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Path == "" {
		c.Path = "deliveries.db"
	}
}

// Validate checks mandatory fields.
func (c DeliveriesConfig) Validate() error {
	if c.Backend != "sqlite" && c.Backend != "memory" {
		return fmt.Errorf("unknown deliveries backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.Path == "" {
		return fmt.Errorf("deliveries path is required")
	}
	return nil
}
