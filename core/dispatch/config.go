package dispatch

// Config defines the dispatch timing and search parameters.
type Config struct {
	// ResponseWindowSeconds is the per-candidate response window.
	ResponseWindowSeconds int `json:"response_window_seconds" yaml:"response_window_seconds"`
	// SearchRadiusKm bounds the candidate search around the pickup point.
	SearchRadiusKm float64 `json:"search_radius_km" yaml:"search_radius_km"`
	// ExpiredTTLMinutes bounds how long exhausted orders stay recoverable.
	ExpiredTTLMinutes int `json:"expired_ttl_minutes" yaml:"expired_ttl_minutes"`
	// DiscoveryWindowMS is how long the MQTT locator collects driver
	// announcements before returning.
	DiscoveryWindowMS int `json:"discovery_window_ms" yaml:"discovery_window_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ResponseWindowSeconds <= 0 {
		c.ResponseWindowSeconds = 30
	}
	if c.SearchRadiusKm <= 0 {
		c.SearchRadiusKm = 10
	}
	if c.ExpiredTTLMinutes <= 0 {
		c.ExpiredTTLMinutes = 5
	}
	if c.DiscoveryWindowMS <= 0 {
		c.DiscoveryWindowMS = 1000
	}
}
