package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "dispatchd"
  username: "user"
  password: "pass"
  response_topic: "drivers/+/response"
  use_tls: false
dispatch:
  response_window_seconds: 20
  search_radius_km: 7.5
  expired_ttl_minutes: 5
metrics:
  prometheus_enabled: true
  prometheus_port: ":9091"
order_log:
  enabled: true
  backend: "sqlite"
  path: "outcomes.db"
deliveries:
  backend: "memory"
api:
  enabled: true
  addr: ":8088"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "dispatchd"},
		{"response_topic", cfg.MQTT.ResponseTopic, "drivers/+/response"},
		{"use_tls", cfg.MQTT.UseTLS, false},
		{"response_window", cfg.Dispatch.ResponseWindowSeconds, 20},
		{"radius", cfg.Dispatch.SearchRadiusKm, 7.5},
		{"ttl", cfg.Dispatch.ExpiredTTLMinutes, 5},
		{"prom_enabled", cfg.Metrics.PrometheusEnabled, true},
		{"order_log_backend", cfg.OrderLog.Backend, "sqlite"},
		{"deliveries_backend", cfg.Deliveries.Backend, "memory"},
		{"api_addr", cfg.API.Addr, ":8088"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("mqtt:\n  broker: \"tcp://localhost:1883\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Dispatch.ResponseWindowSeconds != 30 {
		t.Errorf("default response window: %d", cfg.Dispatch.ResponseWindowSeconds)
	}
	if cfg.Dispatch.SearchRadiusKm != 10 {
		t.Errorf("default radius: %f", cfg.Dispatch.SearchRadiusKm)
	}
	if cfg.OrderLog.Backend != "jsonl" {
		t.Errorf("default order log backend: %s", cfg.OrderLog.Backend)
	}
	if cfg.Deliveries.Backend != "sqlite" {
		t.Errorf("default deliveries backend: %s", cfg.Deliveries.Backend)
	}
	if cfg.API.Addr != ":8080" {
		t.Errorf("default api addr: %s", cfg.API.Addr)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("mqtt:\n  broker: \"tcp://localhost:1883\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CD_MQTT__CLIENT_ID", "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.MQTT.ClientID != "from-env" {
		t.Errorf("env override not applied: %q", cfg.MQTT.ClientID)
	}
}
