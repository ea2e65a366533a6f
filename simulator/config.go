package main

import (
	"flag"
	"fmt"
	"time"
)

// Config holds parameters for the driver simulator.
type Config struct {
	Broker        string
	ResponseTopic string
	Count         int
	CenterLat     float64
	CenterLng     float64
	SpreadKm      float64
	AcceptRate    float64
	DropRate      float64
	Latency       time.Duration
	VehicleTypes  string
	Verbose       bool
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.ResponseTopic, "response-topic", "drivers/responses", "topic driver responses are published on")
	flag.IntVar(&cfg.Count, "count", 10, "number of simulated drivers")
	flag.Float64Var(&cfg.CenterLat, "lat", 48.8566, "fleet center latitude")
	flag.Float64Var(&cfg.CenterLng, "lng", 2.3522, "fleet center longitude")
	flag.Float64Var(&cfg.SpreadKm, "spread", 5, "fleet spread around the center in km")
	flag.Float64Var(&cfg.AcceptRate, "accept-rate", 0.5, "probability a driver accepts an offer")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "probability a driver never answers")
	flag.DurationVar(&cfg.Latency, "latency", 2*time.Second, "delay before answering an offer")
	flag.StringVar(&cfg.VehicleTypes, "vehicle-types", "bike,car", "comma separated vehicle types to draw from")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "log driver activity")
	flag.Parse()
	return cfg
}

// Validate checks flag consistency.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if c.AcceptRate < 0 || c.AcceptRate > 1 {
		return fmt.Errorf("accept-rate must be within [0,1]")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop-rate must be within [0,1]")
	}
	return nil
}
