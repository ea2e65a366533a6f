package main

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/courierhq/dispatchd/core/model"
)

var fleetRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// FleetConfig holds parameters for bulk fleet generation.
type FleetConfig struct {
	Size          int
	Center        model.LatLng
	SpreadKm      float64
	VehicleTypes  []string
	ResponseTopic string
	Strategy      ResponseStrategy
}

// GenerateFleet creates Size drivers with ids drv0001..drvNNNN scattered
// uniformly around the center point.
func GenerateFleet(cfg FleetConfig) []*SimulatedDriver {
	if cfg.Size <= 0 {
		return nil
	}
	types := cfg.VehicleTypes
	if len(types) == 0 {
		types = []string{"bike"}
	}
	drivers := make([]*SimulatedDriver, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		id := fmt.Sprintf("drv%04d", i+1)
		drivers[i] = &SimulatedDriver{
			ID:            id,
			Name:          "Driver " + id,
			VehicleType:   types[fleetRng.Intn(len(types))],
			Location:      scatter(cfg.Center, cfg.SpreadKm),
			ResponseTopic: cfg.ResponseTopic,
			Strategy:      cfg.Strategy,
		}
	}
	return drivers
}

// scatter offsets the center by up to spreadKm in a random direction. One
// degree of latitude is close enough to 111 km for simulation purposes.
func scatter(center model.LatLng, spreadKm float64) model.LatLng {
	if spreadKm <= 0 {
		return center
	}
	dist := spreadKm * math.Sqrt(fleetRng.Float64())
	angle := fleetRng.Float64() * 2 * math.Pi
	dLat := dist * math.Cos(angle) / 111.0
	dLng := dist * math.Sin(angle) / (111.0 * math.Cos(center.Lat*math.Pi/180))
	return model.LatLng{Lat: center.Lat + dLat, Lng: center.Lng + dLng}
}

func parseVehicleTypes(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
