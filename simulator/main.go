package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/courierhq/dispatchd/core/model"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := RandomRespond{AcceptRate: cfg.AcceptRate, DropRate: cfg.DropRate, Delay: cfg.Latency}
	fleet := GenerateFleet(FleetConfig{
		Size:          cfg.Count,
		Center:        model.LatLng{Lat: cfg.CenterLat, Lng: cfg.CenterLng},
		SpreadKm:      cfg.SpreadKm,
		VehicleTypes:  parseVehicleTypes(cfg.VehicleTypes),
		ResponseTopic: cfg.ResponseTopic,
		Strategy:      strat,
	})

	started := 0
	for _, d := range fleet {
		if err := d.Start(ctx, cfg.Broker); err != nil {
			log.Printf("start %s: %v", d.ID, err)
			continue
		}
		started++
	}
	if started == 0 {
		log.Fatal("no driver could connect")
	}
	log.Printf("%d simulated drivers online", started)

	<-ctx.Done()
	for _, d := range fleet {
		d.Stop()
	}
}
