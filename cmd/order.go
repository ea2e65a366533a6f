package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/courierhq/dispatchd/app"
	"github.com/courierhq/dispatchd/config"
	"github.com/courierhq/dispatchd/core/model"
	"github.com/courierhq/dispatchd/infra/logger"
)

var orderFlags struct {
	clientID    string
	pickup      string
	destination string
	lat         float64
	lng         float64
	vehicleType string
	price       float64
	wait        time.Duration
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Inject a test order and dispatch it",
	RunE:  injectOrder,
}

func init() {
	orderCmd.Flags().StringVar(&orderFlags.clientID, "client", "test-client", "client identifier")
	orderCmd.Flags().StringVar(&orderFlags.pickup, "pickup", "1 Test Street", "pickup address")
	orderCmd.Flags().StringVar(&orderFlags.destination, "destination", "2 Test Avenue", "delivery address")
	orderCmd.Flags().Float64Var(&orderFlags.lat, "lat", 48.8566, "pickup latitude")
	orderCmd.Flags().Float64Var(&orderFlags.lng, "lng", 2.3522, "pickup longitude")
	orderCmd.Flags().StringVar(&orderFlags.vehicleType, "vehicle-type", "", "required vehicle type")
	orderCmd.Flags().Float64Var(&orderFlags.price, "price", 12.5, "estimated price")
	orderCmd.Flags().DurationVar(&orderFlags.wait, "wait", 2*time.Minute, "how long to wait for an outcome")
	rootCmd.AddCommand(orderCmd)
}

func injectOrder(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// The injected order never needs the HTTP surface.
	cfg.API.Enabled = false

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("order-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, orderFlags.wait)
	defer cancel()
	go func() {
		if err := svc.Run(runCtx); err != nil {
			logg.Errorf("service run: %v", err)
		}
	}()

	order := svc.Coordinator.CreateOrderRequest(model.OrderFacts{
		ClientID:        orderFlags.clientID,
		PickupAddress:   orderFlags.pickup,
		DeliveryAddress: orderFlags.destination,
		PickupLocation:  model.LatLng{Lat: orderFlags.lat, Lng: orderFlags.lng},
		VehicleType:     orderFlags.vehicleType,
		EstimatedPrice:  orderFlags.price,
	})
	logg.Infof("injecting order %s", order.ID)
	if err := svc.Coordinator.StartDriverSearch(runCtx, order); err != nil {
		return fmt.Errorf("driver search: %w", err)
	}

	// Stay up until the wait elapses so late responses can still land.
	<-runCtx.Done()
	return nil
}
