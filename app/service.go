package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/courierhq/dispatchd/api/orders"
	"github.com/courierhq/dispatchd/config"
	coredelivery "github.com/courierhq/dispatchd/core/delivery"
	"github.com/courierhq/dispatchd/core/dispatch"
	"github.com/courierhq/dispatchd/core/dispatch/logging"
	coremetrics "github.com/courierhq/dispatchd/core/metrics"
	infradelivery "github.com/courierhq/dispatchd/infra/delivery"
	"github.com/courierhq/dispatchd/infra/logger"
	"github.com/courierhq/dispatchd/infra/metrics"
	"github.com/courierhq/dispatchd/infra/mqtt"
	"github.com/courierhq/dispatchd/internal/eventbus"
)

// Service assembles the coordinator with its transport, stores and sinks.
type Service struct {
	Coordinator *dispatch.Coordinator
	gateway     *mqtt.PahoGateway
	locator     *mqtt.PahoDriverLocator
	deliveries  coredelivery.Store
	outcomes    logging.LogStore
	bus         eventbus.EventBus
	log         logger.Logger
	cfg         *config.Config
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	gw, err := mqtt.NewPahoGateway(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt gateway: %w", err)
	}
	window := time.Duration(cfg.Dispatch.DiscoveryWindowMS) * time.Millisecond
	loc, err := mqtt.NewPahoDriverLocator(cfg.MQTT, "drivers/discovery", "drivers/announce", window)
	if err != nil {
		return nil, fmt.Errorf("driver locator: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	deliveries, err := newDeliveryStore(cfg.Deliveries)
	if err != nil {
		return nil, fmt.Errorf("delivery store: %w", err)
	}

	bus := eventbus.New()
	coord, err := dispatch.NewCoordinator(
		dispatch.SimpleCandidateFilter{},
		loc,
		gw,
		deliveries,
		cfg.Dispatch,
		sink,
		bus,
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	var outcomes logging.LogStore
	if cfg.OrderLog.Enabled {
		outcomes, err = newLogStore(cfg.OrderLog)
		if err != nil {
			return nil, fmt.Errorf("order log: %w", err)
		}
		coord.SetLogStore(outcomes)
	}

	return &Service{
		Coordinator: coord,
		gateway:     gw,
		locator:     loc,
		deliveries:  deliveries,
		outcomes:    outcomes,
		bus:         bus,
		log:         logg,
		cfg:         cfg,
	}, nil
}

func newDeliveryStore(cfg config.DeliveriesConfig) (coredelivery.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return infradelivery.NewSQLiteStore(cfg.Path)
	case "memory":
		return infradelivery.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown deliveries backend %s", cfg.Backend)
}

func newLogStore(cfg config.OrderLogConfig) (logging.LogStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return logging.NewSQLiteStore(cfg.Path)
	case "jsonl":
		return logging.NewJSONLStore(cfg.Path)
	}
	return nil, fmt.Errorf("unknown order log backend %s", cfg.Backend)
}

// Run starts the response loop and HTTP surfaces, blocking until the context
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Coordinator.Run(ctx, s.gateway.Responses())

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	s.log.Infof("dispatch service running")
	<-ctx.Done()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/orders", methodMux(map[string]http.Handler{
		http.MethodPost:   orders.NewIntakeHandler(s.Coordinator, s.log),
		http.MethodPatch:  orders.NewAttachDeliveryHandler(s.Coordinator.Registry()),
		http.MethodDelete: orders.NewCancelHandler(s.Coordinator),
	}))
	mux.Handle("/api/orders/active", orders.NewActiveHandler(s.Coordinator.Registry()))
	if s.outcomes != nil {
		mux.Handle("/api/orders/outcomes", orders.NewOutcomesHandler(s.outcomes, s.cfg.API.Token))
	}

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
}

// Close releases every resource held by the service.
func (s *Service) Close() error {
	err := s.Coordinator.Close()
	s.gateway.Disconnect()
	if cerr := s.locator.Close(); err == nil {
		err = cerr
	}
	if closer, ok := s.deliveries.(interface{ Close() error }); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
