package mqtt

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/courierhq/dispatchd/core/geo"
	"github.com/courierhq/dispatchd/core/model"
	"github.com/courierhq/dispatchd/infra/logger"
)

// PahoDriverLocator implements the candidate locator using MQTT broadcast.
// It publishes the pickup location on a broadcast topic and collects driver
// announcements from a response topic for a short window, keeping only the
// drivers inside the search radius.
type PahoDriverLocator struct {
	cli            paho.Client
	broadcastTopic string
	responseTopic  string
	window         time.Duration
	log            logger.Logger
}

type locateRequest struct {
	PickupLat float64 `json:"pickup_lat"`
	PickupLng float64 `json:"pickup_lng"`
	RadiusKm  float64 `json:"radius_km"`
}

// NewPahoDriverLocator connects to the broker and returns a locator. A
// non-positive window defaults to one second.
func NewPahoDriverLocator(cfg Config, broadcastTopic, responseTopic string, window time.Duration) (*PahoDriverLocator, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID + "-locator")
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS && cfg.TLSConfig != nil {
		opts.SetTLSConfig(cfg.TLSConfig)
	}
	if window <= 0 {
		window = time.Second
	}

	l := &PahoDriverLocator{
		broadcastTopic: broadcastTopic,
		responseTopic:  responseTopic,
		window:         window,
		log:            logger.New("driver_locator"),
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		l.log.Errorf("connection lost: %v", err)
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	l.cli = cli
	return l, nil
}

// FindCandidates broadcasts the pickup location and collects announcements
// until the window elapses. The result is sorted by distance to the pickup
// point so the ordering is deterministic for a given snapshot.
func (l *PahoDriverLocator) FindCandidates(ctx context.Context, origin model.LatLng, radiusKm float64) ([]model.DriverCandidate, error) {
	collected := make(chan model.DriverCandidate, 32)
	if token := l.cli.Subscribe(l.responseTopic, 0, func(_ paho.Client, m paho.Message) {
		var c model.DriverCandidate
		if err := json.Unmarshal(m.Payload(), &c); err != nil {
			l.log.Errorf("invalid driver announcement: %v", err)
			return
		}
		select {
		case collected <- c:
		default:
		}
	}); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	req, err := json.Marshal(locateRequest{PickupLat: origin.Lat, PickupLng: origin.Lng, RadiusKm: radiusKm})
	if err != nil {
		return nil, err
	}
	if token := l.cli.Publish(l.broadcastTopic, 0, false, req); token.Wait() && token.Error() != nil {
		_ = l.cli.Unsubscribe(l.responseTopic)
		return nil, token.Error()
	}

	var candidates []model.DriverCandidate
	timer := time.NewTimer(l.window)
	defer timer.Stop()
loop:
	for {
		select {
		case c := <-collected:
			if geo.WithinKm(origin, c.Location, radiusKm) {
				candidates = append(candidates, c)
			}
		case <-ctx.Done():
			break loop
		case <-timer.C:
			break loop
		}
	}

	if token := l.cli.Unsubscribe(l.responseTopic); token.Wait() && token.Error() != nil {
		l.log.Errorf("unsubscribe error: %v", token.Error())
	}
	sort.Slice(candidates, func(i, j int) bool {
		return geo.DistanceKm(origin, candidates[i].Location) < geo.DistanceKm(origin, candidates[j].Location)
	})
	return candidates, nil
}

// Close disconnects the locator client.
func (l *PahoDriverLocator) Close() error {
	if l.cli != nil && l.cli.IsConnected() {
		l.cli.Disconnect(250)
	}
	return nil
}
