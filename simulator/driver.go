package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/courierhq/dispatchd/core/geo"
	"github.com/courierhq/dispatchd/core/model"
)

// SimulatedDriver is one fake courier: it answers discovery broadcasts with
// an announcement and offers with a strategy-driven response.
type SimulatedDriver struct {
	ID            string
	Name          string
	VehicleType   string
	Location      model.LatLng
	ResponseTopic string
	Strategy      ResponseStrategy

	cli paho.Client
}

type locateRequest struct {
	PickupLat float64 `json:"pickup_lat"`
	PickupLng float64 `json:"pickup_lng"`
	RadiusKm  float64 `json:"radius_km"`
}

// Start connects the driver and subscribes to discovery and offer topics.
func (d *SimulatedDriver) Start(ctx context.Context, broker string) error {
	cli, err := newMQTTClient(broker, "sim-"+d.ID)
	if err != nil {
		return fmt.Errorf("driver %s: %w", d.ID, err)
	}
	d.cli = cli

	if token := cli.Subscribe("drivers/discovery", 0, d.onDiscovery); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	offerTopic := fmt.Sprintf("drivers/%s/offer", d.ID)
	if token := cli.Subscribe(offerTopic, 0, func(_ paho.Client, m paho.Message) {
		d.onOffer(ctx, m)
	}); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (d *SimulatedDriver) onDiscovery(_ paho.Client, m paho.Message) {
	var req locateRequest
	if err := json.Unmarshal(m.Payload(), &req); err != nil {
		log.Printf("driver %s: bad discovery payload: %v", d.ID, err)
		return
	}
	pickup := model.LatLng{Lat: req.PickupLat, Lng: req.PickupLng}
	if req.RadiusKm > 0 && !geo.WithinKm(pickup, d.Location, req.RadiusKm) {
		return
	}
	payload, err := json.Marshal(model.DriverCandidate{
		ID:            d.ID,
		Name:          d.Name,
		NotifyAddress: d.ID,
		VehicleType:   d.VehicleType,
		Location:      d.Location,
		Available:     true,
	})
	if err != nil {
		log.Printf("driver %s: marshal announcement: %v", d.ID, err)
		return
	}
	d.cli.Publish("drivers/announce", 0, false, payload)
}

func (d *SimulatedDriver) onOffer(ctx context.Context, m paho.Message) {
	var offer offerPayload
	if err := json.Unmarshal(m.Payload(), &offer); err != nil {
		log.Printf("driver %s: bad offer payload: %v", d.ID, err)
		return
	}
	log.Printf("driver %s: offer %s for order %s", d.ID, offer.OfferID, offer.Order.OrderID)
	go d.Strategy.Respond(ctx, d.cli, d.ResponseTopic, d.ID, offer)
}

// Stop disconnects the driver client.
func (d *SimulatedDriver) Stop() {
	if d.cli != nil && d.cli.IsConnected() {
		d.cli.Disconnect(250)
	}
}

func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}
