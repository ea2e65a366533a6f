package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/courierhq/dispatchd/core/model"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// ResponseStrategy decides how a driver answers an incoming offer.
type ResponseStrategy interface {
	Respond(ctx context.Context, cli paho.Client, topic, driverID string, offer offerPayload)
}

// offerPayload mirrors the wire shape of an offer message.
type offerPayload struct {
	OfferID  string             `json:"offer_id"`
	DriverID string             `json:"driver_id"`
	SentAt   int64              `json:"sent_at"`
	Order    model.OrderSummary `json:"order"`
}

// AutoRespond answers every offer with a fixed decision after an optional
// delay.
type AutoRespond struct {
	Accept bool
	Delay  time.Duration
}

// Respond implements ResponseStrategy.
func (a AutoRespond) Respond(ctx context.Context, cli paho.Client, topic, driverID string, offer offerPayload) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return
		}
	}
	publishResponse(cli, topic, driverID, offer, a.Accept)
}

// AcceptAfter refuses the first N offers it sees and accepts from then on.
// Useful to exercise escalation chains deterministically.
type AcceptAfter struct {
	N     int
	Delay time.Duration

	seen int
}

// Respond implements ResponseStrategy.
func (a *AcceptAfter) Respond(ctx context.Context, cli paho.Client, topic, driverID string, offer offerPayload) {
	a.seen++
	accept := a.seen > a.N
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return
		}
	}
	publishResponse(cli, topic, driverID, offer, accept)
}

// RandomRespond accepts with the configured probability, stays silent with
// the drop probability, and waits for the delay before sending.
type RandomRespond struct {
	AcceptRate float64
	DropRate   float64
	Delay      time.Duration
}

// Respond implements ResponseStrategy.
func (r RandomRespond) Respond(ctx context.Context, cli paho.Client, topic, driverID string, offer offerPayload) {
	if r.DropRate > 0 && rng.Float64() < r.DropRate {
		return
	}
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return
		}
	}
	publishResponse(cli, topic, driverID, offer, rng.Float64() < r.AcceptRate)
}

func publishResponse(cli paho.Client, topic, driverID string, offer offerPayload, accepted bool) {
	order := offer.Order
	payload, err := json.Marshal(model.DriverResponse{
		DriverID:  driverID,
		OrderID:   orderIdentifier(order),
		Accepted:  accepted,
		Timestamp: time.Now(),
		Context:   &order,
	})
	if err != nil {
		log.Printf("marshal response: %v", err)
		return
	}
	token := cli.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("response publish timeout for %s", driverID)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("publish response error for %s: %v", driverID, err)
	}
}

// orderIdentifier picks the id a real driver client would echo back. Half the
// fleet answers with the external delivery id to exercise alias resolution.
func orderIdentifier(order model.OrderSummary) string {
	if order.DeliveryID != "" && rng.Intn(2) == 0 {
		return order.DeliveryID
	}
	if order.OrderID != "" {
		return order.OrderID
	}
	return fmt.Sprintf("unknown-%d", rng.Int63())
}
