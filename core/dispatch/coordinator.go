package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courierhq/dispatchd/core/delivery"
	"github.com/courierhq/dispatchd/core/dispatch/logging"
	"github.com/courierhq/dispatchd/core/events"
	"github.com/courierhq/dispatchd/core/gateway"
	"github.com/courierhq/dispatchd/core/locator"
	"github.com/courierhq/dispatchd/core/logger"
	coremetrics "github.com/courierhq/dispatchd/core/metrics"
	"github.com/courierhq/dispatchd/core/model"
	"github.com/courierhq/dispatchd/internal/eventbus"
)

// Coordinator walks an order through its dispatch lifecycle: locate
// candidates, offer to one candidate at a time inside a bounded response
// window, escalate on rejection or timeout, and commit exactly one delivery
// on acceptance. Every transition runs under the coordinator mutex, so for a
// single order at most one candidate decision is ever pending.
type Coordinator struct {
	registry   *Registry
	scheduler  *Scheduler
	filter     CandidateFilter
	locator    locator.CandidateLocator
	gateway    gateway.Gateway
	deliveries delivery.Store
	cfg        Config
	logger     logger.Logger
	metrics    coremetrics.MetricsSink
	bus        eventbus.EventBus
	store      logging.LogStore

	mu sync.Mutex
	// commits remembers orders already committed so a response replayed in
	// quick succession cannot produce a second delivery record.
	commits map[string]commitRecord
}

type commitRecord struct {
	deliveryID string
	at         time.Time
}

// NewCoordinator creates a coordinator. sink and bus may be nil.
func NewCoordinator(filter CandidateFilter, loc locator.CandidateLocator, gw gateway.Gateway, store delivery.Store, cfg Config, sink coremetrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Coordinator, error) {
	if filter == nil || loc == nil || gw == nil || store == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	cfg.SetDefaults()
	return &Coordinator{
		registry:   NewRegistry(time.Duration(cfg.ExpiredTTLMinutes) * time.Minute),
		scheduler:  NewScheduler(),
		filter:     filter,
		locator:    loc,
		gateway:    gw,
		deliveries: store,
		cfg:        cfg,
		logger:     log,
		metrics:    sink,
		bus:        bus,
		commits:    make(map[string]commitRecord),
	}, nil
}

// SetLogStore configures the store used to persist dispatch outcomes.
func (c *Coordinator) SetLogStore(store logging.LogStore) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

// Registry exposes the order registry for read-only surfaces.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Run consumes driver responses until the context is canceled. Expired
// snapshots are purged once a minute so the registry stays bounded.
func (c *Coordinator) Run(ctx context.Context, responses <-chan model.DriverResponse) {
	purge := time.NewTicker(time.Minute)
	defer purge.Stop()
	for {
		select {
		case resp := <-responses:
			if _, err := c.HandleDriverResponse(ctx, resp); err != nil {
				c.logger.Errorf("response %s/%s: %v", resp.OrderID, resp.DriverID, err)
			}
		case <-purge.C:
			if n := c.registry.PurgeExpired(); n > 0 {
				c.logger.Debugf("purged %d expired orders", n)
			}
			c.pruneCommits()
		case <-ctx.Done():
			return
		}
	}
}

// Close cancels every pending timeout and releases the outcome store.
func (c *Coordinator) Close() error {
	c.scheduler.Stop()
	if c.bus != nil {
		c.bus.Close()
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// CreateOrderRequest registers a new order request without starting the
// search.
func (c *Coordinator) CreateOrderRequest(facts model.OrderFacts) *model.OrderRequest {
	order := c.registry.Create(facts)
	c.logger.Infof("order %s created for client %s", order.ID, facts.ClientID)
	if c.bus != nil {
		c.bus.Publish(events.OrderEvent{Order: order})
	}
	return order
}

// StartDriverSearch locates candidates around the pickup point and offers the
// order to the first one. An empty candidate list ends the search right away
// with a no-availability notice.
func (c *Coordinator) StartDriverSearch(ctx context.Context, order *model.OrderRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Reactivate(order)
	c.armWindow(order)

	candidates, err := c.locator.FindCandidates(ctx, order.Facts.PickupLocation, c.cfg.SearchRadiusKm)
	if err != nil {
		c.scheduler.Cancel(order.ID)
		return fmt.Errorf("locate candidates: %w", err)
	}
	order.Candidates = c.filter.Filter(candidates, order.Facts)
	order.CurrentCandidate = 0
	c.logger.Infof("order %s: %d candidates within %.1f km", order.ID, len(order.Candidates), c.cfg.SearchRadiusKm)
	if cr, ok := c.metrics.(coremetrics.CandidateCountRecorder); ok {
		if err := cr.RecordCandidateCount(len(order.Candidates)); err != nil {
			c.logger.Errorf("candidate count metrics: %v", err)
		}
	}

	return c.offerNext(ctx, order)
}

// HandleDriverResponse processes an accept or reject from a driver. The
// returned bool reports whether the response was turned into an outcome.
func (c *Coordinator) HandleDriverResponse(ctx context.Context, resp model.DriverResponse) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order := c.registry.GetActive(resp.OrderID)
	if c.bus != nil {
		c.bus.Publish(events.ResponseEvent{Response: resp, Known: order != nil})
	}
	if order == nil {
		// Expired orders deliberately land here too: their acceptance goes
		// through recovery, their rejection has nothing left to escalate.
		if !resp.Accepted {
			c.logger.Debugf("rejection for inactive order %s dropped", resp.OrderID)
			return false, nil
		}
		return c.recoverLateAcceptance(ctx, resp)
	}

	// Cancelling the timer is the first action taken on a response, so
	// timer-driven and response-driven escalation stay mutually exclusive.
	c.scheduler.Cancel(order.ID)

	if !resp.Accepted {
		c.recordOffer(order, resp.DriverID, false)
		c.logger.Infof("order %s: driver %s refused, escalating", order.ID, resp.DriverID)
		order.CurrentCandidate++
		return true, c.offerNext(ctx, order)
	}

	deliveryID, err := c.commitDelivery(ctx, order.Facts, resp.DriverID)
	if err != nil {
		// The order is still registered; the caller decides whether to retry.
		return false, fmt.Errorf("commit delivery for order %s: %w", order.ID, err)
	}
	c.rememberCommit(order.ID, order.ExternalID(), deliveryID)
	c.registry.Remove(order.ID)
	c.recordOffer(order, resp.DriverID, true)
	c.notifyClient(ctx, order.Facts.ClientID, model.ClientEvent{
		Type:      model.ClientEventAccepted,
		OrderID:   order.ID,
		DriverID:  resp.DriverID,
		Timestamp: time.Now(),
	})
	c.appendOutcome(logging.LogRecord{
		Timestamp:       time.Now(),
		OrderID:         order.ID,
		DeliveryID:      deliveryID,
		ClientID:        order.Facts.ClientID,
		VehicleType:     order.Facts.VehicleType,
		Outcome:         logging.OutcomeAccepted,
		DriverID:        resp.DriverID,
		CandidatesTried: order.CurrentCandidate + 1,
		EstimatedPrice:  order.Facts.EstimatedPrice,
	})
	c.logger.Infof("order %s accepted by driver %s (delivery %s)", order.ID, resp.DriverID, deliveryID)
	return true, nil
}

// HandleTimeout escalates to the next candidate after a response window
// elapsed. Fired by the scheduler; candidate is the cursor the window was
// armed for, so a firing that lost the race against a response (the cursor
// has moved on) is a no-op, as is an order already finalized.
func (c *Coordinator) HandleTimeout(orderID string, candidate int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order := c.registry.GetActive(orderID)
	if order == nil {
		return
	}
	if order.CurrentCandidate != candidate {
		c.logger.Debugf("order %s: stale timeout for candidate %d ignored", order.ID, candidate)
		return
	}
	if c.bus != nil {
		c.bus.Publish(events.TimeoutEvent{OrderID: order.ID, Index: order.CurrentCandidate})
	}
	if order.CurrentCandidate < len(order.Candidates) {
		c.recordOffer(order, order.Candidates[order.CurrentCandidate].ID, false)
	}
	c.logger.Infof("order %s: candidate %d timed out, escalating", order.ID, order.CurrentCandidate)
	order.CurrentCandidate++
	if err := c.offerNext(context.Background(), order); err != nil {
		c.logger.Errorf("order %s: escalation failed: %v", order.ID, err)
	}
}

// GetActiveRequest resolves anyID against the active store.
func (c *Coordinator) GetActiveRequest(anyID string) *model.OrderRequest {
	return c.registry.GetActive(anyID)
}

// RemoveActiveRequest cancels the pending timeout and purges the order. Used
// for explicit client-side cancellation; a driver already holding an offer
// for the order may still respond, which is absorbed by the unknown-order
// paths.
func (c *Coordinator) RemoveActiveRequest(anyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	order := c.registry.Get(anyID)
	if order == nil {
		return
	}
	c.scheduler.Cancel(order.ID)
	c.registry.Remove(order.ID)
	c.appendOutcome(logging.LogRecord{
		Timestamp:       time.Now(),
		OrderID:         order.ID,
		ClientID:        order.Facts.ClientID,
		VehicleType:     order.Facts.VehicleType,
		Outcome:         logging.OutcomeCancelled,
		CandidatesTried: order.CurrentCandidate,
	})
	c.logger.Infof("order %s cancelled", order.ID)
}

// offerNext is the single escalation transition, invoked from search start,
// rejection and timeout. A send failure counts as an implicit refusal and
// advances immediately instead of wasting the response window on an
// undeliverable offer. Callers must hold the coordinator mutex.
func (c *Coordinator) offerNext(ctx context.Context, order *model.OrderRequest) error {
	for {
		if order.Exhausted() {
			return c.finalizeExhausted(ctx, order)
		}
		cand := order.Candidates[order.CurrentCandidate]
		if err := c.gateway.Offer(ctx, cand, order.Summary()); err != nil {
			notifyFailure.Inc()
			c.recordOffer(order, cand.ID, false)
			c.logger.Warnf("order %s: offer to %s undeliverable (%v), skipping", order.ID, cand.ID, err)
			order.CurrentCandidate++
			continue
		}
		notifySuccess.Inc()
		order.OfferSentAt = time.Now()
		offersSent.WithLabelValues(order.Facts.VehicleType).Inc()
		if c.bus != nil {
			c.bus.Publish(events.OfferEvent{
				OrderID:  order.ID,
				DriverID: cand.ID,
				Index:    order.CurrentCandidate,
				SentAt:   order.OfferSentAt,
			})
		}
		c.logger.Infof("order %s: offered to driver %s (%d/%d)", order.ID, cand.ID, order.CurrentCandidate+1, len(order.Candidates))
		c.armWindow(order)
		return nil
	}
}

// finalizeExhausted archives an order whose candidate list ran out and tells
// the client nobody is available.
func (c *Coordinator) finalizeExhausted(ctx context.Context, order *model.OrderRequest) error {
	c.scheduler.Cancel(order.ID)
	c.notifyClient(ctx, order.Facts.ClientID, model.ClientEvent{
		Type:      model.ClientEventNoAvailability,
		OrderID:   order.ID,
		Timestamp: time.Now(),
	})
	c.registry.MoveToExpired(order.ID)
	if c.bus != nil {
		c.bus.Publish(events.ExhaustedEvent{OrderID: order.ID, Tried: len(order.Candidates)})
	}
	c.appendOutcome(logging.LogRecord{
		Timestamp:       time.Now(),
		OrderID:         order.ID,
		ClientID:        order.Facts.ClientID,
		VehicleType:     order.Facts.VehicleType,
		Outcome:         logging.OutcomeExhausted,
		CandidatesTried: len(order.Candidates),
	})
	c.logger.Warnf("order %s: no driver available after %d candidates", order.ID, len(order.Candidates))
	return nil
}

// commitDelivery enforces the one-record-per-order policy: orders that
// already carry a persisted delivery update it, everything else creates one.
func (c *Coordinator) commitDelivery(ctx context.Context, facts model.OrderFacts, driverID string) (string, error) {
	if facts.DeliveryID != "" {
		if err := c.deliveries.UpdateDelivery(ctx, facts.DeliveryID, facts); err != nil {
			return "", err
		}
		if err := c.deliveries.AcceptDelivery(ctx, facts.DeliveryID, driverID); err != nil {
			return "", err
		}
		return facts.DeliveryID, nil
	}
	id, err := c.deliveries.CreateDelivery(ctx, facts)
	if err != nil {
		return "", err
	}
	if err := c.deliveries.AcceptDelivery(ctx, id, driverID); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Coordinator) notifyClient(ctx context.Context, clientID string, ev model.ClientEvent) {
	if clientID == "" {
		c.logger.Warnf("order %s: no client to notify of %s", ev.OrderID, ev.Type)
		return
	}
	if err := c.gateway.NotifyClient(ctx, clientID, ev); err != nil {
		// Best effort: logged, never retried here.
		c.logger.Errorf("notify client %s of %s: %v", clientID, ev.Type, err)
	}
}

func (c *Coordinator) recordOffer(order *model.OrderRequest, driverID string, accepted bool) {
	lat := time.Duration(0)
	if !order.OfferSentAt.IsZero() {
		lat = time.Since(order.OfferSentAt)
	}
	offerLatency.WithLabelValues(order.Facts.VehicleType).Observe(lat.Seconds())
	if accepted && order.CurrentCandidate >= 0 {
		acceptanceRate.WithLabelValues(order.Facts.VehicleType).Set(1 / float64(order.CurrentCandidate+1))
	}
	if c.metrics == nil {
		return
	}
	res := []coremetrics.OfferResult{{
		OrderID:     order.ID,
		DriverID:    driverID,
		VehicleType: order.Facts.VehicleType,
		Accepted:    accepted,
		PriceEst:    order.Facts.EstimatedPrice,
		OfferTime:   order.OfferSentAt,
	}}
	if err := c.metrics.RecordOfferResults(res); err != nil {
		c.logger.Errorf("metrics error: %v", err)
	}
	if lr, ok := c.metrics.(coremetrics.LatencyRecorder); ok {
		recs := []coremetrics.OfferLatency{{
			OrderID:  order.ID,
			DriverID: driverID,
			Accepted: accepted,
			Latency:  lat,
		}}
		if err := lr.RecordOfferLatency(recs); err != nil {
			c.logger.Errorf("latency metrics error: %v", err)
		}
	}
}

func (c *Coordinator) appendOutcome(rec logging.LogRecord) {
	if c.store == nil {
		return
	}
	if err := c.store.Append(context.Background(), rec); err != nil {
		c.logger.Errorf("outcome log append: %v", err)
	}
}

// armWindow schedules the response window for the candidate the order cursor
// points at, binding that cursor into the firing so stale timers identify
// themselves.
func (c *Coordinator) armWindow(order *model.OrderRequest) {
	cand := order.CurrentCandidate
	c.scheduler.Schedule(order.ID, c.windowFor(order), func() { c.HandleTimeout(order.ID, cand) })
}

func (c *Coordinator) windowFor(order *model.OrderRequest) time.Duration {
	if order.Facts.TimeoutSeconds > 0 {
		return time.Duration(order.Facts.TimeoutSeconds) * time.Second
	}
	return time.Duration(c.cfg.ResponseWindowSeconds) * time.Second
}

func (c *Coordinator) rememberCommit(ids ...string) {
	now := time.Now()
	deliveryID := ids[len(ids)-1]
	for _, id := range ids {
		if id == "" {
			continue
		}
		c.commits[id] = commitRecord{deliveryID: deliveryID, at: now}
	}
}

func (c *Coordinator) committedDelivery(anyID string) (string, bool) {
	rec, ok := c.commits[anyID]
	return rec.deliveryID, ok
}

func (c *Coordinator) pruneCommits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(c.cfg.ExpiredTTLMinutes) * time.Minute)
	for id, rec := range c.commits {
		if rec.at.Before(cutoff) {
			delete(c.commits, id)
		}
	}
}
