package dispatch

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courierhq/dispatchd/core/model"
)

// DefaultExpiredTTL bounds how long an exhausted order stays recoverable.
const DefaultExpiredTTL = 5 * time.Minute

type expiredEntry struct {
	order    *model.OrderRequest
	storedAt time.Time
}

// Registry owns the in-memory bookkeeping of in-flight and recently expired
// order requests, plus the alias table mapping external identifiers to
// canonical ones. Lookups are total functions: a miss returns nil, never an
// error.
type Registry struct {
	mu      sync.RWMutex
	active  map[string]*model.OrderRequest
	expired map[string]expiredEntry
	aliases map[string]string
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry creates a registry. A non-positive ttl falls back to
// DefaultExpiredTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultExpiredTTL
	}
	return &Registry{
		active:  make(map[string]*model.OrderRequest),
		expired: make(map[string]expiredEntry),
		aliases: make(map[string]string),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create allocates a request from the facts and stores it as active. The
// canonical id is the persisted delivery id when one exists, otherwise a
// generated ephemeral id.
func (r *Registry) Create(facts model.OrderFacts) *model.OrderRequest {
	id := facts.DeliveryID
	if id == "" {
		id = uuid.NewString()
	}
	order := &model.OrderRequest{
		ID:        id,
		Facts:     facts,
		CreatedAt: r.now(),
	}
	r.mu.Lock()
	r.active[order.ID] = order
	if ext := facts.DeliveryID; ext != "" && ext != order.ID {
		r.aliases[ext] = order.ID
	}
	r.mu.Unlock()
	return order
}

// Reactivate puts an order back into the active store. Used when a search is
// (re)started for an order that was created earlier; idempotent.
func (r *Registry) Reactivate(order *model.OrderRequest) {
	r.mu.Lock()
	r.active[order.ID] = order
	r.mu.Unlock()
}

// Get resolves anyID directly or through the alias table against both the
// active and expired stores. A stale alias whose target has been purged
// resolves to nil.
func (r *Registry) Get(anyID string) *model.OrderRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := r.resolveLocked(anyID)
	if o, ok := r.active[id]; ok {
		return o
	}
	if e, ok := r.expired[id]; ok {
		return e.order
	}
	return nil
}

// GetActive resolves anyID against the active store only.
func (r *Registry) GetActive(anyID string) *model.OrderRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[r.resolveLocked(anyID)]
}

// ListActive returns a snapshot of the active orders, oldest first.
func (r *Registry) ListActive() []*model.OrderRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.OrderRequest, 0, len(r.active))
	for _, o := range r.active {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// MoveToExpired snapshots the order into the expired store and removes it
// from active. Cancelling its timer is the caller's responsibility.
func (r *Registry) MoveToExpired(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id = r.resolveLocked(id)
	o, ok := r.active[id]
	if !ok {
		return
	}
	delete(r.active, id)
	r.expired[id] = expiredEntry{order: o, storedAt: r.now()}
}

// ConsumeExpired removes and returns the expired snapshot for anyID if it is
// still within the TTL. Entries past the TTL are purged and nil is returned.
// Consumption is one-shot: a second call for the same id returns nil.
func (r *Registry) ConsumeExpired(anyID string) *model.OrderRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.resolveLocked(anyID)
	e, ok := r.expired[id]
	if !ok {
		return nil
	}
	delete(r.expired, id)
	r.dropAliasesLocked(id)
	if r.now().Sub(e.storedAt) > r.ttl {
		return nil
	}
	return e.order
}

// SetDeliveryID backfills the persisted delivery id on an order created
// before its delivery record existed, and registers the alias. Reports
// whether anyID resolved to a known order.
func (r *Registry) SetDeliveryID(anyID, deliveryID string) bool {
	if deliveryID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.resolveLocked(anyID)
	o, ok := r.active[id]
	if !ok {
		e, exp := r.expired[id]
		if !exp {
			return false
		}
		o = e.order
	}
	o.Facts.DeliveryID = deliveryID
	if deliveryID != id {
		r.aliases[deliveryID] = id
	}
	return true
}

// Remove deletes the order from both stores and drops its aliases.
// Idempotent.
func (r *Registry) Remove(anyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.resolveLocked(anyID)
	delete(r.active, id)
	delete(r.expired, id)
	r.dropAliasesLocked(id)
	delete(r.aliases, anyID)
}

// PurgeExpired drops every expired entry past the TTL. Called periodically so
// the expired store stays bounded even without late responses.
func (r *Registry) PurgeExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := r.now()
	for id, e := range r.expired {
		if now.Sub(e.storedAt) > r.ttl {
			delete(r.expired, id)
			r.dropAliasesLocked(id)
			n++
		}
	}
	return n
}

func (r *Registry) resolveLocked(anyID string) string {
	if target, ok := r.aliases[anyID]; ok {
		// Re-validate: a dangling alias must not resolve.
		if _, act := r.active[target]; act {
			return target
		}
		if _, exp := r.expired[target]; exp {
			return target
		}
		return anyID
	}
	return anyID
}

func (r *Registry) dropAliasesLocked(target string) {
	for alias, t := range r.aliases {
		if t == target {
			delete(r.aliases, alias)
		}
	}
}
