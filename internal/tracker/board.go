package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/model"
)

// FetchFunc loads requests from the backend.
type FetchFunc func(ctx context.Context) ([]model.Request, error)

// Board is the client's cached copy of requests. Cached statuses only ever
// hold server-confirmed values; an advance in flight is visible through Pending.
type Board struct {
	tr *Tracker

	mu      sync.RWMutex
	items   map[string]model.Request
	order   []string
	pending map[string]model.Status
}

// NewBoard constructs an empty board backed by tr.
func NewBoard(tr *Tracker) *Board {
	return &Board{
		tr:      tr,
		items:   make(map[string]model.Request),
		pending: make(map[string]model.Status),
	}
}

// Refresh replaces the cache with the result of fetch. On error the cache is kept.
func (b *Board) Refresh(ctx context.Context, fetch FetchFunc) error {
	list, err := fetch(ctx)
	if err != nil {
		return err
	}
	b.Replace(list)
	return nil
}

// Replace installs list as the cached view, preserving its order.
func (b *Board) Replace(list []model.Request) {
	items := make(map[string]model.Request, len(list))
	order := make([]string, 0, len(list))
	for _, r := range list {
		if _, dup := items[r.ID]; !dup {
			order = append(order, r.ID)
		}
		items[r.ID] = r
	}
	b.mu.Lock()
	b.items, b.order = items, order
	b.mu.Unlock()
}

// Get returns the cached request.
func (b *Board) Get(id string) (model.Request, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.items[id]
	return r, ok
}

// List returns the cached requests in fetch order.
func (b *Board) List() []model.Request {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Request, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.items[id])
	}
	return out
}

// Pending returns the target status of an advance in flight for id.
func (b *Board) Pending(id string) (model.Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.pending[id]
	return st, ok
}

// Progress returns the completion fraction of the confirmed status of id.
func (b *Board) Progress(id string) (float64, bool) {
	r, ok := b.Get(id)
	if !ok {
		return 0, false
	}
	return ProgressFraction(r.Status), true
}

// Advance moves the cached request id one step forward. The cache changes only
// after the backend confirms; on failure it keeps the previous status.
func (b *Board) Advance(ctx context.Context, id string) (model.Request, error) {
	b.mu.Lock()
	cur, ok := b.items[id]
	if !ok {
		b.mu.Unlock()
		return model.Request{}, fmt.Errorf("%w: request %q", errs.ErrNotFound, id)
	}
	if next, more := cur.Status.Next(); more {
		if _, busy := b.pending[id]; !busy {
			b.pending[id] = next
		}
	}
	b.mu.Unlock()

	updated, err := b.tr.Advance(ctx, cur)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tr.InFlight(id) {
		delete(b.pending, id)
	}
	if err != nil {
		return cur, err
	}
	// a Refresh may have landed meanwhile; never move the cache backwards
	if now, ok := b.items[id]; ok && now.Status.Index() < updated.Status.Index() {
		now.Status = updated.Status
		b.items[id] = now
	}
	return updated, nil
}
