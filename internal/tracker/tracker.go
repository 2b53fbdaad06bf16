// Package tracker advances requests through the status progression and keeps
// a local view of them in sync with what the backend confirmed.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/model"
)

// Gateway persists a status change on the backend. A zero returned Request
// means the backend acknowledged without echoing the record.
type Gateway interface {
	UpdateStatus(ctx context.Context, id string, st model.Status) (model.Request, error)
}

// Tracker advances request statuses one step at a time.
// At most one advance per request id is in flight.
type Tracker struct {
	gw  Gateway
	log *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New constructs a Tracker.
func New(gw Gateway, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{gw: gw, log: log, inflight: make(map[string]struct{})}
}

// Advance moves req to the next status and returns the updated copy.
// A terminal request is returned unchanged without contacting the backend.
// On failure the input is untouched and the error wraps errs.ErrUpdate.
func (t *Tracker) Advance(ctx context.Context, req model.Request) (model.Request, error) {
	if !req.Status.Valid() {
		return req, fmt.Errorf("%w: %w: request %q has status %s", errs.ErrUpdate, errs.ErrValidation, req.ID, req.Status)
	}
	next, ok := req.Status.Next()
	if !ok {
		return req, nil
	}
	if req.ID == "" {
		return req, fmt.Errorf("%w: %w: request without id", errs.ErrUpdate, errs.ErrValidation)
	}

	if !t.acquire(req.ID) {
		return req, fmt.Errorf("%w: %w", errs.ErrUpdate, errs.ErrAdvanceInProgress)
	}
	defer t.release(req.ID)

	confirmed, err := t.gw.UpdateStatus(ctx, req.ID, next)
	if err != nil {
		t.log.Debug("advance rejected", zap.String("request_id", req.ID), zap.Stringer("target", next), zap.Error(err))
		return req, updateError(err)
	}
	if confirmed.ID != "" && (confirmed.ID != req.ID || confirmed.Status != next) {
		return req, fmt.Errorf("%w: backend reported %s %s, expected %s %s",
			errs.ErrUpdate, confirmed.ID, confirmed.Status, req.ID, next)
	}

	out := req
	out.Status = next
	t.log.Info("request advanced", zap.String("request_id", req.ID),
		zap.Stringer("from", req.Status), zap.Stringer("to", next))
	return out, nil
}

func (t *Tracker) acquire(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inflight[id]; busy {
		return false
	}
	t.inflight[id] = struct{}{}
	return true
}

func (t *Tracker) release(id string) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

// InFlight reports whether an advance for id is running.
func (t *Tracker) InFlight(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.inflight[id]
	return busy
}

func updateError(err error) error {
	if errors.Is(err, errs.ErrUpdate) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrUpdate, err)
}

// ProgressFraction maps a status to its completion fraction: 1/3, 2/3 and 1.
// Invalid statuses map to 0.
func ProgressFraction(st model.Status) float64 {
	i := st.Index()
	if i < 0 {
		return 0
	}
	return float64(i+1) / float64(len(model.Statuses()))
}
