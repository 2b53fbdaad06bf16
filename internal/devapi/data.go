package devapi

import (
	"sort"
	"strings"
	"sync"

	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/model"
)

type account struct {
	user     model.User
	document string
	hash     string
}

type record struct {
	req       model.Request
	image     []byte
	imageType string
}

// data is the in-memory backing of the dev backend.
type data struct {
	mu       sync.RWMutex
	accounts map[string]*account // by normalized email
	records  map[string]*record
}

func newData() *data {
	return &data{accounts: make(map[string]*account), records: make(map[string]*record)}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (d *data) addAccount(a *account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := normEmail(a.user.Email)
	if _, ok := d.accounts[k]; ok {
		return errs.ErrAlreadyExists
	}
	d.accounts[k] = a
	return nil
}

func (d *data) accountByEmail(email string) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[normEmail(email)]
	if !ok {
		return account{}, false
	}
	return *a, true
}

func (d *data) setHash(email, hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.accounts[normEmail(email)]; ok {
		a.hash = hash
	}
}

func (d *data) addRecord(r *record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[r.req.ID] = r
}

func (d *data) record(id string) (record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[id]
	if !ok {
		return record{}, false
	}
	return *r, true
}

// list returns records ordered by creation time, optionally filtered by submitter.
func (d *data) list(submitter string) []model.Request {
	d.mu.RLock()
	out := make([]model.Request, 0, len(d.records))
	for _, r := range d.records {
		if submitter == "" || r.req.SubmitterID == submitter {
			out = append(out, r.req)
		}
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// advance moves record id to target if target is the current status or its
// direct successor. The check and the write happen under one lock.
func (d *data) advance(id string, target model.Status) (model.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[id]
	if !ok {
		return model.Request{}, errs.ErrNotFound
	}
	if r.req.Status == target {
		return r.req, nil
	}
	next, ok := r.req.Status.Next()
	if !ok || next != target {
		return model.Request{}, errs.ErrUpdate
	}
	r.req.Status = target
	return r.req, nil
}

func (d *data) deleteRecord(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.records[id]; !ok {
		return false
	}
	delete(d.records, id)
	return true
}
