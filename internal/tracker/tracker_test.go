package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/gateway"
	"github.com/and161185/civictrack/internal/model"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []model.Status
	err   error
	echo  func(id string, st model.Status) model.Request

	entered chan struct{}
	release chan struct{}
}

var _ Gateway = (*fakeGateway)(nil)

func (f *fakeGateway) UpdateStatus(_ context.Context, id string, st model.Status) (model.Request, error) {
	f.mu.Lock()
	f.calls = append(f.calls, st)
	err, echo := f.err, f.echo
	entered, release := f.entered, f.release
	f.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}
	if err != nil {
		return model.Request{}, err
	}
	if echo != nil {
		return echo(id, st), nil
	}
	return model.Request{ID: id, Status: st}, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestAdvance_ScenarioToTerminal(t *testing.T) {
	gw := &fakeGateway{}
	tr := New(gw, nil)
	ctx := context.Background()

	r := model.Request{ID: "r1", Status: model.StatusReviewed, Category: model.CategoryRepair}
	r, err := tr.Advance(ctx, r)
	if err != nil || r.Status != model.StatusInProgress {
		t.Fatalf("first advance: %v %v", r.Status, err)
	}
	r, err = tr.Advance(ctx, r)
	if err != nil || r.Status != model.StatusResolved {
		t.Fatalf("second advance: %v %v", r.Status, err)
	}
	before := gw.callCount()
	again, err := tr.Advance(ctx, r)
	if err != nil || again != r {
		t.Fatalf("terminal advance must be a no-op: %+v %v", again, err)
	}
	if gw.callCount() != before {
		t.Fatalf("terminal advance must not call the backend")
	}
	if r.Category != model.CategoryRepair {
		t.Fatalf("other fields must be preserved")
	}
	if len(gw.calls) != 2 || gw.calls[0] != model.StatusInProgress || gw.calls[1] != model.StatusResolved {
		t.Fatalf("backend saw %v", gw.calls)
	}
}

func TestAdvance_Monotonic(t *testing.T) {
	for _, st := range model.Statuses() {
		tr := New(&fakeGateway{}, nil)
		in := model.Request{ID: "r", Status: st}
		out, err := tr.Advance(context.Background(), in)
		if err != nil {
			t.Fatalf("%s: %v", st, err)
		}
		step := out.Status.Index() - in.Status.Index()
		if step < 0 || step > 1 || (step == 0 && !st.Terminal()) {
			t.Fatalf("%s -> %s is not a single forward step", st, out.Status)
		}
	}
}

func TestAdvance_Failures(t *testing.T) {
	cases := []struct {
		name string
		gw   *fakeGateway
		want []error
	}{
		{
			name: "rejected",
			gw:   &fakeGateway{err: &gateway.APIError{Op: gateway.OpUpdateStatus, StatusCode: 409, Kinds: []error{errs.ErrUpdate, errs.ErrAlreadyExists}}},
			want: []error{errs.ErrUpdate},
		},
		{
			name: "unreachable",
			gw:   &fakeGateway{err: &gateway.APIError{Op: gateway.OpUpdateStatus, Kinds: []error{errs.ErrUpdate, errs.ErrNetwork}}},
			want: []error{errs.ErrUpdate, errs.ErrNetwork},
		},
		{
			name: "plain error",
			gw:   &fakeGateway{err: errors.New("boom")},
			want: []error{errs.ErrUpdate},
		},
		{
			name: "server disagrees",
			gw: &fakeGateway{echo: func(id string, _ model.Status) model.Request {
				return model.Request{ID: id, Status: model.StatusResolved}
			}},
			want: []error{errs.ErrUpdate},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := model.Request{ID: "r1", Status: model.StatusReviewed}
			out, err := New(tc.gw, nil).Advance(context.Background(), in)
			for _, w := range tc.want {
				if !errors.Is(err, w) {
					t.Fatalf("want %v in %v", w, err)
				}
			}
			if out != in {
				t.Fatalf("input must be returned untouched: %+v", out)
			}
		})
	}
}

func TestAdvance_AcknowledgedWithoutRecord(t *testing.T) {
	gw := &fakeGateway{echo: func(string, model.Status) model.Request { return model.Request{} }}
	out, err := New(gw, nil).Advance(context.Background(), model.Request{ID: "r1", Status: model.StatusInProgress})
	if err != nil || out.Status != model.StatusResolved {
		t.Fatalf("got %v %v", out.Status, err)
	}
}

func TestAdvance_InvalidInput(t *testing.T) {
	gw := &fakeGateway{}
	tr := New(gw, nil)
	if _, err := tr.Advance(context.Background(), model.Request{ID: "r1"}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("unknown status: %v", err)
	}
	if _, err := tr.Advance(context.Background(), model.Request{Status: model.StatusReviewed}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("missing id: %v", err)
	}
	if gw.callCount() != 0 {
		t.Fatalf("invalid input must not reach the backend")
	}
}

func TestAdvance_SameIDSerialized(t *testing.T) {
	gw := &fakeGateway{entered: make(chan struct{}), release: make(chan struct{})}
	tr := New(gw, nil)
	r := model.Request{ID: "r1", Status: model.StatusReviewed}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Advance(context.Background(), r)
		done <- err
	}()
	<-gw.entered

	_, err := tr.Advance(context.Background(), r)
	if !errors.Is(err, errs.ErrAdvanceInProgress) || !errors.Is(err, errs.ErrUpdate) {
		t.Fatalf("want ErrAdvanceInProgress, got %v", err)
	}
	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if gw.callCount() != 1 {
		t.Fatalf("duplicate write reached the backend: %d calls", gw.callCount())
	}
	if tr.InFlight("r1") {
		t.Fatalf("guard must be released")
	}
}

func TestProgressFraction(t *testing.T) {
	a := ProgressFraction(model.StatusReviewed)
	b := ProgressFraction(model.StatusInProgress)
	c := ProgressFraction(model.StatusResolved)
	if !(a < b && b < c) || c != 1.0 {
		t.Fatalf("fractions %v %v %v", a, b, c)
	}
	if a <= 0 {
		t.Fatalf("reviewed must show some progress, got %v", a)
	}
	if ProgressFraction(model.StatusUnknown) != 0 {
		t.Fatalf("unknown status must map to 0")
	}
}
