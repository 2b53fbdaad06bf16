// Package requests submits, lists and deletes service requests on behalf of
// the signed-in user.
package requests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/gateway"
	"github.com/and161185/civictrack/internal/model"
)

// Gateway is the part of the backend the service needs.
type Gateway interface {
	CreateRequest(ctx context.Context, r model.Request, img *gateway.Attachment) (model.Request, error)
	ListRequests(ctx context.Context) ([]model.Request, error)
	ListRequestsByUser(ctx context.Context, userID string) ([]model.Request, error)
	DeleteRequest(ctx context.Context, id string) error
}

// Identity reports the signed-in user.
type Identity interface {
	CurrentUser() (model.User, bool)
}

// Service implements request submission and listing.
type Service struct {
	gw   Gateway
	who  Identity
	log  *zap.Logger
	open func(name string) (io.ReadCloser, error)
}

// NewService constructs a Service.
func NewService(gw Gateway, who Identity, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		gw:   gw,
		who:  who,
		log:  log,
		open: func(name string) (io.ReadCloser, error) { return os.Open(name) },
	}
}

// Validate normalizes d and checks every field is present.
func Validate(d model.Draft) (model.Draft, error) {
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Department = strings.TrimSpace(d.Department)
	d.City = strings.TrimSpace(d.City)
	d.Neighborhood = strings.TrimSpace(d.Neighborhood)
	d.Address = strings.TrimSpace(d.Address)
	d.ImagePath = strings.TrimSpace(d.ImagePath)
	if d.Department == "" {
		d.Department = model.DefaultDepartment
	}

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"category", d.Category},
		{"description", d.Description},
		{"phone", d.Phone},
		{"city", d.City},
		{"neighborhood", d.Neighborhood},
		{"address", d.Address},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return d, fmt.Errorf("%w: missing %s", errs.ErrValidation, strings.Join(missing, ", "))
	}
	if !model.KnownCategory(d.Category) {
		return d, fmt.Errorf("%w: unknown category %q", errs.ErrValidation, d.Category)
	}
	return d, nil
}

// Submit validates d and creates a request owned by the signed-in user.
// New requests always start as Reviewed.
func (s *Service) Submit(ctx context.Context, d model.Draft) (model.Request, error) {
	u, ok := s.who.CurrentUser()
	if !ok {
		return model.Request{}, errs.ErrNotAuthenticated
	}
	d, err := Validate(d)
	if err != nil {
		return model.Request{}, err
	}

	var img *gateway.Attachment
	if d.ImagePath != "" {
		f, err := s.open(d.ImagePath)
		if err != nil {
			return model.Request{}, fmt.Errorf("%w: image: %w", errs.ErrValidation, err)
		}
		defer f.Close()
		img = &gateway.Attachment{Name: d.ImagePath, Content: f}
	}

	created, err := s.gw.CreateRequest(ctx, model.Request{
		Category:     d.Category,
		Description:  d.Description,
		Status:       model.StatusReviewed,
		SubmitterID:  u.ID,
		Phone:        d.Phone,
		Department:   d.Department,
		City:         d.City,
		Neighborhood: d.Neighborhood,
		Address:      d.Address,
	}, img)
	if err != nil {
		return model.Request{}, err
	}
	s.log.Info("request submitted", zap.String("request_id", created.ID), zap.String("category", created.Category))
	return created, nil
}

// ListAll returns every request visible to the user.
func (s *Service) ListAll(ctx context.Context) ([]model.Request, error) {
	if _, ok := s.who.CurrentUser(); !ok {
		return nil, errs.ErrNotAuthenticated
	}
	return s.gw.ListRequests(ctx)
}

// ListMine returns the requests submitted by the signed-in user.
func (s *Service) ListMine(ctx context.Context) ([]model.Request, error) {
	u, ok := s.who.CurrentUser()
	if !ok {
		return nil, errs.ErrNotAuthenticated
	}
	return s.gw.ListRequestsByUser(ctx, u.ID)
}

// Delete removes request id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, ok := s.who.CurrentUser(); !ok {
		return errs.ErrNotAuthenticated
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty request id", errs.ErrValidation)
	}
	if err := s.gw.DeleteRequest(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("request %s: %w", id, err)
		}
		return err
	}
	s.log.Info("request deleted", zap.String("request_id", id))
	return nil
}
