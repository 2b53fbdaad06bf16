package requests

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/model"
)

// AccountGateway is the account part of the backend.
type AccountGateway interface {
	Register(ctx context.Context, name, email, password, document string) (model.User, error)
	ChangePassword(ctx context.Context, email, document, newPassword string) (string, error)
}

// Accounts wraps registration and password reset with input checks.
type Accounts struct {
	gw AccountGateway
}

// NewAccounts constructs Accounts.
func NewAccounts(gw AccountGateway) *Accounts { return &Accounts{gw: gw} }

const minPassword = 6

// Register creates an account. document may be empty.
func (a *Accounts) Register(ctx context.Context, name, email, password, document string) (model.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return model.User{}, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if err := checkEmail(email); err != nil {
		return model.User{}, err
	}
	if len(password) < minPassword {
		return model.User{}, fmt.Errorf("%w: password must have at least %d characters", errs.ErrValidation, minPassword)
	}
	return a.gw.Register(ctx, name, email, password, strings.TrimSpace(document))
}

// ChangePassword resets the password of the account identified by email and document.
func (a *Accounts) ChangePassword(ctx context.Context, email, document, newPassword string) (string, error) {
	email, document = strings.TrimSpace(email), strings.TrimSpace(document)
	if err := checkEmail(email); err != nil {
		return "", err
	}
	if document == "" {
		return "", fmt.Errorf("%w: document is required", errs.ErrValidation)
	}
	if len(newPassword) < minPassword {
		return "", fmt.Errorf("%w: password must have at least %d characters", errs.ErrValidation, minPassword)
	}
	return a.gw.ChangePassword(ctx, email, document, newPassword)
}

func checkEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email %q", errs.ErrValidation, email)
	}
	return nil
}
