package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/and161185/civictrack/internal/errs"
)

// Operation names used in errors and logs.
const (
	OpLogin          = "login"
	OpLogout         = "logout"
	OpRegister       = "register"
	OpChangePassword = "change_password"
	OpCreate         = "create_request"
	OpList           = "list_requests"
	OpUpdateStatus   = "update_status"
	OpDelete         = "delete_request"
)

// APIError describes a failed backend call. StatusCode is 0 when no response
// was received. It matches every sentinel in Kinds via errors.Is.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Kinds      []error
	cause      error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway: %s", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes the sentinels and, for transport failures, the cause.
func (e *APIError) Unwrap() []error {
	out := append([]error(nil), e.Kinds...)
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// opKind is the sentinel every failure of op carries.
func opKind(op string) error {
	switch op {
	case OpLogin:
		return errs.ErrAuthentication
	case OpUpdateStatus:
		return errs.ErrUpdate
	}
	return nil
}

func transportError(op string, err error) error {
	kinds := []error{errs.ErrNetwork}
	// a login that never reached the backend is a network failure, not a rejection
	if k := opKind(op); k != nil && op != OpLogin {
		kinds = append([]error{k}, kinds...)
	}
	return &APIError{Op: op, Message: err.Error(), Kinds: kinds, cause: err}
}

func statusError(op string, code int, body []byte) error {
	var kinds []error
	if code >= 500 && op == OpLogin {
		kinds = []error{errs.ErrNetwork}
	} else if k := opKind(op); k != nil {
		kinds = append(kinds, k)
	}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kinds = append(kinds, errs.ErrUnauthorized)
	case code == http.StatusNotFound:
		kinds = append(kinds, errs.ErrNotFound)
	case code == http.StatusConflict:
		kinds = append(kinds, errs.ErrAlreadyExists)
	case code == http.StatusTooManyRequests:
		kinds = append(kinds, errs.ErrRateLimited)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		kinds = append(kinds, errs.ErrValidation)
	case code >= 500 && op != OpLogin:
		kinds = append(kinds, errs.ErrNetwork)
	}
	return &APIError{Op: op, StatusCode: code, Message: messageOf(body), Kinds: kinds}
}

// malformed reports a 2xx payload that failed validation.
func malformed(op, detail string) error {
	kinds := []error{errs.ErrMalformedResponse}
	if k := opKind(op); k != nil {
		kinds = append([]error{k}, kinds...)
	}
	return &APIError{Op: op, Message: detail, Kinds: kinds}
}

// messageOf extracts a human message from an error body.
func messageOf(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(body, &m) == nil {
		for _, s := range []string{m.Message, m.Error, m.Msg} {
			if s != "" {
				return s
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// IsAPIError reports whether err is an *APIError with the given status code.
func IsAPIError(err error, code int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == code
}
