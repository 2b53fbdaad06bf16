package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/civictrack/internal/model"
)

// wireUser accepts both "_id" and "id".
type wireUser struct {
	ID    string `json:"_id"`
	AltID string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u wireUser) toModel() model.User {
	id := u.ID
	if id == "" {
		id = u.AltID
	}
	return model.User{ID: strings.TrimSpace(id), Name: u.Name, Email: u.Email}
}

// seconds decodes a validity window given as a number, a numeric string or a
// Go/zeit-style duration string ("1h").
type seconds int64

func (s *seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = 0
		return nil
	}
	if b[0] != '"' {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*s = seconds(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	str = strings.TrimSpace(str)
	if str == "" {
		*s = 0
		return nil
	}
	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		*s = seconds(n)
		return nil
	}
	if strings.HasSuffix(str, "d") {
		if n, err := strconv.ParseInt(strings.TrimSuffix(str, "d"), 10, 64); err == nil {
			*s = seconds(n * 24 * 3600)
			return nil
		}
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return fmt.Errorf("expiresIn %q: %w", str, err)
	}
	*s = seconds(d / time.Second)
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	User      *wireUser `json:"user"`
	ExpiresIn seconds   `json:"expiresIn"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Document string `json:"document,omitempty"`
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	Document    string `json:"document"`
	NewPassword string `json:"newPassword"`
}

type statusUpdate struct {
	Estado string `json:"estado"`
}

var errNoRecord = errors.New("record without id")

// wireRequest is a request record as the backend serializes it.
type wireRequest struct {
	ID           string    `json:"_id"`
	AltID        string    `json:"id"`
	Category     string    `json:"categoria"`
	Description  string    `json:"descripcion"`
	Status       string    `json:"estado"`
	SubmitterID  string    `json:"usuario_id"`
	Phone        string    `json:"telefono"`
	Department   string    `json:"departamento"`
	City         string    `json:"ciudad"`
	Neighborhood string    `json:"barrio"`
	Address      string    `json:"direccion"`
	Image        string    `json:"imagen"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (w wireRequest) toModel() (model.Request, error) {
	id := w.ID
	if id == "" {
		id = w.AltID
	}
	if strings.TrimSpace(id) == "" {
		return model.Request{}, errNoRecord
	}
	st, err := model.ParseStatus(w.Status)
	if err != nil {
		return model.Request{}, fmt.Errorf("record %s: %w", id, err)
	}
	return model.Request{
		ID:           id,
		Category:     w.Category,
		Description:  w.Description,
		Status:       st,
		SubmitterID:  w.SubmitterID,
		Phone:        w.Phone,
		Department:   w.Department,
		City:         w.City,
		Neighborhood: w.Neighborhood,
		Address:      w.Address,
		ImageURL:     w.Image,
		CreatedAt:    w.CreatedAt,
	}, nil
}

// recordEnvelope accepts a bare record or one wrapped as {"solicitud": ...} / {"data": ...}.
type recordEnvelope struct {
	wireRequest
	Solicitud *wireRequest `json:"solicitud"`
	Data      *wireRequest `json:"data"`
}

func decodeRecord(body []byte) (model.Request, error) {
	var env recordEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Request{}, err
	}
	switch {
	case env.Solicitud != nil:
		return env.Solicitud.toModel()
	case env.Data != nil:
		return env.Data.toModel()
	}
	return env.wireRequest.toModel()
}

// decodeRecords accepts a JSON array or {"solicitudes": [...]} / {"data": [...]}.
// A single invalid record fails the whole listing.
func decodeRecords(body []byte) ([]model.Request, error) {
	var list []wireRequest
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
	} else {
		var env struct {
			Solicitudes []wireRequest `json:"solicitudes"`
			Data        []wireRequest `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		list = env.Solicitudes
		if list == nil {
			list = env.Data
		}
	}
	out := make([]model.Request, 0, len(list))
	for _, w := range list {
		r, err := w.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
