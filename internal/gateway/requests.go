package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"

	"github.com/and161185/civictrack/internal/model"
)

// Attachment is the optional photo sent with a new request.
type Attachment struct {
	Name    string
	Content io.Reader
}

// CreateRequest submits r as a multipart form. r.ID is ignored.
func (cl *Client) CreateRequest(ctx context.Context, r model.Request, img *Attachment) (model.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"categoria", r.Category},
		{"descripcion", r.Description},
		{"telefono", r.Phone},
		{"departamento", r.Department},
		{"ciudad", r.City},
		{"barrio", r.Neighborhood},
		{"direccion", r.Address},
		{"estado", r.Status.String()},
		{"usuario_id", r.SubmitterID},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return model.Request{}, err
		}
	}
	if img != nil {
		if err := writeImage(w, img); err != nil {
			return model.Request{}, fmt.Errorf("gateway: %s: attach image: %w", OpCreate, err)
		}
	}
	if err := w.Close(); err != nil {
		return model.Request{}, err
	}

	raw, err := cl.do(ctx, call{
		op: OpCreate, method: http.MethodPost, path: "/solicitud/create",
		body: &buf, contentType: w.FormDataContentType(),
	})
	if err != nil {
		return model.Request{}, err
	}
	created, err := decodeRecord(raw)
	if err != nil {
		return model.Request{}, malformed(OpCreate, err.Error())
	}
	return created, nil
}

func writeImage(w *multipart.Writer, img *Attachment) error {
	name := filepath.Base(img.Name)
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imagen"; filename=%q`, name))
	h.Set("Content-Type", ctype)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, img.Content)
	return err
}

// ListRequests returns every request known to the backend.
func (cl *Client) ListRequests(ctx context.Context) ([]model.Request, error) {
	return cl.list(ctx, "/solicitud/getall")
}

// ListRequestsByUser returns the requests submitted by userID.
func (cl *Client) ListRequestsByUser(ctx context.Context, userID string) ([]model.Request, error) {
	return cl.list(ctx, "/solicitud/getall/"+url.PathEscape(userID))
}

func (cl *Client) list(ctx context.Context, path string) ([]model.Request, error) {
	raw, err := cl.do(ctx, call{op: OpList, method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	out, err := decodeRecords(raw)
	if err != nil {
		return nil, malformed(OpList, err.Error())
	}
	return out, nil
}

// UpdateStatus sets the status of request id and returns the stored record.
// A 2xx response that carries no record yields a zero Request and no error.
func (cl *Client) UpdateStatus(ctx context.Context, id string, st model.Status) (model.Request, error) {
	body, err := jsonBody(statusUpdate{Estado: st.String()})
	if err != nil {
		return model.Request{}, err
	}
	raw, err := cl.do(ctx, call{
		op: OpUpdateStatus, method: http.MethodPut,
		path: "/solicitud/solicitudes/update/" + url.PathEscape(id),
		body: body, contentType: "application/json",
	})
	if err != nil {
		return model.Request{}, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.Request{}, nil
	}
	updated, err := decodeRecord(raw)
	if errors.Is(err, errNoRecord) {
		return model.Request{}, nil
	}
	if err != nil {
		return model.Request{}, malformed(OpUpdateStatus, err.Error())
	}
	return updated, nil
}

// DeleteRequest removes request id.
func (cl *Client) DeleteRequest(ctx context.Context, id string) error {
	_, err := cl.do(ctx, call{
		op: OpDelete, method: http.MethodDelete,
		path: "/solicitud/solicitudes/delete/" + url.PathEscape(id),
	})
	return err
}
