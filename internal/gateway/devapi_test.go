package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/civictrack/internal/crypto"
	"github.com/and161185/civictrack/internal/devapi"
	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/model"
)

func devBackend(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := devapi.New(devapi.Options{
		JWTKey:     []byte("gateway-test"),
		TokenTTL:   time.Hour,
		HashParams: crypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func TestAgainstDevBackend(t *testing.T) {
	ctx := context.Background()
	base := devBackend(t)
	var token atomic.Value
	token.Store("")
	c := New(base, func() string { return token.Load().(string) }, zaptest.NewLogger(t))

	u, err := c.Register(ctx, "Ana", "ana@x.com", "secret1", "1098")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = c.Register(ctx, "Ana", "ana@x.com", "secret1", "1098")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = c.Login(ctx, "ana@x.com", "wrong")
	require.ErrorIs(t, err, errs.ErrAuthentication)

	res, err := c.Login(ctx, "ana@x.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, u.ID, res.User.ID)
	require.InDelta(t, time.Hour.Seconds(), res.ExpiresIn.Seconds(), 2)
	token.Store(res.Token)

	created, err := c.CreateRequest(ctx, model.Request{
		Category: model.CategoryMaintenance, Description: "poste caido", Phone: "300",
		City: "Bucaramanga", Neighborhood: "Centro", Address: "Calle 1",
		Status: model.StatusReviewed, SubmitterID: u.ID,
	}, &Attachment{Name: "poste.jpg", Content: strings.NewReader("jpeg")})
	require.NoError(t, err)
	require.Equal(t, model.StatusReviewed, created.Status)
	require.Equal(t, model.DefaultDepartment, created.Department)
	require.NotEmpty(t, created.ImageURL)

	img, err := http.Get(strings.TrimSuffix(base, "/api") + created.ImageURL)
	require.NoError(t, err)
	b, _ := io.ReadAll(img.Body)
	img.Body.Close()
	require.Equal(t, "jpeg", string(b))

	mine, err := c.ListRequestsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	all, err := c.ListRequests(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = c.UpdateStatus(ctx, created.ID, model.StatusResolved)
	require.ErrorIs(t, err, errs.ErrUpdate, "skipping a step must be rejected")

	up, err := c.UpdateStatus(ctx, created.ID, model.StatusInProgress)
	require.NoError(t, err)
	require.Equal(t, model.StatusInProgress, up.Status)

	_, err = c.UpdateStatus(ctx, "missing", model.StatusInProgress)
	require.ErrorIs(t, err, errs.ErrNotFound)

	msg, err := c.ChangePassword(ctx, "ana@x.com", "1098", "secret2")
	require.NoError(t, err)
	require.NotEmpty(t, msg)
	_, err = c.ChangePassword(ctx, "ana@x.com", "0000", "secret3")
	require.ErrorIs(t, err, errs.ErrValidation)

	require.NoError(t, c.DeleteRequest(ctx, created.ID))
	require.ErrorIs(t, c.DeleteRequest(ctx, created.ID), errs.ErrNotFound)

	require.NoError(t, c.Logout(ctx, res.Token))
	_, err = c.ListRequests(ctx)
	require.ErrorIs(t, err, errs.ErrUnauthorized, "revoked token must be refused")

	_, err = c.Login(ctx, "ana@x.com", "secret2")
	require.NoError(t, err)
}
