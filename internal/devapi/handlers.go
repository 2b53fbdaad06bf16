package devapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/crypto"
	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/limiter"
	"github.com/and161185/civictrack/internal/model"
)

const maxImage = 5 << 20

type userJSON struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserJSON(u model.User) userJSON { return userJSON{ID: u.ID, Name: u.Name, Email: u.Email} }

type recordJSON struct {
	ID           string    `json:"_id"`
	Category     string    `json:"categoria"`
	Description  string    `json:"descripcion"`
	Status       string    `json:"estado"`
	SubmitterID  string    `json:"usuario_id"`
	Phone        string    `json:"telefono"`
	Department   string    `json:"departamento"`
	City         string    `json:"ciudad"`
	Neighborhood string    `json:"barrio"`
	Address      string    `json:"direccion"`
	Image        string    `json:"imagen,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toRecordJSON(r model.Request) recordJSON {
	return recordJSON{
		ID: r.ID, Category: r.Category, Description: r.Description, Status: r.Status.String(),
		SubmitterID: r.SubmitterID, Phone: r.Phone, Department: r.Department, City: r.City,
		Neighborhood: r.Neighborhood, Address: r.Address, Image: r.ImageURL, CreatedAt: r.CreatedAt,
	}
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"message": msg})
}

func newID() string {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return id.String()
}

func (s *Server) register(c *gin.Context) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Document string `json:"document"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(in.Name) == "" || !strings.Contains(in.Email, "@") || in.Password == "" {
		fail(c, http.StatusBadRequest, "name, email and password are required")
		return
	}
	hash, err := crypto.HashPassword(in.Password, s.hash)
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal")
		return
	}
	u := model.User{ID: newID(), Name: strings.TrimSpace(in.Name), Email: normEmail(in.Email)}
	if err := s.data.addAccount(&account{user: u, document: strings.TrimSpace(in.Document), hash: hash}); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			fail(c, http.StatusConflict, "email already registered")
			return
		}
		fail(c, http.StatusInternalServerError, "internal")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created", "user": toUserJSON(u)})
}

func (s *Server) login(c *gin.Context) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Email == "" || in.Password == "" {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}
	ctx := c.Request.Context()
	clientHash := limiter.HashClient(c.ClientIP())

	allowed, retry, err := s.lim.Allow(ctx, in.Email, clientHash)
	if err != nil {
		s.log.Error("limiter allow", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal")
		return
	}
	if !allowed {
		c.Header("Retry-After", retryAfter(retry))
		fail(c, http.StatusTooManyRequests, "too many failed attempts")
		return
	}

	acct, ok := s.data.accountByEmail(in.Email)
	match := false
	if ok {
		match, err = crypto.VerifyPassword(in.Password, acct.hash)
		if err != nil {
			s.log.Error("verify password", zap.Error(err))
		}
	}
	if !match {
		if blocked, d, ferr := s.lim.Failure(ctx, in.Email, clientHash); ferr == nil && blocked {
			c.Header("Retry-After", retryAfter(d))
			fail(c, http.StatusTooManyRequests, "too many failed attempts")
			return
		}
		// unknown email and wrong password look the same
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := s.lim.Success(ctx, in.Email, clientHash); err != nil {
		s.log.Debug("limiter reset", zap.Error(err))
	}

	tok, exp, err := s.tokens.issue(acct.user)
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     tok,
		"user":      toUserJSON(acct.user),
		"expiresIn": int64(exp.Sub(s.now()) / time.Second),
	})
}

func retryAfter(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

func (s *Server) logout(c *gin.Context) {
	if cl := claimsFrom(c); cl != nil {
		s.tokens.revoke(cl)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (s *Server) changePassword(c *gin.Context) {
	var in struct {
		Email       string `json:"email"`
		Document    string `json:"document"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Email == "" || in.Document == "" || in.NewPassword == "" {
		fail(c, http.StatusBadRequest, "email, document and newPassword are required")
		return
	}
	acct, ok := s.data.accountByEmail(in.Email)
	if !ok || acct.document == "" || acct.document != strings.TrimSpace(in.Document) {
		fail(c, http.StatusBadRequest, "email or document do not match")
		return
	}
	hash, err := crypto.HashPassword(in.NewPassword, s.hash)
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal")
		return
	}
	s.data.setHash(in.Email, hash)
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (s *Server) createRequest(c *gin.Context) {
	caller, _ := UserIDFromCtx(c.Request.Context())
	r := model.Request{
		ID:           newID(),
		Category:     strings.TrimSpace(c.PostForm("categoria")),
		Description:  strings.TrimSpace(c.PostForm("descripcion")),
		Phone:        strings.TrimSpace(c.PostForm("telefono")),
		Department:   strings.TrimSpace(c.PostForm("departamento")),
		City:         strings.TrimSpace(c.PostForm("ciudad")),
		Neighborhood: strings.TrimSpace(c.PostForm("barrio")),
		Address:      strings.TrimSpace(c.PostForm("direccion")),
		SubmitterID:  strings.TrimSpace(c.PostForm("usuario_id")),
		Status:       model.StatusReviewed,
		CreatedAt:    s.now().UTC(),
	}
	if r.SubmitterID == "" {
		r.SubmitterID = caller
	}
	if r.SubmitterID != caller {
		fail(c, http.StatusForbidden, "usuario_id does not match the token")
		return
	}
	if !model.KnownCategory(r.Category) || r.Description == "" || r.Phone == "" ||
		r.City == "" || r.Neighborhood == "" || r.Address == "" {
		fail(c, http.StatusBadRequest, "missing or invalid fields")
		return
	}
	if r.Department == "" {
		r.Department = model.DefaultDepartment
	}
	if st := c.PostForm("estado"); st != "" && st != model.StatusReviewed.String() {
		fail(c, http.StatusBadRequest, "new requests start as "+model.StatusReviewed.String())
		return
	}

	rec := &record{req: r}
	if fh, err := c.FormFile("imagen"); err == nil {
		if fh.Size > maxImage {
			fail(c, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "unreadable image")
			return
		}
		rec.image, err = io.ReadAll(io.LimitReader(f, maxImage))
		_ = f.Close()
		if err != nil {
			fail(c, http.StatusBadRequest, "unreadable image")
			return
		}
		rec.imageType = fh.Header.Get("Content-Type")
		rec.req.ImageURL = "/api/uploads/" + r.ID
	}
	s.data.addRecord(rec)
	c.JSON(http.StatusCreated, toRecordJSON(rec.req))
}

func (s *Server) image(c *gin.Context) {
	rec, ok := s.data.record(c.Param("id"))
	if !ok || len(rec.image) == 0 {
		fail(c, http.StatusNotFound, "not found")
		return
	}
	ct := rec.imageType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Data(http.StatusOK, ct, rec.image)
}

func (s *Server) listRequests(c *gin.Context) {
	list := s.data.list(c.Param("userId"))
	out := make([]recordJSON, 0, len(list))
	for _, r := range list {
		out = append(out, toRecordJSON(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateStatus(c *gin.Context) {
	var in struct {
		Estado string `json:"estado"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	target, err := model.ParseStatus(in.Estado)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := s.data.advance(c.Param("id"), target)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		fail(c, http.StatusNotFound, "request not found")
		return
	case errors.Is(err, errs.ErrUpdate):
		fail(c, http.StatusConflict, "status can only advance one step")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "internal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated", "solicitud": toRecordJSON(updated)})
}

func (s *Server) deleteRequest(c *gin.Context) {
	if !s.data.deleteRecord(c.Param("id")) {
		fail(c, http.StatusNotFound, "request not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
