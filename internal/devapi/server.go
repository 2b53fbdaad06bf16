// Package devapi is an in-memory implementation of the civictrack REST backend
// for local runs and tests.
package devapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/crypto"
	"github.com/and161185/civictrack/internal/limiter"
)

// Options configures the dev backend.
type Options struct {
	JWTKey     []byte
	TokenTTL   time.Duration
	Limiter    limiter.Limiter // nil uses an in-memory limiter with limiter.DefaultPolicy
	HashParams crypto.Params   // zero uses crypto.DefaultParams
	Now        func() time.Time
}

// Server serves the REST contract under /api.
type Server struct {
	log    *zap.Logger
	data   *data
	tokens *tokens
	lim    limiter.Limiter
	hash   crypto.Params
	now    func() time.Time
	engine *gin.Engine
}

// New builds a server. The signing key is required.
func New(opts Options, log *zap.Logger) (*Server, error) {
	if len(opts.JWTKey) == 0 {
		return nil, errors.New("devapi: missing jwt signing key")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limiter == nil {
		opts.Limiter = limiter.NewMemory(limiter.DefaultPolicy)
	}
	if opts.HashParams == (crypto.Params{}) {
		opts.HashParams = crypto.DefaultParams
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:    log,
		data:   newData(),
		tokens: newTokens(opts.JWTKey, opts.TokenTTL, opts.Now),
		lim:    opts.Limiter,
		hash:   opts.HashParams,
		now:    opts.Now,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), recovery(s.log), logging(s.log))

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api.GET("/uploads/:id", s.image)

	auth := api.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.POST("/change-password", s.changePassword)
	auth.POST("/logout", s.requireAuth(), s.logout)

	sol := api.Group("/solicitud", s.requireAuth())
	sol.POST("/create", s.createRequest)
	sol.GET("/getall", s.listRequests)
	sol.GET("/getall/:userId", s.listRequests)
	sol.PUT("/solicitudes/update/:id", s.updateStatus)
	sol.DELETE("/solicitudes/delete/:id", s.deleteRequest)

	return r
}

// Handler returns the traced HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "ct-devapi")
}
