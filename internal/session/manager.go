// Package session owns the client's authentication session and keeps it in
// sync with the persisted store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/gateway"
	"github.com/and161185/civictrack/internal/kvstore"
	"github.com/and161185/civictrack/internal/model"
)

// Persisted store keys owned by the manager.
const (
	KeyToken     = "token"
	KeyUser      = "user"
	KeyExpiresAt = "expires_at"
)

var sessionKeys = []string{KeyToken, KeyUser, KeyExpiresAt}

const storeTimeout = 5 * time.Second

// Gateway is the part of the backend the manager needs.
type Gateway interface {
	Login(ctx context.Context, email, password string) (gateway.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// State is the lifecycle position of the session.
type State int

// Lifecycle states.
const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Manager holds exactly one session per process. It is safe for concurrent use;
// readers always observe a complete (token, user) pair or none.
type Manager struct {
	gw    Gateway
	store kvstore.Store
	log   *zap.Logger
	now   func() time.Time

	mu      sync.RWMutex
	state   State
	prev    State // state to return to when an in-flight login fails
	session model.Session
	epoch   uint64 // bumped by Login and Logout; voids in-flight work started earlier

	// wmu orders store writes so a Logout's delete lands after any write it supersedes.
	wmu sync.Mutex
}

// NewManager constructs a manager in the Unauthenticated state. Call Restore once at startup.
func NewManager(gw Gateway, store kvstore.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{gw: gw, store: store, log: log, now: time.Now}
}

// Login authenticates against the backend and installs the new session.
// On failure the previous session and state are left as they were.
func (m *Manager) Login(ctx context.Context, email, password string) (model.Session, error) {
	m.mu.Lock()
	if m.state == Authenticating {
		m.mu.Unlock()
		return model.Session{}, errs.ErrLoginInProgress
	}
	m.prev = m.state
	m.state = Authenticating
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	res, err := m.gw.Login(ctx, email, password)
	if err != nil {
		m.abortLogin(epoch)
		return model.Session{}, loginError(err)
	}

	s := model.Session{
		Token:     res.Token,
		User:      res.User,
		ExpiresIn: int64(res.ExpiresIn / time.Second),
		ExpiresAt: m.expiry(res),
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return model.Session{}, errSuperseded
	}
	m.session = s
	m.state = Authenticated
	m.mu.Unlock()

	if !m.persist(ctx, s, epoch) {
		return model.Session{}, errSuperseded
	}
	m.log.Info("signed in", zap.String("user_id", s.User.ID))
	return s, nil
}

var errSuperseded = fmt.Errorf("%w: session replaced while signing in", errs.ErrAuthentication)

// current reports whether no Login or Logout has started since epoch was taken.
func (m *Manager) current(epoch uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch == epoch
}

func (m *Manager) abortLogin(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch == epoch && m.state == Authenticating {
		m.state = m.prev
	}
}

func loginError(err error) error {
	if errors.Is(err, errs.ErrAuthentication) || errors.Is(err, errs.ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrAuthentication, err)
}

// expiry prefers the token's own exp claim over the backend's hint.
func (m *Manager) expiry(res gateway.LoginResult) time.Time {
	var c jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(res.Token, &c); err == nil && c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	if res.ExpiresIn > 0 {
		return m.now().Add(res.ExpiresIn)
	}
	return time.Time{}
}

// persist mirrors s to the store. A failure is logged; the in-memory session stays
// authoritative. It reports false when a later Login or Logout superseded this one;
// whatever that call writes or deletes lands after this write.
func (m *Manager) persist(ctx context.Context, s model.Session, epoch uint64) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	m.wmu.Lock()
	defer m.wmu.Unlock()
	if !m.current(epoch) {
		return false
	}

	user, err := json.Marshal(s.User)
	if err != nil {
		m.log.Error("encode session user", zap.Error(err))
		return true
	}
	exp := ""
	if !s.ExpiresAt.IsZero() {
		exp = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	kv := map[string]string{KeyToken: s.Token, KeyUser: string(user), KeyExpiresAt: exp}
	if err := kvstore.SetAll(ctx, m.store, sessionKeys, kv); err != nil {
		m.log.Warn("persist session", zap.Error(err))
	}
	return m.current(epoch)
}

// Logout clears the session. It never fails: backend and store errors are logged
// and swallowed. Calling it without a session only clears stray persisted keys.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	old := m.session
	m.session = model.Session{}
	m.state = Unauthenticated
	m.epoch++
	m.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	if old.Token != "" {
		rctx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := m.gw.Logout(rctx, old.Token); err != nil {
			m.log.Debug("backend logout", zap.Error(err))
		}
		cancel()
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	m.wmu.Lock()
	err := kvstore.DeleteAll(sctx, m.store, sessionKeys...)
	m.wmu.Unlock()
	if err != nil {
		m.log.Warn("clear persisted session", zap.Error(err))
	}
	if old.Token != "" {
		m.log.Info("signed out", zap.String("user_id", old.User.ID))
	}
}

// Restore loads the persisted session. Only a complete, decodable, unexpired
// session is installed; anything else is discarded and reported as absent.
// It needs no network access and never returns an error.
func (m *Manager) Restore(ctx context.Context) (model.Session, bool) {
	m.mu.RLock()
	if m.state != Unauthenticated {
		s, st := m.session, m.state
		m.mu.RUnlock()
		return s, st == Authenticated
	}
	epoch := m.epoch
	m.mu.RUnlock()

	s, found, err := m.load(ctx)
	if errors.Is(err, errNoSession) && !found {
		m.log.Debug("no persisted session")
		return model.Session{}, false
	}
	if err != nil {
		m.log.Warn("discarding persisted session", zap.Error(fmt.Errorf("%w: %w", errs.ErrRestoration, err)))
		if found {
			m.discard(ctx, epoch)
		}
		return model.Session{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.log.Debug("persisted session superseded while restoring")
		return m.session, m.state == Authenticated
	}
	m.session = s
	m.state = Authenticated
	return s, true
}

// discard clears a bad persisted session unless a Login or Logout has taken over the keys.
func (m *Manager) discard(ctx context.Context, epoch uint64) {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	if !m.current(epoch) {
		return
	}
	if err := kvstore.DeleteAll(ctx, m.store, sessionKeys...); err != nil {
		m.log.Warn("clear persisted session", zap.Error(err))
	}
}

var errNoSession = errors.New("no persisted session")

// load reads the persisted keys. found reports whether anything was stored.
func (m *Manager) load(ctx context.Context) (s model.Session, found bool, err error) {
	token, terr := m.store.Get(ctx, KeyToken)
	rawUser, uerr := m.store.Get(ctx, KeyUser)
	rawExp, eerr := m.store.Get(ctx, KeyExpiresAt)

	tokenAbsent := errors.Is(terr, kvstore.ErrNotFound)
	userAbsent := errors.Is(uerr, kvstore.ErrNotFound)
	expAbsent := errors.Is(eerr, kvstore.ErrNotFound)
	found = !tokenAbsent || !userAbsent || !expAbsent

	switch {
	case tokenAbsent && userAbsent:
		return s, found, errNoSession
	case terr != nil && !tokenAbsent:
		return s, found, fmt.Errorf("read token: %w", terr)
	case uerr != nil && !userAbsent:
		return s, found, fmt.Errorf("read user: %w", uerr)
	case eerr != nil && !expAbsent:
		return s, found, fmt.Errorf("read expiry: %w", eerr)
	case tokenAbsent:
		return s, found, errors.New("user without token")
	case userAbsent:
		return s, found, errors.New("token without user")
	case token == "":
		return s, found, errors.New("empty token")
	}

	var u model.User
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		return s, found, fmt.Errorf("decode user: %w", err)
	}
	if !u.Valid() {
		return s, found, errors.New("user without id")
	}
	s = model.Session{Token: token, User: u}

	if rawExp != "" {
		exp, err := time.Parse(time.RFC3339, rawExp)
		if err != nil {
			return model.Session{}, found, fmt.Errorf("decode expiry: %w", err)
		}
		s.ExpiresAt = exp
		if s.Expired(m.now()) {
			return model.Session{}, found, errors.New("session expired")
		}
	}
	return s, found, nil
}

// CurrentUser returns the signed-in user.
func (m *Manager) CurrentUser() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.session.Valid() {
		return model.User{}, false
	}
	return m.session.User, true
}

// Token returns the bearer token, or "" when signed out. It is a gateway.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

// Session returns a copy of the current session.
func (m *Manager) Session() (model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.session.Valid()
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
