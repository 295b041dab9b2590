package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"weather_dashboard/internal/logger"
	"weather_dashboard/internal/metrics"
	"weather_dashboard/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL = 30 * 24 * time.Hour
	defaultIdleTTL  = 30 * time.Minute

	// reissue tokens that expire within this window
	tokenRenewWindow = 24 * time.Hour

	tokenIssuer = "weather_dashboard"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrManagerClosed  = errors.New("session manager closed")
	errEmptySessionID = errors.New("empty session id")
)

// Session is one browser's dashboard.
type Session struct {
	ID        string
	Dashboard Controller
	Input     *SearchInput

	activateOnce sync.Once
	ready        chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
	lastSeen     time.Time
}

// Ready is closed once the dashboard's startup load has finished.
func (s *Session) Ready() <-chan struct{} { return s.ready }

type SessionConfig struct {
	Secret   string
	TokenTTL time.Duration
	IdleTTL  time.Duration
}

// DashboardFactory builds the controller for a session id.
type DashboardFactory func(sessionID string) Controller

// DashboardFactoryFor returns a factory that gives every session its own
// namespace in the settings store, so lastCity is kept per browser.
func DashboardFactoryFor(cfg DashboardConfig, deps DashboardDeps) DashboardFactory {
	return func(sessionID string) Controller {
		c := cfg
		c.SessionID = sessionID
		d := deps
		if d.Settings != nil {
			d.Settings = repository.Scoped(d.Settings, "session:"+sessionID)
		}
		return NewDashboard(c, d)
	}
}

var _ Sessions = (*SessionManager)(nil)

// Claims carries the session id as the JWT subject.
type Claims struct {
	jwt.RegisteredClaims
}

type SessionManager struct {
	cfg          SessionConfig
	secret       []byte
	newDashboard DashboardFactory
	metrics      *metrics.Metrics
	log          *logger.Logger

	// dashboards outlive the request that created them
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	now      func() time.Time
}

func NewSessionManager(cfg SessionConfig, factory DashboardFactory, m *metrics.Metrics, log *logger.Logger) *SessionManager {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = randomSecret()
		if log != nil {
			log.Warnw("session_secret_generated", "hint", "set session.secret to keep sessions across restarts")
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		cfg:          cfg,
		secret:       secret,
		newDashboard: factory,
		metrics:      m,
		log:          log,
		baseCtx:      ctx,
		cancel:       cancel,
		sessions:     make(map[string]*Session),
		now:          time.Now,
	}
}

// Resolve returns the session the token points to, creating it on first
// sight. A missing or invalid token gets a brand new session. Activation
// runs in the background so a slow provider never holds up the request;
// its outcome reaches the browser through Subscribe.
// The returned token differs from the given one whenever a new one was issued.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, string, error) {
	id, exp, err := m.parseToken(token)
	if err != nil {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, "", ErrManagerClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		s = m.newSession(id)
		m.sessions[id] = s
		m.metrics.SessionOpened()
		if m.log != nil {
			m.log.Infow("session_opened", "session", id, "reused_token", err == nil)
		}
	}
	s.lastSeen = m.now()
	m.mu.Unlock()

	if err != nil || exp.Sub(m.now()) < tokenRenewWindow {
		if token, err = m.issueToken(id); err != nil {
			return nil, "", err
		}
	}

	s.activateOnce.Do(func() {
		go func() {
			defer close(s.ready)
			s.Dashboard.Activate(s.ctx)
		}()
	})
	return s, token, nil
}

func (m *SessionManager) newSession(id string) *Session {
	d := m.newDashboard(id)
	ctx, cancel := context.WithCancel(m.baseCtx)
	s := &Session{ID: id, Dashboard: d, ready: make(chan struct{}), ctx: ctx, cancel: cancel}
	s.Input = NewSearchInput("", func(ctx context.Context, city string) {
		d.Search(ctx, city)
	})
	d.WatchCity(s.Input.Sync)
	return s
}

// Touch marks the session as in use so the sweeper keeps it.
func (m *SessionManager) Touch(id string) {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.lastSeen = m.now()
	}
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run evicts idle sessions every tick until ctx is canceled.
func (m *SessionManager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweep()
		}
	}
}

func (m *SessionManager) sweep() {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		// aborts a startup fetch still in flight
		s.cancel()
		s.Dashboard.Deactivate()
		m.metrics.SessionClosed()
		if m.log != nil {
			m.log.Infow("session_evicted", "session", s.ID)
		}
	}
}

// Close deactivates every dashboard. Resolve fails afterwards.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	m.cancel()
	for _, s := range all {
		s.cancel()
		s.Dashboard.Deactivate()
		m.metrics.SessionClosed()
	}
}

func (m *SessionManager) issueToken(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errEmptySessionID
	}
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// parseToken returns the session id and expiry carried by a valid token.
func (m *SessionManager) parseToken(raw string) (string, time.Time, error) {
	if raw == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", time.Time{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", time.Time{}, ErrInvalidToken
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return claims.Subject, exp, nil
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return []byte(hex.EncodeToString(b))
}
