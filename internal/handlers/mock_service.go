package handlers

import (
	"context"
	"sync"
	"time"

	"weather_dashboard/internal/models"
	"weather_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockController struct {
	mu        sync.Mutex
	state     models.DashboardState
	searches  []string
	refreshes int
	states    chan models.DashboardState
}

func (m *mockController) Activate(ctx context.Context) {}
func (m *mockController) Deactivate()                  {}

func (m *mockController) Search(ctx context.Context, city string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, city)
	m.state.CurrentCityName = city
	return true
}

func (m *mockController) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.CurrentCityName == "" {
		return false
	}
	m.refreshes++
	return true
}

func (m *mockController) State() models.DashboardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

func (m *mockController) Subscribe() (<-chan models.DashboardState, func()) {
	if m.states == nil {
		m.states = make(chan models.DashboardState, 1)
	}
	return m.states, func() {}
}

func (m *mockController) WatchCity(fn func(string)) {}

func (m *mockController) searched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searches...)
}

type mockSessions struct {
	mu        sync.Mutex
	session   *service.Session
	issued    string
	err       error
	lastToken string
	touched   []string
}

func (m *mockSessions) Resolve(ctx context.Context, token string) (*service.Session, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastToken = token
	if m.err != nil {
		return nil, "", m.err
	}
	issued := m.issued
	if issued == "" {
		issued = token
	}
	return m.session, issued, nil
}

func (m *mockSessions) Touch(id string) {
	m.mu.Lock()
	m.touched = append(m.touched, id)
	m.mu.Unlock()
}

type mockEventLog struct {
	resp []models.FetchEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.FetchEvent, error) {
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newMockSession(id string, ctrl *mockController) *service.Session {
	s := &service.Session{ID: id, Dashboard: ctrl}
	// a committed search syncs the draft back, as the session manager wires it
	s.Input = service.NewSearchInput("", func(ctx context.Context, city string) {
		ctrl.Search(ctx, city)
		s.Input.Sync(city)
	})
	return s
}

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, Config{Location: time.UTC})
	return h.InitRoutes()
}
