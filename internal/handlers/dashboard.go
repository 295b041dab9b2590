package handlers

import (
	"net/http"

	"weather_dashboard/internal/display"
	"weather_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusSearched  = "searched"
	statusRefreshed = "refreshed"
	statusIgnored   = "ignored"

	errNoSession       = "no session"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// SearchRequest is the search payload.
type SearchRequest struct {
	// City name; surrounding whitespace is ignored and a blank city does nothing.
	City string `json:"city" example:"Casablanca"`
}

// DashboardResponse wraps an action's outcome with the resulting view.
type DashboardResponse struct {
	Status string       `json:"status" example:"searched"`
	View   display.View `json:"view"`
}

func (h *Handler) view(s *service.Session) display.View {
	return display.BuildView(s.Dashboard.State(), h.cfg.Location)
}

func (h *Handler) respondWithView(c *gin.Context, s *service.Session, status string) {
	c.JSON(http.StatusOK, DashboardResponse{Status: status, View: h.view(s)})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Current dashboard
// @Description  Returns the rendered dashboard for the caller's session (card, error banner, status line).
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  display.View
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/dashboard [get]
func (h *Handler) getDashboard(c *gin.Context) {
	s := currentSession(c)
	if s == nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errNoSession, "dashboard_no_session", nil)
		return
	}
	c.JSON(http.StatusOK, h.view(s))
}

// @Summary      Search a city
// @Description  Trims the city and fetches its weather. A blank city is ignored and nothing is fetched.
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        body  body      SearchRequest  true  "Search payload"
// @Success      200   {object}  DashboardResponse
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/dashboard/search [post]
func (h *Handler) search(c *gin.Context) {
	s := currentSession(c)
	if s == nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errNoSession, "dashboard_no_session", nil)
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	if !s.Input.SubmitDraft(c.Request.Context(), req.City) {
		h.respondWithView(c, s, statusIgnored)
		return
	}
	h.respondWithView(c, s, statusSearched)
}

// @Summary      Refresh
// @Description  Re-fetches the current city. Ignored while no city is set.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  DashboardResponse
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/dashboard/refresh [post]
func (h *Handler) refresh(c *gin.Context) {
	s := currentSession(c)
	if s == nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errNoSession, "dashboard_no_session", nil)
		return
	}
	if !s.Dashboard.Refresh(c.Request.Context()) {
		h.respondWithView(c, s, statusIgnored)
		return
	}
	h.respondWithView(c, s, statusRefreshed)
}
