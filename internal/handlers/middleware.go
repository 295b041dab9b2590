package handlers

import (
	"errors"
	"net/http"

	"weather_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	sessionCookie    = "wd_session"
	sessionCtxKey    = "session"
	sessionCookieAge = 30 * 24 * 60 * 60 // seconds

	errSessionUnavailable = "session unavailable"
)

// sessionMiddleware resolves the browser's dashboard from its cookie and
// re-sets the cookie whenever a new token was issued.
func (h *Handler) sessionMiddleware(c *gin.Context) {
	token, _ := c.Cookie(sessionCookie)

	sess, issued, err := h.services.Sessions.Resolve(c.Request.Context(), token)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, service.ErrManagerClosed) {
			code = http.StatusServiceUnavailable
		}
		if h.log != nil {
			h.log.Errorw("session_resolve_failed", "err", err)
		}
		c.AbortWithStatusJSON(code, gin.H{"error": errSessionUnavailable})
		return
	}

	if issued != "" && issued != token {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, issued, sessionCookieAge, "/", "", h.cfg.SecureCookie, true)
	}

	c.Set(sessionCtxKey, sess)
	c.Next()
}

// currentSession returns the session stored by sessionMiddleware.
func currentSession(c *gin.Context) *service.Session {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		return nil
	}
	s, _ := v.(*service.Session)
	return s
}
