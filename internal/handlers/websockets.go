package handlers

import (
	"net/http"
	"time"

	"weather_dashboard/internal/display"
	"weather_dashboard/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Default origin policy: same host only.
var upgrader = websocket.Upgrader{}

// @Summary      Live dashboard stream
// @Description  WebSocket. Sends {"type":"state","data":View} now and on every state change.
// @Tags         dashboard
// @Success      101
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	sess := currentSession(c)
	if sess == nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errNoSession, "ws_no_session", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	states, unsubscribe := sess.Dashboard.Subscribe()
	defer unsubscribe()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.sendState(conn, sess.Dashboard.State()); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "session", sess.ID, "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			// an open tab keeps its session alive
			h.services.Sessions.Touch(sess.ID)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "session", sess.ID, "err", err)
				}
				return
			}
		case st := <-states:
			if err := h.sendState(conn, st); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "session", sess.ID, "err", err)
				}
				return
			}
		}
	}
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// sendState renders st and writes it with a write deadline.
func (h *Handler) sendState(conn *websocket.Conn, st models.DashboardState) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "state", Data: display.BuildView(st, h.cfg.Location)})
}
