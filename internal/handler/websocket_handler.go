package handler

import (
	"net/http"
	"strings"

	ws "github.com/gorilla/websocket"
	"github.com/innovators/mlms/mlms-backend/internal/domain"
	"github.com/innovators/mlms/mlms-backend/internal/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SessionFinder looks up form sessions so subscriptions to unknown sessions can be refused
type SessionFinder interface {
	GetSession(id string) (*domain.FormSession, error)
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *websocket.Hub
	sessions       SessionFinder
	allowedOrigins map[string]bool
	upgrader       ws.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *websocket.Hub, sessions SessionFinder, allowedOrigins []string) *WebSocketHandler {
	// Build origin lookup map
	originMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	h := &WebSocketHandler{
		hub:            hub,
		sessions:       sessions,
		allowedOrigins: originMap,
	}

	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the request origin against allowed origins
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Allow requests with no Origin header (e.g., same-origin or non-browser clients)
		return true
	}

	if h.allowedOrigins[origin] {
		return true
	}

	log.Warn().
		Str("origin", origin).
		Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// HandleWS godoc
// @Summary Subscribe to realtime events
// @Description Upgrades to a WebSocket streaming events for a topic: "portfolio" (default) or "session:<id>"
// @Tags realtime
// @Param topic query string false "Topic to subscribe to"
// @Success 101
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /ws [get]
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	topic, err := websocket.ParseTopic(c.QueryParam("topic"))
	if err != nil {
		log.Debug().Str("topic", c.QueryParam("topic")).Msg("WebSocket connection rejected: invalid topic")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid topic")
	}

	if sessionID, ok := strings.CutPrefix(topic, websocket.SessionTopic("")); ok && h.sessions != nil {
		if _, err := h.sessions.GetSession(sessionID); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("WebSocket connection rejected: unknown session")
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return err
	}

	// Create client and register with hub
	client := websocket.NewClient(conn, topic, h.hub)
	h.hub.Register(client)

	log.Info().
		Str("topic", topic).
		Str("client_id", client.ID()).
		Msg("WebSocket client connected")

	// Start read/write pumps in goroutines
	go client.WritePump()
	go client.ReadPump()

	return nil
}
