package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
	ws "github.com/kosonkh7/SOPO-Dashboard/internal/websocket"
)

// WebSocketHandler upgrades connections and registers them with the hub
type WebSocketHandler struct {
	hub      *ws.Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a websocket handler. Browsers may connect from
// the server's own host or from any of allowedOrigins; "*" allows all.
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &WebSocketHandler{
		hub:    hub,
		cfg:    cfg,
		logger: logger.With(slog.String("handler", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traceID := infrastructure.GetTraceID(r.Context())
	if traceID == "" {
		traceID = infrastructure.GenerateTraceID()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("trace_id", traceID))
		return
	}

	h.logger.InfoContext(r.Context(), "websocket connected",
		slog.String("remote_addr", conn.RemoteAddr().String()),
		slog.String("trace_id", traceID))

	ws.ServeWS(h.hub, conn, traceID, h.cfg, h.logger)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
