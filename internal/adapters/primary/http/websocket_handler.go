package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsAdapter "github.com/swaraj/complaints-backend/internal/adapters/primary/websocket"
	"github.com/swaraj/complaints-backend/internal/auth"
	"github.com/swaraj/complaints-backend/internal/config"
)

// WebSocketHandler authenticates and upgrades realtime connections, then
// hands them to the connection registry.
type WebSocketHandler struct {
	registry *wsAdapter.Registry
	tm       *auth.TokenManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWebSocketHandler(
	registry *wsAdapter.Registry,
	tm *auth.TokenManager,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		registry: registry,
		tm:       tm,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			// Compression stays off: broadcast frames are tiny and
			// per-message deflate costs more than it saves.
			EnableCompression: false,
			CheckOrigin:       originChecker(cfg, logger),
		},
	}
}

// originChecker builds the Origin header check for the upgrader. Development
// mode admits everything; otherwise the origin host must match an allowed
// entry, where "*.example.com" style entries match the domain and its
// subdomains. Requests without an Origin header pass, since those come from
// non-browser clients.
func originChecker(cfg *config.Config, logger *slog.Logger) func(r *http.Request) bool {
	allowed := cfg.WebSocket.AllowedOrigins
	dev := cfg.IsDevelopment()

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if dev {
			if origin != "" {
				logger.Warn("allowing websocket origin in development mode",
					"origin", origin, "remote_addr", r.RemoteAddr)
			}
			return true
		}
		if origin == "" {
			return true
		}

		parsed, err := url.Parse(origin)
		if err != nil {
			logger.Warn("failed to parse websocket origin", "origin", origin, "error", err)
			return false
		}

		if originAllowed(parsed.Host, allowed) {
			return true
		}
		logger.Warn("websocket connection rejected due to origin",
			"origin", origin, "remote_addr", r.RemoteAddr, "allowed_origins", allowed)
		return false
	}
}

func originAllowed(host string, allowed []string) bool {
	for _, entry := range allowed {
		if wild, ok := strings.CutPrefix(entry, "*."); ok {
			if host == wild || strings.HasSuffix(host, "."+wild) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}

// ServeHTTP authenticates the ?token= query parameter, upgrades the request
// and starts the connection's read and write pumps.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.logger.Warn("websocket connection rejected: missing token",
			"request_id", requestID, "remote_addr", r.RemoteAddr)
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tm.ValidateToken(tokenString)
	if err != nil {
		h.logger.Warn("websocket connection rejected: invalid token",
			"request_id", requestID, "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an error response.
		h.logger.Error("failed to upgrade websocket connection",
			"request_id", requestID, "user_id", claims.UserID, "error", err)
		return
	}

	h.logger.Info("websocket connection established",
		"request_id", requestID, "user_id", claims.UserID, "remote_addr", r.RemoteAddr)

	client := wsAdapter.NewConn(h.registry, conn, claims.UserID, h.logger)
	h.registry.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
