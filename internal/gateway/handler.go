package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from application origins; origin policy is
	// enforced by the CORS layer in front of this handler.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades HTTP requests to realtime connections and hands them to
// the gateway. The optional "ns" query parameter selects the namespace.
type Handler struct {
	gw             *Gateway
	maxMessageSize int64
	logger         zerolog.Logger
}

// NewHandler creates the websocket upgrade handler.
func NewHandler(gw *Gateway, maxMessageSize int64, logger zerolog.Logger) *Handler {
	return &Handler{gw: gw, maxMessageSize: maxMessageSize, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ns, ok := models.ParseNamespace(r.URL.Query().Get("ns"))
	if !ok {
		http.Error(w, "unknown namespace", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(ws, ns, h.gw, h.maxMessageSize, h.logger)
	h.gw.Register(c)

	go c.writePump()
	// The request context dies with this handler once the socket is
	// hijacked, so the pump runs on its own context.
	go c.readPump(context.Background())
}
