package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"partygame/internal/service"
)

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	hub      *service.Hub
	registry *service.Registry
	upgrader websocket.Upgrader
}

// NewWebSocketHandler allowedOrigins 包含 "*" 時接受任何來源
func NewWebSocketHandler(hub *service.Hub, registry *service.Registry, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// HandleWebSocket 升級連接後交給 Hub，直到連線關閉才返回
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失敗時已寫入錯誤回應
		return
	}

	h.hub.HandleConnection(c.Request.Context(), conn, h.registry)
}
