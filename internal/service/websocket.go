package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"partygame/internal/models"
	"partygame/pkg/config"
)

// MessageHandler 處理從連線讀到的事件與斷線
type MessageHandler interface {
	HandleMessage(ctx context.Context, connID string, msg *models.Message)
	RemoveConnection(ctx context.Context, connID string)
}

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	ID       string
	Conn     *websocket.Conn
	SendChan chan []byte // 消息發送通道，滿了代表客戶端太慢
	rooms    map[string]struct{}
}

// Hub 管理所有的 WebSocket 連接，實作 Broadcaster
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // code -> connID -> client
	clientsMux sync.RWMutex

	cfg    config.WebSocketConfig
	logger *slog.Logger
}

func NewHub(cfg config.WebSocketConfig, logger *slog.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		cfg:     cfg,
		logger:  logger,
	}
}

// HandleConnection 處理新的 WebSocket 連接，直到連線關閉才返回
func (h *Hub) HandleConnection(ctx context.Context, conn *websocket.Conn, handler MessageHandler) {
	client := &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		SendChan: make(chan []byte, h.cfg.SendBuffer),
		rooms:    make(map[string]struct{}),
	}
	h.addClient(client)
	h.logger.Debug("websocket connected", slog.String("conn", client.ID))

	// 確保連接關閉時清理資源
	defer func() {
		handler.RemoveConnection(ctx, client.ID)
		h.removeClient(client)
		conn.Close()
		h.logger.Debug("websocket disconnected", slog.String("conn", client.ID))
	}()

	go h.writePump(client)
	h.readPump(ctx, client, handler)
}

// readPump 持續讀取客戶端消息，同一連線的事件依序處理
func (h *Hub) readPump(ctx context.Context, client *Client, handler MessageHandler) {
	client.Conn.SetReadLimit(h.cfg.ReadLimit)
	client.Conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket unexpected close", slog.String("conn", client.ID), slog.Any("error", err))
			}
			return
		}

		var msg models.Message
		if err := json.Unmarshal(message, &msg); err != nil || msg.Event == "" {
			h.EmitToConnection(client.ID, EventError, ErrorPayload{
				Code: ErrorCode(ErrMalformedPayload),
				Msg:  "message must be a JSON object with an event field",
			})
			continue
		}
		handler.HandleMessage(ctx, client.ID, &msg)
	}
}

// writePump 將佇列中的消息寫出並定期發送心跳
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// EmitToRoom 向房間內的所有客戶端廣播
func (h *Hub) EmitToRoom(code, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	var slow []*Client
	h.clientsMux.RLock()
	for _, client := range h.rooms[code] {
		select {
		case client.SendChan <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMux.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) EmitToConnection(connID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	var slow []*Client
	h.clientsMux.RLock()
	if client, found := h.clients[connID]; found {
		select {
		case client.SendChan <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMux.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) JoinRoom(connID, code string) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[string]*Client)
	}
	h.rooms[code][connID] = client
	client.rooms[code] = struct{}{}
}

func (h *Hub) LeaveRoom(connID, code string) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if client, ok := h.clients[connID]; ok {
		delete(client.rooms, code)
	}
	h.leaveLocked(connID, code)
}

// RoomSize 獲取指定房間的在線客戶端數量
func (h *Hub) RoomSize(code string) int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.rooms[code])
}

// Shutdown 關閉所有連接，讀取迴圈會因此結束並清理
func (h *Hub) Shutdown() {
	h.clientsMux.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, client := range h.clients {
		conns = append(conns, client.Conn)
	}
	h.clientsMux.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	msg, err := models.NewMessage(event, payload)
	if err != nil {
		h.logger.Error("message encoding error", slog.String("event", event), slog.Any("error", err))
		return nil, false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("message encoding error", slog.String("event", event), slog.Any("error", err))
		return nil, false
	}
	return data, true
}

// dropSlow 關閉佇列已滿的客戶端，由讀取迴圈完成後續清理
func (h *Hub) dropSlow(clients []*Client) {
	for _, client := range clients {
		h.logger.Warn("websocket send buffer full, closing connection", slog.String("conn", client.ID))
		client.Conn.Close()
	}
}

func (h *Hub) addClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	h.clients[client.ID] = client
}

// removeClient 在持有寫鎖時關閉 SendChan，廣播端只在讀鎖下送出
func (h *Hub) removeClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for code := range client.rooms {
		h.leaveLocked(client.ID, code)
	}
	delete(h.clients, client.ID)
	close(client.SendChan)
}

func (h *Hub) leaveLocked(connID, code string) {
	members, ok := h.rooms[code]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, code)
	}
}
