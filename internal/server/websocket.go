package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 64 << 10
	wsSendBuffer     = 256
)

// WebSocket message types.
const (
	WSTypeSnapshot = "snapshot"
	WSTypeIntent   = "intent"
	WSTypeResult   = "result"
	WSTypeRejected = "rejected"
	WSTypeError    = "error"
	WSTypePing     = "ping"
	WSTypePong     = "pong"
)

// WSMessage is the envelope for every WebSocket frame.
type WSMessage struct {
	Type     string          `json:"type"`
	GameID   string          `json:"gameId,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	gameID   string
	playerID string
	seat     game.Authority

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub serves seats over WebSocket. Each connection is bound to one seat of
// one game by the game and player query parameters.
type Hub struct {
	games    GameHost
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
}

// NewHub creates a hub. An empty allowedOrigins keeps gorilla's same-host
// check; "*" allows any origin.
func NewHub(games GameHost, allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		games:      games,
		logger:     logger,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
	h.upgrader.CheckOrigin = originChecker(allowedOrigins)
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		return set["*"] || set[r.Header.Get("Origin")]
	}
}

// Run owns client registration until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.cancel()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("websocket client registered",
				zap.String("game_id", client.gameID),
				zap.String("player_id", client.playerID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.cancel()
				h.logger.Info("websocket client unregistered",
					zap.String("game_id", client.gameID),
					zap.String("player_id", client.playerID),
				)
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches it to the requested seat.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game")
	playerID := r.URL.Query().Get("player")
	if gameID == "" || playerID == "" {
		http.Error(w, "game and player query parameters are required", http.StatusBadRequest)
		return
	}
	auth, err := h.games.Authority(gameID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if !auth.HasPlayer(playerID) {
		http.Error(w, "player is not seated in this game", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &wsClient{
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		gameID:   gameID,
		playerID: playerID,
		seat:     auth.Seat(playerID),
		ctx:      ctx,
		cancel:   cancel,
	}
	select {
	case h.register <- client:
	case <-h.done:
		cancel()
		conn.Close()
		return
	}

	updates, err := client.seat.Subscribe(ctx)
	if err != nil {
		h.drop(client)
		conn.Close()
		return
	}
	go client.writePump(h.logger)
	go client.forward(updates)
	go client.readPump(h)
}

func (h *Hub) drop(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.cancel()
	}
}

func (c *wsClient) enqueue(msgType string, data any) {
	msg := WSMessage{Type: msgType, GameID: c.gameID, PlayerID: c.playerID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return
		}
		msg.Data = raw
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	case <-c.ctx.Done():
	}
}

func (c *wsClient) forward(updates <-chan *game.Snapshot) {
	for snap := range updates {
		c.enqueue(WSTypeSnapshot, snap)
	}
}

func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(wsMaxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.enqueue(WSTypeError, map[string]string{"message": "malformed message"})
			continue
		}
		c.handle(h.logger, msg)
	}
}

func (c *wsClient) handle(logger *zap.Logger, msg WSMessage) {
	switch msg.Type {
	case WSTypePing:
		c.enqueue(WSTypePong, nil)

	case WSTypeIntent:
		intent, err := game.ParseIntent(msg.Data)
		if err != nil {
			c.enqueue(WSTypeError, map[string]string{"message": err.Error()})
			return
		}
		result, err := c.seat.Submit(c.ctx, intent)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Debug("websocket intent failed",
					zap.String("game_id", c.gameID),
					zap.String("player_id", c.playerID),
					zap.Error(err),
				)
			}
			c.enqueue(WSTypeError, map[string]string{"message": err.Error()})
			return
		}
		if !result.Accepted {
			c.enqueue(WSTypeRejected, result)
			return
		}
		c.enqueue(WSTypeResult, result)

	default:
		c.enqueue(WSTypeError, map[string]string{"message": "unknown message type " + msg.Type})
	}
}

func (c *wsClient) writePump(logger *zap.Logger) {
	defer c.conn.Close()
	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("websocket write failed", zap.String("player_id", c.playerID), zap.Error(err))
				c.cancel()
				return
			}
		}
	}
}
