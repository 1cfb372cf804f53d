// Package notify pushes battle events to connected players over WebSocket.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/creaturequest/pvp-server/internal/battle"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// EventType names a notification frame.
type EventType string

const (
	EventMatchFound      EventType = "match_found"
	EventBattleUpdated   EventType = "battle_updated"
	EventBattleCompleted EventType = "battle_completed"
)

// Message is the JSON frame written to clients.
type Message struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	BattleID string    `json:"battle_id,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
	Data     any       `json:"data,omitempty"`
	At       time.Time `json:"at"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
}

type delivery struct {
	playerID string
	payload  []byte
}

// Hub tracks connections per player and fans out messages to them.
type Hub struct {
	clients    map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	deliver    chan delivery
	count      chan countRequest
	done       chan struct{}
	upgrader   websocket.Upgrader
	now        func() time.Time
	logger     *zap.Logger
}

type countRequest struct {
	playerID string
	reply    chan int
}

// NewHub creates a hub. Run must be called before it delivers anything.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		deliver:    make(chan delivery, 256),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:    time.Now,
		logger: logger,
	}
}

// Run processes registrations and deliveries until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*client]struct{}{}
			return

		case c := <-h.register:
			set, ok := h.clients[c.playerID]
			if !ok {
				set = make(map[*client]struct{})
				h.clients[c.playerID] = set
			}
			set[c] = struct{}{}
			h.logger.Debug("client registered", zap.String("player_id", c.playerID))

		case c := <-h.unregister:
			h.drop(c)

		case d := <-h.deliver:
			for c := range h.clients[d.playerID] {
				select {
				case c.send <- d.payload:
				default:
					h.logger.Warn("dropping slow client", zap.String("player_id", c.playerID))
					h.drop(c)
				}
			}

		case req := <-h.count:
			req.reply <- len(h.clients[req.playerID])
		}
	}
}

func (h *Hub) drop(c *client) {
	set, ok := h.clients[c.playerID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.playerID)
	}
	h.logger.Debug("client unregistered", zap.String("player_id", c.playerID))
}

// Connections reports how many sockets a player has open.
func (h *Hub) Connections(playerID string) int {
	req := countRequest{playerID: playerID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// Publish queues msg for every connection of playerID.
func (h *Hub) Publish(playerID string, msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.At.IsZero() {
		msg.At = h.now()
	}
	msg.PlayerID = playerID
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode notification", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}
	select {
	case h.deliver <- delivery{playerID: playerID, payload: payload}:
	case <-h.done:
	}
}

// MatchFound tells a player a battle was created for them.
func (h *Hub) MatchFound(battleID, playerID, opponentID string) {
	h.Publish(playerID, Message{
		Type:     EventMatchFound,
		BattleID: battleID,
		Data:     map[string]any{"opponent_id": opponentID},
	})
}

// BattleUpdated tells both participants an action was applied.
func (h *Hub) BattleUpdated(battleID string, playerIDs []string, res battle.Result) {
	for _, id := range playerIDs {
		h.Publish(id, Message{
			Type:     EventBattleUpdated,
			BattleID: battleID,
			Data: map[string]any{
				"turn":          res.Turn,
				"active_player": res.ActivePlayer,
				"event":         res,
			},
		})
	}
}

// BattleCompleted tells both participants the battle is over.
func (h *Hub) BattleCompleted(battleID string, playerIDs []string, winnerID string) {
	for _, id := range playerIDs {
		h.Publish(id, Message{
			Type:     EventBattleCompleted,
			BattleID: battleID,
			Data:     map[string]any{"winner_id": winnerID},
		})
	}
}

// ServeHTTP upgrades the request; the player is identified by the player_id query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("player_id"))
	if playerID == "" {
		http.Error(w, "player_id is required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), playerID: playerID}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// readPump discards client frames; it only exists to observe pongs and closure.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) MatchFound(battleID, playerID, opponentID string) {}
func (Nop) BattleUpdated(battleID string, playerIDs []string, res battle.Result) {}
func (Nop) BattleCompleted(battleID string, playerIDs []string, winnerID string) {}
