package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cupgame-wallet/internal/services"
	"cupgame-wallet/internal/session"
	"cupgame-wallet/pkg/common"
)

const (
	MsgPlaceBet   = "PlaceBet"
	MsgSelectCup  = "SelectCup"
	MsgStartTimer = "StartTimer"
	MsgStopTimer  = "StopTimer"

	EventShuffleCups = "ShuffleCups"
	EventGameResult  = "GameResult"
	EventError       = "Error"

	writeWait       = 10 * time.Second
	maxMessageBytes = 4096
	maxTimerSeconds = 3600
)

var ErrConnectionClosed = errors.New("connection closed")

type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type placeBetData struct {
	Amount decimal.Decimal `json:"amount"`
}

type selectCupData struct {
	Index int `json:"index"`
}

type startTimerData struct {
	Seconds int `json:"seconds"`
}

type errorData struct {
	Message string `json:"message"`
}

type client struct {
	id    string
	token string
	conn  *websocket.Conn

	writeMu sync.Mutex
}

func (c *client) send(ev Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

// Hub serves the game channel. Each connection is bound to one session token
// given as the access_token query parameter.
type Hub struct {
	Game      *session.Game
	Countdown *services.CountdownService
	Log       zerolog.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(game *session.Game, countdown *services.CountdownService, log zerolog.Logger) *Hub {
	return &Hub{
		Game:      game,
		Countdown: countdown,
		Log:       log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*client),
	}
}

// Notify sends an event to one connection. It implements services.Notifier.
func (h *Hub) Notify(connID string, event string, payload interface{}) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnectionClosed
	}
	return c.send(Event{Type: event, Data: payload})
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleWebSocket(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse("access_token is required", nil, http.StatusUnauthorized))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	cl := &client{id: uuid.NewString(), token: token, conn: conn}
	h.register(cl)
	defer h.unregister(cl)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug().Err(err).Str("conn_id", cl.id).Msg("websocket read failed")
			}
			return
		}
		h.handleMessage(c.Request.Context(), cl, &msg)
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()
	h.Log.Debug().Str("conn_id", cl.id).Msg("client connected")
}

// unregister runs the final flush for the session this connection owned.
func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl.id)
	h.mu.Unlock()

	h.Countdown.Stop(cl.id)
	_ = cl.conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Game.CloseSession(ctx, cl.token, cl.id); err != nil {
		h.Log.Error().Err(err).Str("conn_id", cl.id).Msg("session close failed")
	}
	h.Log.Debug().Str("conn_id", cl.id).Msg("client disconnected")
}

func (h *Hub) handleMessage(ctx context.Context, cl *client, msg *Message) {
	switch msg.Type {
	case MsgPlaceBet:
		var data placeBetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.sendError(cl, "invalid PlaceBet payload")
			return
		}
		shuffle, err := h.Game.PlaceBet(ctx, cl.token, cl.id, data.Amount)
		if err != nil {
			h.sendError(cl, clientMessage(err))
			return
		}
		h.reply(cl, EventShuffleCups, shuffle)

	case MsgSelectCup:
		var data selectCupData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.sendError(cl, "invalid SelectCup payload")
			return
		}
		result, err := h.Game.SelectOutcome(ctx, cl.token, cl.id, data.Index)
		if err != nil {
			h.sendError(cl, clientMessage(err))
			return
		}
		h.reply(cl, EventGameResult, result)

	case MsgStartTimer:
		var data startTimerData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Seconds < 1 || data.Seconds > maxTimerSeconds {
			h.sendError(cl, "invalid StartTimer payload")
			return
		}
		h.Countdown.Start(cl.id, data.Seconds, h)

	case MsgStopTimer:
		h.Countdown.Stop(cl.id)

	default:
		h.sendError(cl, "unknown message type")
	}
}

func (h *Hub) reply(cl *client, event string, payload interface{}) {
	if err := cl.send(Event{Type: event, Data: payload}); err != nil {
		h.Log.Debug().Err(err).Str("conn_id", cl.id).Str("event", event).Msg("websocket write failed")
	}
}

func (h *Hub) sendError(cl *client, message string) {
	h.reply(cl, EventError, errorData{Message: message})
}
