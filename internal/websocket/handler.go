package websocket

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/matchmaker"
)

// Message types
const (
	TypeJoin                 = "join"
	TypeMove                 = "move"
	TypeReconnect            = "reconnect"
	TypeWaiting              = "waiting"
	TypeMatched              = "matched"
	TypeState                = "state"
	TypeGameOver             = "gameOver"
	TypeError                = "error"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeOpponentReconnected  = "opponentReconnected"
)

// Join modes
const (
	ModeQueue = "queue"
	ModeBot   = "bot"
)

// Message represents an outgoing WebSocket message
type Message struct {
	Type              string       `json:"type"`
	GameID            string       `json:"gameId,omitempty"`
	Opponent          string       `json:"opponent,omitempty"`
	YourTurn          bool         `json:"yourTurn,omitempty"`
	State             *match.State `json:"state,omitempty"`
	Winner            string       `json:"winner,omitempty"`
	Reason            string       `json:"reason,omitempty"`
	Message           string       `json:"message,omitempty"`
	ReconnectDeadline string       `json:"reconnectDeadline,omitempty"`
	PlayerNum         int          `json:"playerNum,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type   string `json:"type"`
	Column int    `json:"column"`
	GameID string `json:"gameId,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Depth  int    `json:"depth,omitempty"`
}

// Handler processes WebSocket messages
type Handler struct {
	hub        *Hub
	matchmaker *matchmaker.Matchmaker
	maxDepth   int
}

// NewHandler creates a new message handler. Requested bot depths are
// clamped to maxDepth.
func NewHandler(hub *Hub, mm *matchmaker.Matchmaker, maxDepth int) *Handler {
	return &Handler{
		hub:        hub,
		matchmaker: mm,
		maxDepth:   maxDepth,
	}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("player", client.username).Msg("bad message")
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case TypeJoin:
		h.handleJoin(client, msg)
	case TypeMove:
		h.handleMove(client, msg.Column)
	case TypeReconnect:
		h.handleReconnect(client, msg.GameID)
	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown message type"})
	}
}

func (h *Handler) handleJoin(client *Client, msg IncomingMessage) {
	if existing := h.matchmaker.GetGameByPlayer(client.username); existing != nil {
		if existing.GetState().Status != match.StatusFinished {
			h.handleReconnectToGame(client, existing)
			return
		}
	}

	switch msg.Mode {
	case ModeBot:
		depth := msg.Depth
		if h.maxDepth > 0 && depth > h.maxDepth {
			depth = h.maxDepth
		}
		m, err := h.matchmaker.StartBotMatch(client.username, depth)
		if err != nil {
			client.sendMessage(Message{Type: TypeError, Message: err.Error()})
			return
		}
		h.matched(client, m)

	case "", ModeQueue:
		ch, err := h.matchmaker.JoinQueue(client.username)
		if err != nil {
			client.sendMessage(Message{Type: TypeError, Message: err.Error()})
			return
		}
		client.sendMessage(Message{Type: TypeWaiting, Message: "Looking for opponent..."})

		go func() {
			m, ok := <-ch
			if !ok || m == nil {
				return
			}
			h.matched(client, m)
		}()

	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown join mode"})
	}
}

// matched seats the client in m and tells it who it plays.
func (h *Handler) matched(client *Client, m *match.Match) {
	h.hub.RegisterToGame(m.ID, client)

	p, _ := m.PlayerFor(client.username)
	state := m.GetState()
	opponent := state.Player2
	if p == game.Player2 {
		opponent = state.Player1
	}

	client.sendMessage(Message{
		Type:      TypeMatched,
		GameID:    m.ID,
		Opponent:  opponent,
		YourTurn:  state.CurrentTurn == match.PlayerNum(p),
		PlayerNum: match.PlayerNum(p),
		State:     state,
	})
}

func (h *Handler) handleMove(client *Client, column int) {
	id := client.GameID()
	if id == "" {
		client.sendMessage(Message{Type: TypeError, Message: "Not in a game"})
		return
	}

	m := h.matchmaker.GetGame(id)
	if m == nil {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrGameNotFound.Error()})
		return
	}

	p, ok := m.PlayerFor(client.username)
	if !ok {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrPlayerNotFound.Error()})
		return
	}

	if _, err := m.MakeMove(p, column); err != nil {
		msg := err.Error()
		if errors.Is(err, game.ErrInvalidMove) {
			msg = game.ErrInvalidMove.Error()
		}
		client.sendMessage(Message{Type: TypeError, Message: msg})
		return
	}
	log.Debug().Str("match", id).Str("player", client.username).Int("column", column).Msg("move")

	h.hub.moved(m)
}

func (h *Handler) handleReconnect(client *Client, id string) {
	m := h.matchmaker.GetGame(id)
	if m == nil {
		m = h.matchmaker.GetGameByPlayer(client.username)
	}
	if m == nil {
		client.sendMessage(Message{Type: TypeError, Message: game.ErrGameNotFound.Error()})
		return
	}

	h.handleReconnectToGame(client, m)
}

func (h *Handler) handleReconnectToGame(client *Client, m *match.Match) {
	p, ok := m.PlayerFor(client.username)
	if !ok {
		client.sendMessage(Message{Type: TypeError, Message: "Not a player in this game"})
		return
	}

	switch m.GetState().Status {
	case match.StatusFinished:
		client.sendMessage(Message{Type: TypeError, Message: "Game has already ended"})
		return
	case match.StatusDisconnect:
		if !m.PlayerReconnected(p) {
			client.sendMessage(Message{Type: TypeError, Message: "Reconnection failed"})
			return
		}
		h.hub.broadcastToGame(m.ID, Message{Type: TypeOpponentReconnected})
	}

	// Still connected elsewhere or back from a drop: take over the seat.
	h.matched(client, m)
}
