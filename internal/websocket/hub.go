package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/matchmaker"
)

// Config holds hub timings.
type Config struct {
	ReconnectWindow time.Duration
	BotMoveDelay    time.Duration
	CleanupDelay    time.Duration // how long a finished match stays addressable
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by username
	clients map[string]*Client

	// Clients by match ID
	gameClients map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client

	matchmaker *matchmaker.Matchmaker
	cfg        Config
	ctx        context.Context

	onMove    func(m *match.Match, mv match.Move)
	onGameEnd func(m *match.Match)

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(mm *matchmaker.Matchmaker, cfg Config) *Hub {
	if cfg.ReconnectWindow <= 0 {
		cfg.ReconnectWindow = match.DefaultReconnectWindow
	}
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = 5 * time.Second
	}
	return &Hub{
		clients:     make(map[string]*Client),
		gameClients: make(map[string]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		matchmaker:  mm,
		cfg:         cfg,
		ctx:         context.Background(),
	}
}

// SetOnMove sets the callback run after every move, human or bot
func (h *Hub) SetOnMove(callback func(m *match.Match, mv match.Move)) {
	h.onMove = callback
}

// SetOnGameEnd sets the callback for when a match ends
func (h *Hub) SetOnGameEnd(callback func(m *match.Match)) {
	h.onGameEnd = callback
}

// Run starts the hub's main loop. It returns when ctx is done; bot
// searches started by the hub are cancelled with it.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.username]; ok && old != client {
				old.closeSend()
			}
			h.clients[client.username] = client
			h.mu.Unlock()
			log.Debug().Str("player", client.username).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			current := h.clients[client.username] == client
			if current {
				delete(h.clients, client.username)
			}
			h.mu.Unlock()
			client.closeSend()
			log.Debug().Str("player", client.username).Bool("current", current).Msg("client unregistered")

			if current {
				h.handleDisconnect(client)
			}
		}
	}
}

func (h *Hub) context() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

func (h *Hub) handleDisconnect(client *Client) {
	id := client.GameID()
	if id == "" {
		h.matchmaker.LeaveQueue(client.username)
		return
	}

	m := h.matchmaker.GetGame(id)
	if m == nil {
		return
	}
	p, ok := m.PlayerFor(client.username)
	if !ok {
		return
	}

	// A bot does not wait for anyone.
	if m.HasBot() {
		if m.Forfeit(p) {
			h.finish(m)
		}
		return
	}

	if !m.PlayerDisconnected(p) {
		return
	}
	h.notifyOpponentDisconnected(m, p)

	time.AfterFunc(h.cfg.ReconnectWindow, func() { h.handleReconnectTimeout(m, p) })
}

func (h *Hub) handleReconnectTimeout(m *match.Match, p game.Player) {
	if !m.ExpireReconnect(p) {
		return
	}
	log.Info().Str("match", m.ID).Str("player", p.String()).Msg("reconnect window expired")
	h.finish(m)
}

func (h *Hub) notifyOpponentDisconnected(m *match.Match, away game.Player) {
	deadline := time.Now().Add(h.cfg.ReconnectWindow)

	for username, client := range h.clientsOf(m.ID) {
		if p, ok := m.PlayerFor(username); ok && p != away {
			client.sendMessage(Message{
				Type:              TypeOpponentDisconnected,
				ReconnectDeadline: deadline.Format(time.RFC3339),
			})
		}
	}
}

func (h *Hub) clientsOf(id string) map[string]*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]*Client, len(h.gameClients[id]))
	for k, v := range h.gameClients[id] {
		out[k] = v
	}
	return out
}

// RegisterToGame adds a client to a match's client list
func (h *Hub) RegisterToGame(id string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gameClients[id] == nil {
		h.gameClients[id] = make(map[string]*Client)
	}
	h.gameClients[id][client.username] = client
	client.setGameID(id)
}

// BroadcastGameState sends the match state to all players in it
func (h *Hub) BroadcastGameState(m *match.Match) {
	h.broadcastToGame(m.ID, Message{
		Type:  TypeState,
		State: m.GetState(),
	})
}

func (h *Hub) broadcastToGame(id string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("marshal message")
		return
	}

	clients := h.clientsOf(id)
	log.Debug().Str("match", id).Str("type", msg.Type).Int("clients", len(clients)).Msg("broadcast")
	for _, client := range clients {
		client.sendRaw(data)
	}
}

// moved publishes a move that was just played.
func (h *Hub) moved(m *match.Match) {
	if h.onMove != nil {
		h.onMove(m, m.LastMove())
	}
	h.BroadcastGameState(m)

	if m.GetState().Status == match.StatusFinished {
		h.finish(m)
		return
	}
	if m.BotTurn() {
		go h.HandleBotMove(m)
	}
}

// finish announces the result, runs the end callback and forgets the
// match after the cleanup delay. Only the first call for a match does
// anything.
func (h *Hub) finish(m *match.Match) {
	if !m.ClaimEnd() {
		return
	}
	state := m.GetState()
	h.broadcastToGame(m.ID, Message{
		Type:   TypeGameOver,
		GameID: m.ID,
		Winner: state.Winner,
		Reason: state.Result,
		State:  state,
	})
	log.Info().Str("match", m.ID).Str("result", state.Result).Str("winner", state.Winner).Int("moves", state.MoveCount).Msg("match finished")

	if h.onGameEnd != nil {
		h.onGameEnd(m)
	}

	time.AfterFunc(h.cfg.CleanupDelay, func() {
		h.mu.Lock()
		delete(h.gameClients, m.ID)
		h.mu.Unlock()
		h.matchmaker.RemoveGame(m.ID)
	})
}

// HandleBotMove lets the bot reply after the configured delay.
func (h *Hub) HandleBotMove(m *match.Match) {
	if !m.BotTurn() {
		return
	}

	ctx := h.context()
	select {
	case <-time.After(h.cfg.BotMoveDelay):
	case <-ctx.Done():
		return
	}

	col, row, err := m.MakeBotMove(ctx)
	if err != nil {
		log.Warn().Err(err).Str("match", m.ID).Msg("bot move")
		return
	}
	log.Debug().Str("match", m.ID).Int("column", col).Int("row", row).Msg("bot moved")
	h.moved(m)
}

// GetClient returns a client by username
func (h *Hub) GetClient(username string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[username]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
