package matchmaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/player"
)

// BotName is the seat name of the computer opponent.
const BotName = "BOT"

// Config controls queueing and bot fallback.
type Config struct {
	Timeout         time.Duration // wait before a bot is seated
	BotDepth        int
	ReconnectWindow time.Duration
}

// WaitingPlayer represents a player waiting for a match
type WaitingPlayer struct {
	Username  string
	JoinedAt  time.Time
	MatchChan chan *match.Match
	timer     *time.Timer
}

// Matchmaker pairs queued players and keeps the registry of live matches.
type Matchmaker struct {
	cfg          Config
	waitingQueue []*WaitingPlayer
	activeGames  map[string]*match.Match // matchID -> match
	playerGames  map[string]string       // username -> matchID
	mu           sync.Mutex
	onGameStart  func(m *match.Match)
}

// New creates a matchmaker.
func New(cfg Config) *Matchmaker {
	if cfg.BotDepth <= 0 {
		cfg.BotDepth = player.DefaultDepth
	}
	if cfg.ReconnectWindow <= 0 {
		cfg.ReconnectWindow = match.DefaultReconnectWindow
	}
	return &Matchmaker{
		cfg:          cfg,
		waitingQueue: make([]*WaitingPlayer, 0),
		activeGames:  make(map[string]*match.Match),
		playerGames:  make(map[string]string),
	}
}

// SetOnGameStart sets the callback for when a match starts
func (m *Matchmaker) SetOnGameStart(callback func(g *match.Match)) {
	m.onGameStart = callback
}

// JoinQueue adds a player to the queue. The returned channel receives the
// match once an opponent, human or bot, is found. A player with a live match
// gets that match back immediately.
func (m *Matchmaker) JoinQueue(username string) (<-chan *match.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g := m.liveMatchLocked(username); g != nil {
		ch := make(chan *match.Match, 1)
		ch <- g
		return ch, nil
	}
	for _, w := range m.waitingQueue {
		if w.Username == username {
			return nil, game.ErrAlreadyQueued
		}
	}

	if len(m.waitingQueue) > 0 {
		opponent := m.waitingQueue[0]
		m.waitingQueue = m.waitingQueue[1:]
		opponent.timer.Stop()

		g := m.newMatch(opponent.Username)
		g.AddPlayer2(username, nil)
		m.registerLocked(g)

		opponent.MatchChan <- g
		ch := make(chan *match.Match, 1)
		ch <- g
		return ch, nil
	}

	waiting := &WaitingPlayer{
		Username:  username,
		JoinedAt:  time.Now(),
		MatchChan: make(chan *match.Match, 1),
	}
	waiting.timer = time.AfterFunc(m.cfg.Timeout, func() { m.handleMatchmakingTimeout(waiting) })
	m.waitingQueue = append(m.waitingQueue, waiting)
	log.Debug().Str("player", username).Dur("timeout", m.cfg.Timeout).Msg("player queued")

	return waiting.MatchChan, nil
}

// StartBotMatch seats username against the search bot right away. A depth
// of zero or less uses the configured bot depth.
func (m *Matchmaker) StartBotMatch(username string, depth int) (*match.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g := m.liveMatchLocked(username); g != nil {
		return g, nil
	}
	for _, w := range m.waitingQueue {
		if w.Username == username {
			return nil, game.ErrAlreadyQueued
		}
	}
	return m.botMatchLocked(username, depth), nil
}

func (m *Matchmaker) handleMatchmakingTimeout(waiting *WaitingPlayer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.waitingQueue {
		if w == waiting {
			m.waitingQueue = append(m.waitingQueue[:i], m.waitingQueue[i+1:]...)
			g := m.botMatchLocked(waiting.Username, 0)
			waiting.MatchChan <- g
			return
		}
	}
	// already matched or left
}

func (m *Matchmaker) botMatchLocked(username string, depth int) *match.Match {
	if depth <= 0 {
		depth = m.cfg.BotDepth
	}
	g := m.newMatch(username)
	g.AddPlayer2(BotName, player.NewSearcher(depth))
	m.registerLocked(g)
	log.Info().Str("match", g.ID).Str("player", username).Int("depth", depth).Msg("bot match created")
	return g
}

func (m *Matchmaker) newMatch(username string) *match.Match {
	g := match.New(username)
	g.ReconnectWindow = m.cfg.ReconnectWindow
	return g
}

func (m *Matchmaker) registerLocked(g *match.Match) {
	m.activeGames[g.ID] = g
	p1, p2 := g.Usernames()
	m.playerGames[p1] = g.ID
	if !g.HasBot() {
		m.playerGames[p2] = g.ID
	}
	if m.onGameStart != nil {
		go m.onGameStart(g)
	}
}

func (m *Matchmaker) liveMatchLocked(username string) *match.Match {
	id, ok := m.playerGames[username]
	if !ok {
		return nil
	}
	g, ok := m.activeGames[id]
	if !ok || g.GetState().Status == match.StatusFinished {
		return nil
	}
	return g
}

// GetGame returns a match by ID
func (m *Matchmaker) GetGame(id string) *match.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeGames[id]
}

// GetGameByPlayer returns the match of a player
func (m *Matchmaker) GetGameByPlayer(username string) *match.Match {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, exists := m.playerGames[username]; exists {
		return m.activeGames[id]
	}
	return nil
}

// RemoveGame drops a completed match from the registry
func (m *Matchmaker) RemoveGame(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, exists := m.activeGames[id]
	if !exists {
		return
	}
	p1, p2 := g.Usernames()
	if m.playerGames[p1] == id {
		delete(m.playerGames, p1)
	}
	if !g.HasBot() && m.playerGames[p2] == id {
		delete(m.playerGames, p2)
	}
	delete(m.activeGames, id)
}

// LeaveQueue removes a player from the waiting queue
func (m *Matchmaker) LeaveQueue(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.waitingQueue {
		if w.Username == username {
			m.waitingQueue = append(m.waitingQueue[:i], m.waitingQueue[i+1:]...)
			w.timer.Stop()
			close(w.MatchChan)
			return
		}
	}
}

// GetActiveGameCount returns the number of registered matches
func (m *Matchmaker) GetActiveGameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeGames)
}

// GetWaitingCount returns the number of players waiting
func (m *Matchmaker) GetWaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waitingQueue)
}
