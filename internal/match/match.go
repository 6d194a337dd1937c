package match

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/player"
)

// DefaultReconnectWindow is how long a disconnected player may take to
// come back before forfeiting.
const DefaultReconnectWindow = 30 * time.Second

// Status represents the current state of the match
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusPlaying    Status = "playing"
	StatusFinished   Status = "finished"
	StatusDisconnect Status = "disconnected"
)

// Result represents the outcome of a match
type Result string

const (
	ResultWinPlayer1 Result = "player1_win"
	ResultWinPlayer2 Result = "player2_win"
	ResultDraw       Result = "draw"
	ResultForfeit    Result = "forfeit"
)

// Seat is one side of a match.
type Seat struct {
	Username    string
	IsBot       bool
	IsConnected bool
}

// Move is a single move in the match history
type Move struct {
	PlayerNum int       `json:"playerNum"`
	Column    int       `json:"column"`
	Row       int       `json:"row"`
	Timestamp time.Time `json:"timestamp"`
}

// Match is one game between two seats on a single shared board. Seat i
// plays as game.Player(i).
type Match struct {
	ID                 string
	Seats              [2]*Seat
	Board              *game.Board
	Status             Status
	Winner             *Seat
	Result             Result
	Moves              []Move
	StartTime          time.Time
	EndTime            time.Time
	DisconnectTime     time.Time
	DisconnectedPlayer int // PlayerNum, 0 when nobody is away
	ReconnectWindow    time.Duration

	bot        player.Player
	endClaimed bool
	mu         sync.RWMutex
}

// New creates a match waiting for a second player.
func New(username string) *Match {
	return &Match{
		ID: uuid.New().String(),
		Seats: [2]*Seat{{
			Username:    username,
			IsConnected: true,
		}},
		Board:           game.NewBoard(),
		Status:          StatusWaiting,
		Moves:           make([]Move, 0, game.Rows*game.Columns),
		StartTime:       time.Now(),
		ReconnectWindow: DefaultReconnectWindow,
	}
}

// NewLocal creates a match between two move sources, ready to Play.
func NewLocal(players [2]player.Player) *Match {
	m := New(players[0].Name())
	m.Seats[1] = &Seat{Username: players[1].Name(), IsConnected: true}
	m.Status = StatusPlaying
	return m
}

// PlayerNum converts a side to the 1-based number used on the wire.
func PlayerNum(p game.Player) int {
	return int(p) + 1
}

// AddPlayer2 seats the second player and starts the match. A non-nil bot
// makes the seat computer controlled.
func (m *Match) AddPlayer2(username string, bot player.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Seats[1] = &Seat{
		Username:    username,
		IsBot:       bot != nil,
		IsConnected: true,
	}
	m.bot = bot
	m.Status = StatusPlaying
}

// MakeMove plays column for side p.
func (m *Match) MakeMove(p game.Player, column int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.makeMoveLocked(p, column)
}

func (m *Match) makeMoveLocked(p game.Player, column int) (int, error) {
	if m.Status != StatusPlaying {
		return -1, game.ErrGameNotInProgress
	}
	if m.Board.CurrentPlayer() != p {
		return -1, game.ErrNotYourTurn
	}

	if err := m.Board.ApplyMove(column); err != nil {
		return -1, err
	}
	row := m.Board.ColumnHeight(column) - 1

	m.Moves = append(m.Moves, Move{
		PlayerNum: PlayerNum(p),
		Column:    column,
		Row:       row,
		Timestamp: time.Now(),
	})

	switch {
	case m.Board.LastMoveWon():
		m.finishLocked(m.Seats[p], winResult(p))
	case m.Board.IsFull():
		m.finishLocked(nil, ResultDraw)
	}
	return row, nil
}

func winResult(p game.Player) Result {
	if p == game.Player1 {
		return ResultWinPlayer1
	}
	return ResultWinPlayer2
}

func (m *Match) finishLocked(winner *Seat, result Result) {
	m.Status = StatusFinished
	m.EndTime = time.Now()
	m.Winner = winner
	m.Result = result
}

// HasBot reports whether the second seat is computer controlled.
func (m *Match) HasBot() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bot != nil
}

// Bot returns the move source of the bot seat, nil for two humans.
func (m *Match) Bot() player.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bot
}

// BotTurn reports whether the bot is the side to move in a live match.
func (m *Match) BotTurn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bot != nil && m.Status == StatusPlaying && m.Board.CurrentPlayer() == game.Player2
}

// MakeBotMove lets the bot search the live board and play its move. The
// match stays locked for the duration of the search.
func (m *Match) MakeBotMove(ctx context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bot == nil || m.Board.CurrentPlayer() != game.Player2 {
		return -1, -1, game.ErrNotYourTurn
	}
	if m.Status != StatusPlaying {
		return -1, -1, game.ErrGameNotInProgress
	}

	column, err := m.bot.NextMove(ctx, m.Board)
	if err != nil {
		return -1, -1, err
	}
	row, err := m.makeMoveLocked(game.Player2, column)
	return column, row, err
}

// PlayerDisconnected marks a player of a live match as disconnected and
// reports whether it did.
func (m *Match) PlayerDisconnected(p game.Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != StatusPlaying {
		return false
	}

	m.DisconnectedPlayer = PlayerNum(p)
	m.DisconnectTime = time.Now()
	m.Status = StatusDisconnect
	m.Seats[p].IsConnected = false
	return true
}

// PlayerReconnected marks a player as reconnected. It fails once the
// reconnect window has passed.
func (m *Match) PlayerReconnected(p game.Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != StatusDisconnect || m.DisconnectedPlayer != PlayerNum(p) {
		return false
	}
	if time.Since(m.DisconnectTime) > m.ReconnectWindow {
		return false
	}

	m.Status = StatusPlaying
	m.DisconnectedPlayer = 0
	m.DisconnectTime = time.Time{}
	m.Seats[p].IsConnected = true
	return true
}

// Forfeit ends a live match in favour of the opponent of loser. It reports
// false and changes nothing once the match is over.
func (m *Match) Forfeit(loser game.Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != StatusPlaying && m.Status != StatusDisconnect {
		return false
	}
	m.finishLocked(m.Seats[loser.Opponent()], ResultForfeit)
	return true
}

// ExpireReconnect forfeits the match for p if p is still the disconnected
// player. It reports whether the match ended.
func (m *Match) ExpireReconnect(p game.Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != StatusDisconnect || m.DisconnectedPlayer != PlayerNum(p) {
		return false
	}
	m.finishLocked(m.Seats[p.Opponent()], ResultForfeit)
	return true
}

// ClaimEnd reports true to exactly one caller once the match is finished,
// so the end of a match is announced once.
func (m *Match) ClaimEnd() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != StatusFinished || m.endClaimed {
		return false
	}
	m.endClaimed = true
	return true
}

// PlayerFor returns the side played by username.
func (m *Match) PlayerFor(username string) (game.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, s := range m.Seats {
		if s != nil && s.Username == username {
			return game.Player(i), true
		}
	}
	return 0, false
}

// Usernames returns both seat names, empty for a missing seat.
func (m *Match) Usernames() (string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names [2]string
	for i, s := range m.Seats {
		if s != nil {
			names[i] = s.Username
		}
	}
	return names[0], names[1]
}

// Columns returns the played columns in order.
func (m *Match) Columns() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cols := make([]int, len(m.Moves))
	for i, mv := range m.Moves {
		cols[i] = mv.Column
	}
	return cols
}

// MoveHistory returns a copy of the moves played so far.
func (m *Match) MoveHistory() []Move {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Move(nil), m.Moves...)
}

// Duration returns the match duration in seconds
func (m *Match) Duration() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.EndTime.IsZero() {
		return int(time.Since(m.StartTime).Seconds())
	}
	return int(m.EndTime.Sub(m.StartTime).Seconds())
}

// GetState returns the current match state for serialization
func (m *Match) GetState() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := &State{
		ID:          m.ID,
		Board:       m.Board.Cells(),
		CurrentTurn: PlayerNum(m.Board.CurrentPlayer()),
		Status:      m.Status,
		MoveCount:   len(m.Moves),
		Result:      string(m.Result),
	}
	if s := m.Seats[0]; s != nil {
		state.Player1 = s.Username
	}
	if s := m.Seats[1]; s != nil {
		state.Player2 = s.Username
		state.IsVsBot = s.IsBot
	}
	if m.Winner != nil {
		state.Winner = m.Winner.Username
	}
	if len(m.Moves) > 0 {
		last := m.Moves[len(m.Moves)-1]
		state.LastMove = &MoveInfo{Column: last.Column, Row: last.Row}
	}
	if m.Status == StatusPlaying {
		state.LegalMoves = m.Board.LegalMoves()
	}
	return state
}

// State represents the serializable match state
type State struct {
	ID          string    `json:"id"`
	Player1     string    `json:"player1"`
	Player2     string    `json:"player2"`
	IsVsBot     bool      `json:"isVsBot"`
	Board       [][]int   `json:"board"`
	CurrentTurn int       `json:"currentTurn"`
	Status      Status    `json:"status"`
	Winner      string    `json:"winner,omitempty"`
	Result      string    `json:"result,omitempty"`
	LastMove    *MoveInfo `json:"lastMove,omitempty"`
	LegalMoves  []int     `json:"legalMoves,omitempty"`
	MoveCount   int       `json:"moveCount"`
}

// MoveInfo represents info about a move
type MoveInfo struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}
