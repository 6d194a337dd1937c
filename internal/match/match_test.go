package match

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/player"
)

// scripted plays a fixed list of columns.
type scripted struct {
	name  string
	moves []int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) NextMove(context.Context, *game.Board) (int, error) {
	if len(s.moves) == 0 {
		return -1, player.ErrQuit
	}
	col := s.moves[0]
	s.moves = s.moves[1:]
	return col, nil
}

func TestMakeMoveEnforcesTurns(t *testing.T) {
	m := New("alice")
	if _, err := m.MakeMove(game.Player1, 3); !errors.Is(err, game.ErrGameNotInProgress) {
		t.Fatalf("move before start error = %v", err)
	}

	m.AddPlayer2("bob", nil)
	if _, err := m.MakeMove(game.Player2, 3); !errors.Is(err, game.ErrNotYourTurn) {
		t.Fatalf("out of turn error = %v", err)
	}
	row, err := m.MakeMove(game.Player1, 3)
	if err != nil || row != 0 {
		t.Fatalf("MakeMove = (%d, %v)", row, err)
	}
	row, err = m.MakeMove(game.Player2, 3)
	if err != nil || row != 1 {
		t.Fatalf("MakeMove = (%d, %v)", row, err)
	}
	if _, err := m.MakeMove(game.Player1, 9); !errors.Is(err, game.ErrInvalidMove) {
		t.Fatalf("invalid column error = %v", err)
	}

	state := m.GetState()
	if state.MoveCount != 2 || state.CurrentTurn != 1 || state.LastMove.Row != 1 {
		t.Fatalf("state = %+v", state)
	}
}

func TestMakeMoveDetectsWin(t *testing.T) {
	m := New("alice")
	m.AddPlayer2("bob", nil)
	for i, col := range []int{0, 1, 0, 1, 0, 1, 0} {
		if _, err := m.MakeMove(game.Player(i%2), col); err != nil {
			t.Fatalf("move %d: %v", i+1, err)
		}
	}

	state := m.GetState()
	if state.Status != StatusFinished || state.Winner != "alice" || state.Result != string(ResultWinPlayer1) {
		t.Fatalf("state = %+v", state)
	}
	if side, ok := m.WinnerSide(); !ok || side != game.Player1 {
		t.Fatalf("WinnerSide() = (%v, %v)", side, ok)
	}
	if _, err := m.MakeMove(game.Player2, 2); !errors.Is(err, game.ErrGameNotInProgress) {
		t.Fatalf("move after win error = %v", err)
	}
}

func TestPlayScriptedGame(t *testing.T) {
	p1 := &scripted{name: "one", moves: []int{0, 1, 2, 3}}
	p2 := &scripted{name: "two", moves: []int{0, 1, 2}}
	m := NewLocal([2]player.Player{p1, p2})

	var started, ended int
	var seen []int
	result, err := Play(context.Background(), m, [2]player.Player{p1, p2}, Hooks{
		OnStart: func(*Match) { started++ },
		OnMove:  func(_ *Match, mv Move) { seen = append(seen, mv.Column) },
		OnEnd:   func(*Match) { ended++ },
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if result != ResultWinPlayer1 {
		t.Fatalf("result = %q, want %q", result, ResultWinPlayer1)
	}
	if started != 1 || ended != 1 || len(seen) != 7 {
		t.Fatalf("hooks: started %d ended %d moves %v", started, ended, seen)
	}
	if got := m.Columns(); len(got) != 7 || got[6] != 3 {
		t.Fatalf("Columns() = %v", got)
	}
}

func TestPlayForfeitOnQuit(t *testing.T) {
	p1 := &scripted{name: "one", moves: []int{3}}
	p2 := &scripted{name: "two"}
	m := NewLocal([2]player.Player{p1, p2})

	result, err := Play(context.Background(), m, [2]player.Player{p1, p2}, Hooks{})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if result != ResultForfeit || m.GetState().Winner != "one" {
		t.Fatalf("result %q winner %q", result, m.GetState().Winner)
	}
}

func TestPlayRejectsIllegalMove(t *testing.T) {
	p1 := &scripted{name: "one", moves: []int{7}}
	p2 := &scripted{name: "two"}
	m := NewLocal([2]player.Player{p1, p2})

	_, err := Play(context.Background(), m, [2]player.Player{p1, p2}, Hooks{})
	if !errors.Is(err, game.ErrInvalidMove) || !strings.Contains(err.Error(), "one") {
		t.Fatalf("Play error = %v", err)
	}
}

func TestSearcherBeatsRandom(t *testing.T) {
	wins := 0
	for i := 0; i < 5; i++ {
		players := [2]player.Player{player.NewSearcher(4), player.NewRandom(int64(i))}
		m := NewLocal(players)
		result, err := Play(context.Background(), m, players, Hooks{})
		if err != nil {
			t.Fatalf("Play: %v", err)
		}
		if result == ResultWinPlayer1 {
			wins++
		}
	}
	if wins < 3 {
		t.Fatalf("searcher won %d of 5 games against random play", wins)
	}
}

func TestBotMove(t *testing.T) {
	m := New("alice")
	m.AddPlayer2("BOT", player.NewSearcher(2))
	if !m.HasBot() || m.BotTurn() {
		t.Fatal("bot should wait for the first human move")
	}
	if _, _, err := m.MakeBotMove(context.Background()); !errors.Is(err, game.ErrNotYourTurn) {
		t.Fatalf("bot move out of turn error = %v", err)
	}

	if _, err := m.MakeMove(game.Player1, 3); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if !m.BotTurn() {
		t.Fatal("expected bot turn")
	}
	col, row, err := m.MakeBotMove(context.Background())
	if err != nil {
		t.Fatalf("MakeBotMove: %v", err)
	}
	if last := m.LastMove(); last.Column != col || last.Row != row || last.PlayerNum != 2 {
		t.Fatalf("bot played (%d, %d), history has %+v", col, row, last)
	}
	if m.GetState().MoveCount != 2 {
		t.Fatalf("move count = %d", m.GetState().MoveCount)
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	m := New("alice")
	m.AddPlayer2("bob", nil)

	m.PlayerDisconnected(game.Player2)
	if m.GetState().Status != StatusDisconnect {
		t.Fatalf("status = %s", m.GetState().Status)
	}
	if m.PlayerReconnected(game.Player1) {
		t.Fatal("wrong player reconnected")
	}
	if !m.PlayerReconnected(game.Player2) {
		t.Fatal("reconnect within window failed")
	}

	m.ReconnectWindow = time.Millisecond
	m.PlayerDisconnected(game.Player2)
	m.DisconnectTime = time.Now().Add(-time.Second)
	if m.PlayerReconnected(game.Player2) {
		t.Fatal("reconnect after window succeeded")
	}

	m.Forfeit(game.Player2)
	state := m.GetState()
	if state.Status != StatusFinished || state.Result != string(ResultForfeit) || state.Winner != "alice" {
		t.Fatalf("state = %+v", state)
	}
}

func TestForfeitLeavesFinishedMatchAlone(t *testing.T) {
	m := New("alice")
	m.AddPlayer2("bob", nil)
	for i, col := range []int{0, 1, 0, 1, 0, 1, 0} {
		if _, err := m.MakeMove(game.Player(i%2), col); err != nil {
			t.Fatalf("move %d: %v", i+1, err)
		}
	}

	if m.Forfeit(game.Player1) {
		t.Fatal("Forfeit reported success on a finished match")
	}
	state := m.GetState()
	if state.Result != string(ResultWinPlayer1) || state.Winner != "alice" {
		t.Fatalf("result = %s, winner = %s, want player1_win by alice", state.Result, state.Winner)
	}
	if m.ExpireReconnect(game.Player1) {
		t.Fatal("ExpireReconnect ended a finished match")
	}
}

func TestExpireReconnect(t *testing.T) {
	m := New("alice")
	m.AddPlayer2("bob", nil)

	if m.ExpireReconnect(game.Player2) {
		t.Fatal("ExpireReconnect ended a match nobody left")
	}
	if !m.PlayerDisconnected(game.Player2) {
		t.Fatal("PlayerDisconnected on a live match failed")
	}
	if m.PlayerDisconnected(game.Player1) {
		t.Fatal("second disconnect accepted while one player is away")
	}
	if m.ExpireReconnect(game.Player1) {
		t.Fatal("ExpireReconnect forfeited the player who stayed")
	}
	if !m.ExpireReconnect(game.Player2) {
		t.Fatal("ExpireReconnect did not end the match")
	}
	state := m.GetState()
	if state.Result != string(ResultForfeit) || state.Winner != "alice" {
		t.Fatalf("state = %+v", state)
	}
}

func TestClaimEndOnce(t *testing.T) {
	m := New("alice")
	m.AddPlayer2("bob", nil)
	if m.ClaimEnd() {
		t.Fatal("ClaimEnd on a live match")
	}
	if !m.Forfeit(game.Player2) {
		t.Fatal("Forfeit on a live match failed")
	}
	if !m.ClaimEnd() {
		t.Fatal("first ClaimEnd after the end failed")
	}
	if m.ClaimEnd() {
		t.Fatal("ClaimEnd succeeded twice")
	}
}

func TestPlayerFor(t *testing.T) {
	m := New("alice")
	m.AddPlayer2("bob", nil)

	if p, ok := m.PlayerFor("bob"); !ok || p != game.Player2 {
		t.Fatalf("PlayerFor(bob) = (%v, %v)", p, ok)
	}
	if _, ok := m.PlayerFor("carol"); ok {
		t.Fatal("PlayerFor(carol) found a seat")
	}
	if a, b := m.Usernames(); a != "alice" || b != "bob" {
		t.Fatalf("Usernames() = %q, %q", a, b)
	}
}
