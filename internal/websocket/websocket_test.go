package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/matchmaker"
)

type testServer struct {
	url   string
	hub   *Hub
	mu    sync.Mutex
	moves int
	ended []*match.Match
}

func newTestServer(t *testing.T, mmTimeout time.Duration) *testServer {
	t.Helper()

	mm := matchmaker.New(matchmaker.Config{Timeout: mmTimeout, BotDepth: 2})
	hub := NewHub(mm, Config{ReconnectWindow: time.Second})
	handler := NewHandler(hub, mm, 4)
	ts := &testServer{hub: hub}
	hub.SetOnMove(func(*match.Match, match.Move) {
		ts.mu.Lock()
		ts.moves++
		ts.mu.Unlock()
	})
	hub.SetOnGameEnd(func(m *match.Match) {
		ts.mu.Lock()
		ts.ended = append(ts.ended, m)
		ts.mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, handler, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return ts
}

func dial(t *testing.T, ts *testServer, username string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url+"?username="+username, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg IncomingMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// expect reads until a message of the given type arrives.
func expect(t *testing.T, conn *websocket.Conn, typ string, accept func(Message) bool) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (accept == nil || accept(msg)) {
			return msg
		}
	}
}

func TestMissingUsernameIsRejected(t *testing.T) {
	ts := newTestServer(t, time.Minute)
	_, resp, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err == nil {
		t.Fatal("dial without username succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("response = %v", resp)
	}
}

func TestPlayAgainstBot(t *testing.T) {
	ts := newTestServer(t, time.Minute)
	conn := dial(t, ts, "alice")

	send(t, conn, IncomingMessage{Type: TypeJoin, Mode: ModeBot, Depth: 2})
	matched := expect(t, conn, TypeMatched, nil)
	if matched.Opponent != matchmaker.BotName || matched.PlayerNum != 1 || !matched.YourTurn {
		t.Fatalf("matched = %+v", matched)
	}

	send(t, conn, IncomingMessage{Type: TypeMove, Column: 3})
	reply := expect(t, conn, TypeState, func(m Message) bool { return m.State.MoveCount == 2 })
	if reply.State.CurrentTurn != 1 || reply.State.LastMove == nil {
		t.Fatalf("state after bot reply = %+v", reply.State)
	}

	// An illegal column is answered with an error.
	send(t, conn, IncomingMessage{Type: TypeMove, Column: 9})
	if e := expect(t, conn, TypeError, nil); e.Message == "" {
		t.Fatal("error message is empty")
	}

	ts.mu.Lock()
	moves := ts.moves
	ts.mu.Unlock()
	if moves != 2 {
		t.Fatalf("OnMove ran %d times, want 2", moves)
	}
}

func TestQueuedPlayersAreMatched(t *testing.T) {
	ts := newTestServer(t, time.Minute)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")

	send(t, alice, IncomingMessage{Type: TypeJoin})
	expect(t, alice, TypeWaiting, nil)
	send(t, bob, IncomingMessage{Type: TypeJoin, Mode: ModeQueue})

	ma := expect(t, alice, TypeMatched, nil)
	mb := expect(t, bob, TypeMatched, nil)
	if ma.GameID != mb.GameID || ma.Opponent != "bob" || mb.Opponent != "alice" {
		t.Fatalf("matched %+v / %+v", ma, mb)
	}
	if !ma.YourTurn || mb.YourTurn {
		t.Fatal("alice should move first")
	}

	// Vertical four for alice in column 0.
	for i := 0; i < 3; i++ {
		send(t, alice, IncomingMessage{Type: TypeMove, Column: 0})
		expect(t, bob, TypeState, func(m Message) bool { return m.State.MoveCount == 2*i+1 })
		send(t, bob, IncomingMessage{Type: TypeMove, Column: 1})
		expect(t, alice, TypeState, func(m Message) bool { return m.State.MoveCount == 2*i+2 })
	}
	send(t, alice, IncomingMessage{Type: TypeMove, Column: 0})

	over := expect(t, bob, TypeGameOver, nil)
	if over.Winner != "alice" || over.Reason != string(match.ResultWinPlayer1) {
		t.Fatalf("gameOver = %+v", over)
	}
	expect(t, alice, TypeGameOver, nil)

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.ended) != 1 || ts.ended[0].ID != ma.GameID {
		t.Fatalf("OnGameEnd calls = %d", len(ts.ended))
	}
}

func TestDisconnectNotifiesOpponent(t *testing.T) {
	ts := newTestServer(t, time.Minute)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")

	send(t, alice, IncomingMessage{Type: TypeJoin})
	expect(t, alice, TypeWaiting, nil)
	send(t, bob, IncomingMessage{Type: TypeJoin})
	matched := expect(t, bob, TypeMatched, nil)
	expect(t, alice, TypeMatched, nil)

	alice.Close()
	expect(t, bob, TypeOpponentDisconnected, nil)

	back := dial(t, ts, "alice")
	send(t, back, IncomingMessage{Type: TypeReconnect, GameID: matched.GameID})
	if m := expect(t, back, TypeMatched, nil); m.GameID != matched.GameID || m.PlayerNum != 1 {
		t.Fatalf("rejoin = %+v", m)
	}
	expect(t, bob, TypeOpponentReconnected, nil)
}

func TestMatchEndIsReportedOnce(t *testing.T) {
	ts := newTestServer(t, time.Minute)

	m := match.New("alice")
	m.AddPlayer2("bob", nil)
	for i, col := range []int{0, 1, 0, 1, 0, 1, 0} {
		if _, err := m.MakeMove(game.Player(i%2), col); err != nil {
			t.Fatalf("move %d: %v", i+1, err)
		}
	}
	ts.hub.moved(m)

	// A late disconnect or reconnect timeout must not turn the win into a
	// forfeit or announce the end again.
	ts.hub.handleReconnectTimeout(m, game.Player1)
	if m.Forfeit(game.Player1) {
		t.Fatal("Forfeit ended a finished match")
	}
	ts.hub.finish(m)

	ts.mu.Lock()
	ended := len(ts.ended)
	ts.mu.Unlock()
	if ended != 1 {
		t.Fatalf("end callback ran %d times, want 1", ended)
	}
	if state := m.GetState(); state.Result != string(match.ResultWinPlayer1) || state.Winner != "alice" {
		t.Fatalf("result = %s, winner = %s", state.Result, state.Winner)
	}
}
