package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/player"
)

func expectType(want EventType) mocks.ValueChecker {
	return func(val []byte) error {
		ev, err := DecodeEvent(val)
		if err != nil {
			return err
		}
		if ev.Type != want {
			return fmt.Errorf("event type %q, want %q", ev.Type, want)
		}
		return nil
	}
}

func TestProducerEmitsMatchEvents(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(expectType(EventGameStart))
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(expectType(EventMove))
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(expectType(EventGameEnd))
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(expectType(EventSolve))

	p := newProducer(mock, "")
	m := match.New("alice")
	m.AddPlayer2("BOT", player.NewSearcher(2))

	p.EmitGameStart(m)
	if _, err := m.MakeMove(game.Player1, 3); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	p.EmitMove(m, m.LastMove())
	m.Forfeit(game.Player1)
	p.EmitGameEnd(m)
	p.EmitSolve("req-1", SolveData{Moves: "3", Depth: 2, Outcome: "no_forced_win"})

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDisabledProducerIsSilent(t *testing.T) {
	var nilProducer *Producer
	disabled := &Producer{}
	m := match.New("alice")

	for _, p := range []*Producer{nilProducer, disabled} {
		if p.IsEnabled() {
			t.Fatal("producer reported enabled")
		}
		p.EmitGameStart(m)
		p.EmitGameEnd(m)
		p.EmitSolve("x", SolveData{})
		if err := p.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func encodeEvent(t *testing.T, ev GameEvent) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestDecodeEvent(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	ev, err := DecodeEvent(encodeEvent(t, GameEvent{
		Type:      EventMove,
		GameID:    "g1",
		Timestamp: ts,
		Data:      MoveData{Player: "alice", PlayerNum: 1, Column: 3, MoveNum: 1},
	}))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Move == nil || ev.Move.Column != 3 || ev.GameID != "g1" || !ev.Timestamp.Equal(ts) {
		t.Fatalf("decoded %+v", ev)
	}

	if _, err := DecodeEvent([]byte("{")); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	if _, err := DecodeEvent([]byte(`{"type":"game_end"}`)); err == nil {
		t.Fatal("expected an error for a missing payload")
	}
	ev, err = DecodeEvent([]byte(`{"type":"heartbeat"}`))
	if err != nil || ev.Type != "heartbeat" {
		t.Fatalf("unknown type = (%+v, %v)", ev, err)
	}
}

func TestConsumerAggregates(t *testing.T) {
	c := newConsumer("")
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	events := []GameEvent{
		{Type: EventGameStart, GameID: "g1", Timestamp: ts, Data: GameStartData{Player1: "alice", Player2: "bob"}},
		{Type: EventMove, GameID: "g1", Timestamp: ts, Data: MoveData{Player: "alice", PlayerNum: 1, Column: 3}},
		{Type: EventMove, GameID: "g1", Timestamp: ts, Data: MoveData{Player: "bob", PlayerNum: 2, Column: 3}},
		{Type: EventGameEnd, GameID: "g1", Timestamp: ts, Data: GameEndData{
			Player1: "alice", Player2: "bob", Winner: "alice", Result: "player1_win", DurationSeconds: 40,
		}},
		{Type: EventGameStart, GameID: "g2", Timestamp: ts.Add(time.Hour), Data: GameStartData{Player1: "bob", Player2: "BOT", IsVsBot: true}},
		{Type: EventMove, GameID: "g2", Timestamp: ts, Data: MoveData{Player: "BOT", PlayerNum: 2, Column: 0}},
		{Type: EventGameEnd, GameID: "g2", Timestamp: ts, Data: GameEndData{
			Player1: "bob", Player2: "BOT", Result: "draw", DurationSeconds: 20, IsVsBot: true,
		}},
		{Type: EventSolve, GameID: "r1", Timestamp: ts, Data: SolveData{Outcome: "forced_win", Nodes: 100}},
	}
	for i, ev := range events {
		c.processMessage(&sarama.ConsumerMessage{Offset: int64(i), Value: encodeEvent(t, ev)})
	}
	c.processMessage(&sarama.ConsumerMessage{Value: []byte("not json")})

	got := c.GetMetrics()
	if got.TotalGames != 2 || got.BotGames != 1 || got.FinishedGames != 2 || got.TotalMoves != 3 {
		t.Fatalf("totals = %+v", got)
	}
	if got.ColumnCounts[3] != 2 || got.ColumnCounts[0] != 1 {
		t.Fatalf("column counts = %v", got.ColumnCounts)
	}
	if got.Draws != 1 || got.WinCounts["alice"] != 1 {
		t.Fatalf("draws %d wins %v", got.Draws, got.WinCounts)
	}
	if _, ok := got.PlayerStats["BOT"]; ok {
		t.Fatal("bot has player stats")
	}
	bob := got.PlayerStats["bob"]
	if bob.TotalGames != 2 || bob.Losses != 1 || bob.Draws != 1 || bob.AvgDuration != 30 {
		t.Fatalf("bob = %+v", bob)
	}
	if got.Solves != 1 || got.SolveOutcomes["forced_win"] != 1 || got.SolveNodes != 100 {
		t.Fatalf("solves = %d %v %d", got.Solves, got.SolveOutcomes, got.SolveNodes)
	}

	metrics := c.Metrics()
	if avg := metrics.AverageGameDuration(); avg != 30 {
		t.Fatalf("AverageGameDuration() = %v", avg)
	}
	if w := metrics.MostFrequentWinner(); w != "alice" {
		t.Fatalf("MostFrequentWinner() = %q", w)
	}
	perHour := metrics.GamesPerHourSince(ts.Add(time.Hour))
	if len(perHour) != 24 || perHour["2024-03-01-10"] != 1 || perHour["2024-03-01-11"] != 1 {
		t.Fatalf("GamesPerHourSince = %v", perHour)
	}

	got.WinCounts["alice"] = 99
	if c.GetMetrics().WinCounts["alice"] != 1 {
		t.Fatal("snapshot shares state with the live metrics")
	}
}

func TestConsumeClaim(t *testing.T) {
	c := newConsumer("")
	msgs := make(chan *sarama.ConsumerMessage, 1)
	msgs <- &sarama.ConsumerMessage{Value: encodeEvent(t, GameEvent{
		Type: EventGameStart, GameID: "g1", Timestamp: time.Now(), Data: GameStartData{Player1: "alice"},
	})}
	close(msgs)

	session := &fakeSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, fakeClaim{msgs}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if session.marked != 1 || c.GetMetrics().TotalGames != 1 {
		t.Fatalf("marked %d, total games %d", session.marked, c.GetMetrics().TotalGames)
	}
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked int
}

func (s *fakeSession) MarkMessage(*sarama.ConsumerMessage, string) { s.marked++ }
func (s *fakeSession) Context() context.Context                    { return s.ctx }

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c fakeClaim) Topic() string                            { return DefaultTopic }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }
