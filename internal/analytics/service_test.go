package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	events "github.com/rrrane/connect-four/internal/kafka"
)

// sliceReader hands out queued messages, then reports a closed reader.
type sliceReader struct {
	msgs   []kafka.Message
	errs   []error
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

type recorded struct {
	id   string
	data events.GameEndData
}

type memRecorder struct {
	mu   sync.Mutex
	rows []recorded
}

func (m *memRecorder) RecordMatch(_ context.Context, id string, _ time.Time, data *events.GameEndData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, recorded{id, *data})
	return nil
}

func message(t *testing.T, ev events.GameEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Value: data}
}

func TestServiceAggregatesAndRecords(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reader := &sliceReader{
		errs: []error{errors.New("broker hiccup")},
		msgs: []kafka.Message{
			message(t, events.GameEvent{Type: events.EventGameStart, GameID: "g1", Timestamp: ts,
				Data: events.GameStartData{Player1: "alice", Player2: "BOT", IsVsBot: true, BotDepth: 6}}),
			message(t, events.GameEvent{Type: events.EventMove, GameID: "g1", Timestamp: ts,
				Data: events.MoveData{Player: "alice", PlayerNum: 1, Column: 3}}),
			{Value: []byte("garbage")},
			message(t, events.GameEvent{Type: events.EventGameEnd, GameID: "g1", Timestamp: ts,
				Data: events.GameEndData{Player1: "alice", Player2: "BOT", Winner: "BOT", Result: "player2_win",
					DurationSeconds: 12, TotalMoves: 9, IsVsBot: true, Moves: []int{3, 3, 4, 2, 5, 1, 6, 0, 2}}}),
			message(t, events.GameEvent{Type: events.EventSolve, GameID: "r1", Timestamp: ts,
				Data: events.SolveData{Outcome: "no_forced_win", Nodes: 42}}),
		},
	}
	rec := &memRecorder{}
	svc := NewService(reader, rec)
	svc.retry = time.Millisecond

	svc.Run(context.Background())

	m := svc.Metrics()
	if m.TotalGames != 1 || m.BotGames != 1 || m.FinishedGames != 1 || m.TotalMoves != 1 || m.Solves != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.WinCounts["BOT"] != 1 || m.PlayerStats["alice"].Losses != 1 {
		t.Fatalf("wins %v alice %+v", m.WinCounts, m.PlayerStats["alice"])
	}
	if len(rec.rows) != 1 || rec.rows[0].id != "g1" || rec.rows[0].data.TotalMoves != 9 {
		t.Fatalf("recorded = %+v", rec.rows)
	}

	if err := svc.Close(); err != nil || !reader.closed {
		t.Fatalf("Close = %v, closed %v", err, reader.closed)
	}
}

func TestServiceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &sliceReader{errs: []error{context.Canceled}}
	done := make(chan struct{})
	go func() {
		NewService(reader, nil).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestOpening(t *testing.T) {
	if got := opening([]int{3, 3, 4, 2, 5}); got != "3,3,4,2" {
		t.Fatalf("opening = %q", got)
	}
	if got := opening([]int{1}); got != "1" {
		t.Fatalf("opening = %q", got)
	}
}
