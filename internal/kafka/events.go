package kafka

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTopic carries every match and solver event.
const DefaultTopic = "game-events"

// EventType represents the type of event
type EventType string

const (
	EventGameStart EventType = "game_start"
	EventMove      EventType = "move"
	EventGameEnd   EventType = "game_end"
	EventSolve     EventType = "solve"
)

// GameEvent is the envelope written to the topic. Data holds one of the
// *Data structs below, chosen by Type.
type GameEvent struct {
	Type      EventType `json:"type"`
	GameID    string    `json:"gameId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// GameStartData contains data for game start events
type GameStartData struct {
	Player1  string `json:"player1"`
	Player2  string `json:"player2"`
	IsVsBot  bool   `json:"isVsBot"`
	BotDepth int    `json:"botDepth,omitempty"`
}

// MoveData contains data for move events
type MoveData struct {
	Player    string `json:"player"`
	PlayerNum int    `json:"playerNum"`
	Column    int    `json:"column"`
	Row       int    `json:"row"`
	MoveNum   int    `json:"moveNum"`
}

// GameEndData contains data for game end events
type GameEndData struct {
	Player1         string `json:"player1"`
	Player2         string `json:"player2"`
	Winner          string `json:"winner"`
	Result          string `json:"result"`
	DurationSeconds int    `json:"durationSeconds"`
	TotalMoves      int    `json:"totalMoves"`
	IsVsBot         bool   `json:"isVsBot"`
	Moves           []int  `json:"moves"`
}

// SolveData describes one forced-win query answered by the API.
type SolveData struct {
	Moves     string `json:"moves"`
	Depth     int    `json:"depth"`
	Outcome   string `json:"outcome"`
	Move      int    `json:"move"`
	Value     int    `json:"value"`
	Nodes     uint64 `json:"nodes"`
	ElapsedMS int64  `json:"elapsedMs"`
	Cached    bool   `json:"cached"`
}

// Event is a decoded GameEvent with typed payload.
type Event struct {
	Type      EventType
	GameID    string
	Timestamp time.Time

	Start *GameStartData
	Move  *MoveData
	End   *GameEndData
	Solve *SolveData
}

// DecodeEvent parses a message value written by Producer. Unknown event
// types decode without a payload.
func DecodeEvent(data []byte) (Event, error) {
	var raw struct {
		Type      EventType       `json:"type"`
		GameID    string          `json:"gameId"`
		Timestamp time.Time       `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	ev := Event{Type: raw.Type, GameID: raw.GameID, Timestamp: raw.Timestamp}
	var target any
	switch raw.Type {
	case EventGameStart:
		ev.Start = &GameStartData{}
		target = ev.Start
	case EventMove:
		ev.Move = &MoveData{}
		target = ev.Move
	case EventGameEnd:
		ev.End = &GameEndData{}
		target = ev.End
	case EventSolve:
		ev.Solve = &SolveData{}
		target = ev.Solve
	default:
		return ev, nil
	}
	if len(raw.Data) == 0 {
		return ev, fmt.Errorf("decode %s event: missing data", raw.Type)
	}
	if err := json.Unmarshal(raw.Data, target); err != nil {
		return ev, fmt.Errorf("decode %s event: %w", raw.Type, err)
	}
	return ev, nil
}
