package kafka

import (
	"sync"
	"time"

	"github.com/rrrane/connect-four/internal/match"
)

const (
	hourKeyLayout = "2006-01-02-15"
	dayKeyLayout  = "2006-01-02"
	botName       = "BOT"
)

// AnalyticsMetrics holds aggregated analytics data
type AnalyticsMetrics struct {
	TotalGames    int64                     `json:"totalGames"`
	FinishedGames int64                     `json:"finishedGames"`
	TotalMoves    int64                     `json:"totalMoves"`
	BotGames      int64                     `json:"botGames"`
	Draws         int64                     `json:"draws"`
	Forfeits      int64                     `json:"forfeits"`
	TotalDuration int64                     `json:"totalDuration"`
	WinCounts     map[string]int            `json:"winCounts"`
	GamesPerHour  map[string]int            `json:"gamesPerHour"`
	GamesPerDay   map[string]int            `json:"gamesPerDay"`
	ColumnCounts  [7]int64                  `json:"columnCounts"`
	PlayerStats   map[string]*PlayerMetrics `json:"playerStats"`
	Solves        int64                     `json:"solves"`
	SolveOutcomes map[string]int            `json:"solveOutcomes"`
	SolveNodes    uint64                    `json:"solveNodes"`
	mu            sync.RWMutex
}

// PlayerMetrics holds per-player analytics
type PlayerMetrics struct {
	Wins          int   `json:"wins"`
	Losses        int   `json:"losses"`
	Draws         int   `json:"draws"`
	TotalGames    int   `json:"totalGames"`
	TotalMoves    int64 `json:"totalMoves"`
	TotalDuration int64 `json:"totalDuration"`
	AvgDuration   int64 `json:"avgDuration"`
}

// NewAnalyticsMetrics returns empty metrics.
func NewAnalyticsMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		WinCounts:     make(map[string]int),
		GamesPerHour:  make(map[string]int),
		GamesPerDay:   make(map[string]int),
		PlayerStats:   make(map[string]*PlayerMetrics),
		SolveOutcomes: make(map[string]int),
	}
}

// Apply folds one event into the metrics.
func (a *AnalyticsMetrics) Apply(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case ev.Start != nil:
		a.handleGameStart(ev.Timestamp, ev.Start)
	case ev.Move != nil:
		a.handleMove(ev.Move)
	case ev.End != nil:
		a.handleGameEnd(ev.End)
	case ev.Solve != nil:
		a.Solves++
		a.SolveOutcomes[ev.Solve.Outcome]++
		a.SolveNodes += ev.Solve.Nodes
	}
}

func (a *AnalyticsMetrics) player(name string) *PlayerMetrics {
	pm := a.PlayerStats[name]
	if pm == nil {
		pm = &PlayerMetrics{}
		a.PlayerStats[name] = pm
	}
	return pm
}

func (a *AnalyticsMetrics) handleGameStart(ts time.Time, data *GameStartData) {
	a.TotalGames++
	if data.IsVsBot {
		a.BotGames++
	}

	a.GamesPerHour[ts.Format(hourKeyLayout)]++
	a.GamesPerDay[ts.Format(dayKeyLayout)]++

	if data.Player1 != "" {
		a.player(data.Player1).TotalGames++
	}
	if data.Player2 != "" && !data.IsVsBot {
		a.player(data.Player2).TotalGames++
	}
}

func (a *AnalyticsMetrics) handleMove(data *MoveData) {
	a.TotalMoves++
	if data.Column >= 0 && data.Column < len(a.ColumnCounts) {
		a.ColumnCounts[data.Column]++
	}
	if data.Player != "" && data.Player != botName {
		a.player(data.Player).TotalMoves++
	}
}

func (a *AnalyticsMetrics) handleGameEnd(data *GameEndData) {
	a.FinishedGames++
	a.TotalDuration += int64(data.DurationSeconds)

	humans := make([]string, 0, 2)
	for _, name := range []string{data.Player1, data.Player2} {
		if name != "" && name != botName {
			humans = append(humans, name)
		}
	}

	switch {
	case data.Result == string(match.ResultDraw):
		a.Draws++
		for _, name := range humans {
			a.player(name).Draws++
		}
	case data.Winner != "":
		if data.Result == string(match.ResultForfeit) {
			a.Forfeits++
		}
		a.WinCounts[data.Winner]++
		for _, name := range humans {
			if name == data.Winner {
				a.player(name).Wins++
			} else {
				a.player(name).Losses++
			}
		}
	}

	for _, name := range humans {
		pm := a.player(name)
		pm.TotalDuration += int64(data.DurationSeconds)
		if finished := pm.Wins + pm.Losses + pm.Draws; finished > 0 {
			pm.AvgDuration = pm.TotalDuration / int64(finished)
		}
	}
}

// Snapshot returns a deep copy of the current metrics
func (a *AnalyticsMetrics) Snapshot() *AnalyticsMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := &AnalyticsMetrics{
		TotalGames:    a.TotalGames,
		FinishedGames: a.FinishedGames,
		TotalMoves:    a.TotalMoves,
		BotGames:      a.BotGames,
		Draws:         a.Draws,
		Forfeits:      a.Forfeits,
		TotalDuration: a.TotalDuration,
		ColumnCounts:  a.ColumnCounts,
		Solves:        a.Solves,
		SolveNodes:    a.SolveNodes,
		WinCounts:     copyCounts(a.WinCounts),
		GamesPerHour:  copyCounts(a.GamesPerHour),
		GamesPerDay:   copyCounts(a.GamesPerDay),
		SolveOutcomes: copyCounts(a.SolveOutcomes),
		PlayerStats:   make(map[string]*PlayerMetrics, len(a.PlayerStats)),
	}
	for k, v := range a.PlayerStats {
		pm := *v
		out.PlayerStats[k] = &pm
	}
	return out
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// AverageGameDuration returns the mean duration of finished games in seconds
func (a *AnalyticsMetrics) AverageGameDuration() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.FinishedGames == 0 {
		return 0
	}
	return float64(a.TotalDuration) / float64(a.FinishedGames)
}

// MostFrequentWinner returns the player with most wins. Ties go to the
// lexically smallest name.
func (a *AnalyticsMetrics) MostFrequentWinner() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	maxWins := 0
	winner := ""
	for name, wins := range a.WinCounts {
		if wins > maxWins || (wins == maxWins && wins > 0 && name < winner) {
			maxWins = wins
			winner = name
		}
	}
	return winner
}

// GamesPerHourSince returns games started in each of the 24 hours up to now.
func (a *AnalyticsMetrics) GamesPerHourSince(now time.Time) map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make(map[string]int, 24)
	for i := 0; i < 24; i++ {
		key := now.Add(-time.Duration(i) * time.Hour).Format(hourKeyLayout)
		result[key] = a.GamesPerHour[key]
	}
	return result
}
