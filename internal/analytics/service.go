// Package analytics is the standalone consumer of the event topic. It keeps
// running totals and, when a database is configured, one row per finished
// match.
package analytics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	events "github.com/rrrane/connect-four/internal/kafka"
)

// Reader is the part of *kafka.Reader the service uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Recorder persists finished matches.
type Recorder interface {
	RecordMatch(ctx context.Context, gameID string, at time.Time, data *events.GameEndData) error
}

// Service reads events and folds them into metrics.
type Service struct {
	reader   Reader
	recorder Recorder
	metrics  *events.AnalyticsMetrics
	retry    time.Duration
}

// NewReader returns a consumer-group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
}

// NewService creates a service. recorder may be nil.
func NewService(reader Reader, recorder Recorder) *Service {
	return &Service{
		reader:   reader,
		recorder: recorder,
		metrics:  events.NewAnalyticsMetrics(),
		retry:    time.Second,
	}
}

// Run consumes until ctx is done or the reader is closed.
func (s *Service) Run(ctx context.Context) {
	log.Info().Msg("analytics consumer started")

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			// kafka-go reports a closed reader as io.EOF
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Warn().Err(err).Msg("read event")
			select {
			case <-time.After(s.retry):
			case <-ctx.Done():
				return
			}
			continue
		}
		s.handle(ctx, msg)
	}
}

func (s *Service) handle(ctx context.Context, msg kafka.Message) {
	ev, err := events.DecodeEvent(msg.Value)
	if err != nil {
		log.Warn().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("skipping event")
		return
	}
	s.metrics.Apply(ev)

	switch {
	case ev.Start != nil:
		log.Info().Str("match", ev.GameID).Str("player1", ev.Start.Player1).Str("player2", ev.Start.Player2).Bool("bot", ev.Start.IsVsBot).Msg("match started")
	case ev.End != nil:
		log.Info().
			Str("match", ev.GameID).
			Str("result", ev.End.Result).
			Str("winner", ev.End.Winner).
			Int("duration", ev.End.DurationSeconds).
			Int("moves", ev.End.TotalMoves).
			Float64("avgDuration", s.metrics.AverageGameDuration()).
			Str("topWinner", s.metrics.MostFrequentWinner()).
			Msg("match finished")
		if s.recorder != nil {
			if err := s.recorder.RecordMatch(ctx, ev.GameID, ev.Timestamp, ev.End); err != nil {
				log.Error().Err(err).Str("match", ev.GameID).Msg("record match")
			}
		}
	case ev.Solve != nil:
		log.Debug().Str("moves", ev.Solve.Moves).Int("depth", ev.Solve.Depth).Str("outcome", ev.Solve.Outcome).Bool("cached", ev.Solve.Cached).Msg("solve")
	}
}

// Metrics returns a copy of the running totals.
func (s *Service) Metrics() *events.AnalyticsMetrics {
	return s.metrics.Snapshot()
}

// Close closes the reader.
func (s *Service) Close() error {
	return s.reader.Close()
}
