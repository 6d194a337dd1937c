package kafka

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/player"
)

// Producer handles Kafka event production
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
}

// NewProducer connects to brokers. When Kafka is unreachable it returns a
// disabled producer whose Emit methods do nothing.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		log.Warn().Err(err).Strs("brokers", brokers).Msg("kafka producer not available, events disabled")
		return &Producer{topic: topic}, nil
	}

	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka producer connected")
	return newProducer(producer, topic), nil
}

func newProducer(p sarama.SyncProducer, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{producer: p, topic: topic, enabled: true}
}

// EmitGameStart emits a game start event
func (p *Producer) EmitGameStart(m *match.Match) {
	if !p.IsEnabled() {
		return
	}

	state := m.GetState()
	data := GameStartData{
		Player1: state.Player1,
		Player2: state.Player2,
		IsVsBot: state.IsVsBot,
	}
	if bot, ok := m.Bot().(*player.Searcher); ok {
		data.BotDepth = bot.Depth()
	}
	p.send(GameEvent{Type: EventGameStart, GameID: m.ID, Timestamp: time.Now(), Data: data})
}

// EmitMove emits a move event
func (p *Producer) EmitMove(m *match.Match, mv match.Move) {
	if !p.IsEnabled() {
		return
	}

	p1, p2 := m.Usernames()
	name := p1
	if mv.PlayerNum == 2 {
		name = p2
	}
	p.send(GameEvent{
		Type:      EventMove,
		GameID:    m.ID,
		Timestamp: mv.Timestamp,
		Data: MoveData{
			Player:    name,
			PlayerNum: mv.PlayerNum,
			Column:    mv.Column,
			Row:       mv.Row,
			MoveNum:   len(m.MoveHistory()),
		},
	})
}

// EmitGameEnd emits a game end event
func (p *Producer) EmitGameEnd(m *match.Match) {
	if !p.IsEnabled() {
		return
	}

	state := m.GetState()
	p.send(GameEvent{
		Type:      EventGameEnd,
		GameID:    m.ID,
		Timestamp: time.Now(),
		Data: GameEndData{
			Player1:         state.Player1,
			Player2:         state.Player2,
			Winner:          state.Winner,
			Result:          state.Result,
			DurationSeconds: m.Duration(),
			TotalMoves:      state.MoveCount,
			IsVsBot:         state.IsVsBot,
			Moves:           m.Columns(),
		},
	})
}

// EmitSolve emits a solver query event. requestID groups the event with
// the HTTP request that produced it.
func (p *Producer) EmitSolve(requestID string, data SolveData) {
	if !p.IsEnabled() {
		return
	}
	p.send(GameEvent{Type: EventSolve, GameID: requestID, Timestamp: time.Now(), Data: data})
}

// send sends an event to Kafka
func (p *Producer) send(event GameEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("marshal event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("send event to kafka")
		return
	}
	log.Debug().
		Str("type", string(event.Type)).
		Str("key", event.GameID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("event sent")
}

// Close closes the producer
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// IsEnabled returns whether Kafka is enabled. A nil producer is disabled.
func (p *Producer) IsEnabled() bool {
	return p != nil && p.enabled
}
