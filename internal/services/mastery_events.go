package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

const EventAttemptRecorded = "mastery.attempt_recorded"

// AttemptRecordedEvent is published after an attempt commits.
type AttemptRecordedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`

	UserID            uuid.UUID       `json:"user_id"`
	SkillType         types.SkillType `json:"skill_type"`
	ConceptID         string          `json:"concept_id"`
	MasteryRecordID   uuid.UUID       `json:"mastery_record_id"`
	AttemptID         uuid.UUID       `json:"attempt_id"`
	ExerciseSessionID string          `json:"exercise_session_id,omitempty"`

	WasCorrect             bool       `json:"was_correct"`
	DifficultyLevel        int        `json:"difficulty_level"`
	Quality                int        `json:"quality"`
	ProbabilityKnownBefore float64    `json:"probability_known_before"`
	ProbabilityKnownAfter  float64    `json:"probability_known_after"`
	IsMastered             bool       `json:"is_mastered"`
	BecameMastered         bool       `json:"became_mastered"`
	NextReviewAt           *time.Time `json:"next_review_at,omitempty"`
}

type MasteryEventPublisher interface {
	PublishAttemptRecorded(ctx context.Context, ev AttemptRecordedEvent) error
	Close() error
}

type noopMasteryEventPublisher struct{}

func NewNoopMasteryEventPublisher() MasteryEventPublisher { return noopMasteryEventPublisher{} }

func (noopMasteryEventPublisher) PublishAttemptRecorded(context.Context, AttemptRecordedEvent) error {
	return nil
}
func (noopMasteryEventPublisher) Close() error { return nil }

type amqpMasteryEventPublisher struct {
	log      *logger.Logger
	conn     *amqp091.Connection
	mu       sync.Mutex
	channel  *amqp091.Channel
	exchange string
	timeout  time.Duration
}

type AMQPConfig struct {
	URL      string
	Exchange string
	Timeout  time.Duration
}

func NewAMQPMasteryEventPublisher(log *logger.Logger, cfg AMQPConfig) (MasteryEventPublisher, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("missing AMQP_URL")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = "mastery.events"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &amqpMasteryEventPublisher{
		log:      log.With("service", "AMQPMasteryEventPublisher"),
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		timeout:  timeout,
	}, nil
}

func (p *amqpMasteryEventPublisher) PublishAttemptRecorded(ctx context.Context, ev AttemptRecordedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange,   // exchange
		ev.EventType, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.EventID.String(),
			Timestamp:    ev.OccurredAt,
			Type:         ev.EventType,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.log.Debug("Published event", "routing_key", ev.EventType, "event_id", ev.EventID)
	return nil
}

func (p *amqpMasteryEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
