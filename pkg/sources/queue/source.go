// Package queue provides the Redis queue trigger source: it pops inbound
// business events off a Redis list and feeds them into the engine.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/driphq/drip/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

// DefaultQueue is the Redis list consumed when no queue name is configured.
const DefaultQueue = "drip:events"

// ErrMissingQueue is returned when the source is configured without a queue name.
var ErrMissingQueue = errors.New("queue source requires a queue name")

// EventSink receives decoded inbound events. Satisfied by the engine.
type EventSink interface {
	TriggerEvent(ctx context.Context, eventType models.EventType, userID string, eventData map[string]any) ([]string, error)
}

// inboundEvent is the wire shape producers push onto the queue.
type inboundEvent struct {
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Source consumes events from a Redis list with BLPOP and hands each decoded
// event to the sink. Malformed messages are logged and dropped; the consumer
// loop never stops on a bad payload.
type Source struct {
	queue  string
	sink   EventSink
	client redis.UniversalClient
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSource creates a queue source from a Redis URL
// (redis://[:password@]host:port/db).
func NewSource(redisURL, queueName string, sink EventSink, logger *slog.Logger) (*Source, error) {
	if queueName == "" {
		queueName = DefaultQueue
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Source{
		queue:  queueName,
		sink:   sink,
		client: redis.NewClient(options),
		stopCh: make(chan struct{}),
		logger: logger.With("module", "queue_source", "queue", queueName),
	}, nil
}

// Start verifies the Redis connection and launches the consumer loop.
func (s *Source) Start(ctx context.Context) error {
	if s.queue == "" {
		return ErrMissingQueue
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Queue source started")

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

// Stop halts the consumer loop and closes the Redis client.
func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping queue source")

	close(s.stopCh)
	s.wg.Wait()

	err := s.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error processing queue message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	eventType, userID, data, err := decodeMessage(result[1])
	if err != nil {
		s.logger.WarnContext(ctx, "Dropping malformed queue message", "error", err)

		return nil
	}

	started, err := s.sink.TriggerEvent(ctx, eventType, userID, data)
	if err != nil {
		s.logger.WarnContext(ctx, "Dropping rejected event",
			"event_type", eventType,
			"user_id", userID,
			"error", err)

		return nil
	}

	s.logger.DebugContext(ctx, "Queue event processed",
		"event_type", eventType,
		"user_id", userID,
		"executions_started", len(started))

	return nil
}

// decodeMessage parses one queue payload into its event parts. Unknown event
// types are caught later by the sink; this only enforces the envelope shape.
func decodeMessage(payload string) (models.EventType, string, map[string]any, error) {
	var event inboundEvent

	err := json.Unmarshal([]byte(payload), &event)
	if err != nil {
		return "", "", nil, fmt.Errorf("invalid event payload: %w", err)
	}

	if event.EventType == "" {
		return "", "", nil, errors.New("event payload missing event_type")
	}

	if event.UserID == "" {
		return "", "", nil, errors.New("event payload missing user_id")
	}

	return models.EventType(event.EventType), event.UserID, event.Data, nil
}
