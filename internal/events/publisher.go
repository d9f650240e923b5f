// Package events broadcasts audience-level lifecycle events (webinar.ready,
// minigroup.ready, ...) over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Publisher broadcasts an event to every subscriber of an audience's topic.
// Fire-and-forget: a lost subscriber is not an error.
type Publisher interface {
	Broadcast(ctx context.Context, audience, label string, payload interface{}) error
}

// envelope is the message published to the audience channel.
type envelope struct {
	Label   string          `json:"label"`
	Payload json.RawMessage `json:"payload"`
	At      int64           `json:"at"`
}

// RedisPublisher implements Publisher using Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a Redis-backed audience event publisher.
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// Topic returns the audience-level broadcast channel name.
func Topic(audience string) string {
	return "audiences:" + audience + ":events"
}

// Broadcast publishes one event to the audience's channel.
func (p *RedisPublisher) Broadcast(ctx context.Context, audience, label string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope{Label: label, Payload: raw, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, Topic(audience), body).Err(); err != nil {
		return err
	}
	p.logger.Debug("event broadcast", zap.String("audience", audience), zap.String("label", label))
	return nil
}
