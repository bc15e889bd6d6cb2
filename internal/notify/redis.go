// Package notify publishes session events to Redis so observers on other
// server instances can follow along. Delivery is fire-and-forget: the game
// core never blocks on or retries a publish, and a failed publish never rolls
// back the state transition that produced it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisPublisher struct {
	client *redis.Client
	log    *logrus.Logger
}

// ConnectRedis dials Redis and verifies the connection.
func ConnectRedis(addr string, dbIndex int, log *logrus.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIndex,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisPublisher{client: client, log: log}, nil
}

type envelope struct {
	SessionID uint           `json:"session_id"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Timestamp int64          `json:"timestamp"`
}

// Publish pushes one event onto the session's channel.
func (p *RedisPublisher) Publish(sessionID uint, event string, payload map[string]any) {
	data, err := json.Marshal(envelope{
		SessionID: sessionID,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	channel := fmt.Sprintf("session:%d", sessionID)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil && p.log != nil {
		p.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"event":      event,
			"error":      err,
		}).Warn("redis publish failed")
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
