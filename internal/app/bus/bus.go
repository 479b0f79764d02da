// Package bus is the asynchronous messaging layer between the schedule
// coordinator, the capture worker and downstream collaborators. It maps the
// topic pub/sub contract onto Redis Streams: publishing appends to the
// topic's stream, durable subscribers read through consumer groups and ack
// after handling, which gives at-least-once delivery with redelivery of
// unacked entries after a crash. Order holds within one stream, never
// across topics.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	streamPrefix = "radiorec:"
	maxStreamLen = 10000

	// Pending entries idle longer than this are stolen from dead consumers.
	staleClaimIdle = time.Minute
)

var validate = validator.New()

// Message is one delivered bus entry. The consumer acks it after handling.
type Message struct {
	ID    string
	Topic string
	Body  []byte
}

// Decode unmarshals and validates the payload. Invalid payloads are a
// data-inconsistency error: callers log, ack and drop them.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("malformed payload on %s: %w", m.Topic, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload on %s: %w", m.Topic, err)
	}
	return nil
}

// Bus publishes and consumes topic messages over a Redis connection.
type Bus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func New(addr string, logger *zap.Logger) *Bus {
	return &Bus{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		logger: logger,
	}
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(rdb *redis.Client, logger *zap.Logger) *Bus {
	return &Bus{rdb: rdb, logger: logger}
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *Bus) Close() error {
	return b.rdb.Close()
}

func streamKey(topic string) string {
	return streamPrefix + topic
}

func topicOf(stream string) string {
	return strings.TrimPrefix(stream, streamPrefix)
}

// Publish appends the payload to the topic's stream. State the payload
// describes must already be durable: a publish failure is reported to the
// caller but never rolls anything back.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{"body": body},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// EnsureGroup creates the consumer group on the topic stream if it does not
// exist yet, creating the stream as needed.
func (b *Bus) EnsureGroup(ctx context.Context, group string, topics ...string) error {
	for _, topic := range topics {
		err := b.rdb.XGroupCreateMkStream(ctx, streamKey(topic), group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create group %s on %s: %w", group, topic, err)
		}
	}
	return nil
}

// Fetch reads up to count new entries for the group across the given topics,
// blocking at most block. It returns without error when nothing is pending;
// the caller acks each message after handling it.
func (b *Bus) Fetch(ctx context.Context, group, consumer string, topics []string, block time.Duration, count int64) ([]Message, error) {
	streams := make([]string, 0, len(topics)*2)
	for _, t := range topics {
		streams = append(streams, streamKey(t))
	}
	for range topics {
		streams = append(streams, ">")
	}

	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  streams,
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read group %s: %w", group, err)
	}

	var msgs []Message
	for _, stream := range res {
		for _, entry := range stream.Messages {
			msgs = append(msgs, toMessage(topicOf(stream.Stream), entry))
		}
	}
	return msgs, nil
}

// ClaimStale transfers entries other consumers left pending for longer than
// staleClaimIdle to this consumer, so work from a crashed process is
// redelivered instead of stranded.
func (b *Bus) ClaimStale(ctx context.Context, group, consumer, topic string, count int64) ([]Message, error) {
	entries, _, err := b.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamKey(topic),
		Group:    group,
		Consumer: consumer,
		MinIdle:  staleClaimIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale entries on %s: %w", topic, err)
	}

	msgs := make([]Message, 0, len(entries))
	for _, entry := range entries {
		msgs = append(msgs, toMessage(topic, entry))
	}
	return msgs, nil
}

// Ack confirms handled messages. Unacked entries are redelivered.
func (b *Bus) Ack(ctx context.Context, group string, msgs ...Message) {
	for _, m := range msgs {
		if err := b.rdb.XAck(ctx, streamKey(m.Topic), group, m.ID).Err(); err != nil {
			b.logger.Warn("failed to ack message",
				zap.String("topic", m.Topic), zap.String("id", m.ID), zap.Error(err))
		}
	}
}

// Subscribe consumes a topic under the group until ctx is done, invoking
// handler for each delivery. Messages are acked only after the handler
// returns nil; handler errors leave the entry pending for redelivery.
func (b *Bus) Subscribe(ctx context.Context, group, consumer, topic string, handler func(Message) error) {
	for ctx.Err() == nil {
		claimed, err := b.ClaimStale(ctx, group, consumer, topic, 16)
		if err != nil && ctx.Err() == nil {
			b.logger.Warn("stale claim failed", zap.String("topic", topic), zap.Error(err))
		}
		msgs, err := b.Fetch(ctx, group, consumer, []string{topic}, 5*time.Second, 16)
		if err != nil && ctx.Err() == nil {
			b.logger.Warn("fetch failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, m := range append(claimed, msgs...) {
			if err := handler(m); err != nil {
				b.logger.Error("handler failed, leaving message pending",
					zap.String("topic", m.Topic), zap.String("id", m.ID), zap.Error(err))
				continue
			}
			b.Ack(ctx, group, m)
		}
	}
}

func toMessage(topic string, entry redis.XMessage) Message {
	m := Message{ID: entry.ID, Topic: topic}
	if body, ok := entry.Values["body"].(string); ok {
		m.Body = []byte(body)
	}
	return m
}
