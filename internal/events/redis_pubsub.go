package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, stream, string(data)).Err()
}

type RedisSubscriber struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisSubscriber(client *redis.Client, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, log: log}
}

// Subscribe starts delivering events from stream to handler until ctx is
// cancelled. It confirms the subscription before returning so a dead Redis
// surfaces here rather than as a silently empty feed.
func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		s.consume(ctx, pubsub.Channel(), handler)
	}()
	return nil
}

// consume decodes messages until ctx is done or the channel closes. A
// payload that fails to decode is logged and skipped so one bad message
// cannot wedge the feed.
func (s *RedisSubscriber) consume(ctx context.Context, ch <-chan *redis.Message, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.log.Warn("dropping undecodable event",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handler(event)
		}
	}
}
