// Package redisstream builds the watermill pub/sub that fans chat session updates
// out to connected UIs, in memory or over Redis Streams.
package redisstream

import (
	"context"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamMaxlen caps each session stream. Every frame is a full render, so only
// the newest few are ever useful.
const StreamMaxlen = 50

// Subscription is a live topic subscription. Messages must be acked.
type Subscription struct {
	C     <-chan *message.Message
	close func() error
}

func (s *Subscription) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// Bus publishes payloads on topics and hands out independent subscriptions: every
// subscription sees every message published after it was created.
type Bus struct {
	settings Settings
	wlogger  watermill.LoggerAdapter
	logger   zerolog.Logger

	publisher message.Publisher
	memory    *gochannel.GoChannel
	client    *redis.Client

	closeOnce sync.Once
}

// Build returns the in-memory bus, or a Redis Streams backed one when enabled.
func Build(s Settings, logger zerolog.Logger) (*Bus, error) {
	b := &Bus{
		settings: s,
		wlogger:  NewWatermillLogger(logger),
		logger:   logger.With().Str("component", "update-bus").Logger(),
	}
	if !s.Enabled {
		b.memory = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, b.wlogger)
		b.publisher = b.memory
		return b, nil
	}

	if s.Addr == "" {
		return nil, errors.New("redis enabled but no address configured")
	}
	b.client = redis.NewClient(&redis.Options{Addr: s.Addr})
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:        b.client,
		Marshaller:    rstream.DefaultMarshallerUnmarshaller{},
		DefaultMaxlen: StreamMaxlen,
	}, b.wlogger)
	if err != nil {
		_ = b.client.Close()
		return nil, errors.Wrap(err, "create redis publisher")
	}
	b.publisher = pub
	b.logger.Info().Str("addr", s.Addr).Msg("using redis streams for session updates")
	return b, nil
}

// Redis reports whether the bus is backed by Redis Streams.
func (b *Bus) Redis() bool { return b.client != nil }

func (b *Bus) Publish(topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return errors.Wrapf(b.publisher.Publish(topic, msg), "publish to %s", topic)
}

// Subscribe opens a subscription on topic. consumer must be unique per
// subscription; with Redis it names a consumer group created at the stream tail,
// so history is not replayed.
func (b *Bus) Subscribe(ctx context.Context, topic, consumer string) (*Subscription, error) {
	if b.memory != nil {
		ch, err := b.memory.Subscribe(ctx, topic)
		if err != nil {
			return nil, errors.Wrapf(err, "subscribe to %s", topic)
		}
		return &Subscription{C: ch}, nil
	}

	group := b.settings.Group + ":" + consumer
	if err := EnsureGroupAtTail(ctx, b.client, topic, group); err != nil {
		return nil, err
	}
	// The subscriber closes its client on Close, so it gets its own.
	subClient := redis.NewClient(&redis.Options{Addr: b.settings.Addr})
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        subClient,
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: group,
		Consumer:      consumer,
	}, b.wlogger)
	if err != nil {
		_ = subClient.Close()
		return nil, errors.Wrap(err, "create redis subscriber")
	}
	ch, err := sub.Subscribe(ctx, topic)
	if err != nil {
		_ = sub.Close()
		return nil, errors.Wrapf(err, "subscribe to %s", topic)
	}
	return &Subscription{C: ch, close: func() error {
		err := sub.Close()
		if derr := b.client.XGroupDestroy(context.WithoutCancel(ctx), topic, group).Err(); derr != nil {
			b.logger.Debug().Err(derr).Str("group", group).Msg("could not drop consumer group")
		}
		return err
	}}, nil
}

// DropTopic deletes the Redis stream behind topic. The in-memory bus keeps
// nothing per topic, so it is a no-op there.
func (b *Bus) DropTopic(ctx context.Context, topic string) error {
	if b.client == nil {
		return nil
	}
	return errors.Wrapf(b.client.Del(ctx, topic).Err(), "drop stream %s", topic)
}

func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		// The Redis publisher closes the shared client itself.
		err = b.publisher.Close()
	})
	return err
}

// EnsureGroupAtTail creates the consumer group at $ if it does not exist yet.
func EnsureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	return nil
}
