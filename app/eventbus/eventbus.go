// Package eventbus connects module routers to NATS JetStream through watermill.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
)

// EventBus publishes to any topic and hands out per-consumer-group subscribers.
type EventBus interface {
	message.Publisher
	// Subscriber returns a subscriber whose durable consumers are named after group.
	Subscriber(group string) (message.Subscriber, error)
}

// Config locates the NATS server.
type Config struct {
	URL      string
	NKeySeed string
	AckWait  time.Duration
	Streams  []string
}

type natsEventBus struct {
	cfg         Config
	conn        *nc.Conn
	js          jetstream.JetStream
	publisher   *wmnats.Publisher
	subscribers []*wmnats.Subscriber
	natsOpts    []nc.Option
	logger      *slog.Logger
	wmLogger    watermill.LoggerAdapter
}

// NewNATS connects to NATS, provisions one stream per entry in cfg.Streams
// (subjects "<name>.>") and builds a JetStream publisher.
func NewNATS(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	opts := []nc.Option{
		nc.Name("parkour-bot"),
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(2 * time.Second),
	}
	if cfg.NKeySeed != "" {
		opt, err := nkeyOption(cfg.NKeySeed)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	if cfg.AckWait == 0 {
		cfg.AckWait = 30 * time.Second
	}

	conn, err := nc.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Error("Failed to connect to NATS", attr.Error(err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	if err := InitializeStreams(ctx, js, cfg.Streams, logger); err != nil {
		conn.Close()
		return nil, err
	}

	wmLogger := watermill.NewSlogLogger(logger)
	publisher, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: opts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
		},
	}, wmLogger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	return &natsEventBus{
		cfg:       cfg,
		conn:      conn,
		js:        js,
		publisher: publisher,
		natsOpts:  opts,
		logger:    logger,
		wmLogger:  wmLogger,
	}, nil
}

func (b *natsEventBus) Publish(topic string, messages ...*message.Message) error {
	for _, m := range messages {
		if m.UUID == "" {
			m.UUID = watermill.NewUUID()
		}
	}
	if err := b.publisher.Publish(topic, messages...); err != nil {
		b.logger.Error("Failed to publish", attr.Topic(topic), attr.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *natsEventBus) Subscriber(group string) (message.Subscriber, error) {
	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:              b.cfg.URL,
		SubscribersCount: 1,
		AckWaitTimeout:   b.cfg.AckWait,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      b.natsOpts,
		Unmarshaler:      &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:          false,
			AutoProvision:     false,
			DurablePrefix:     group,
			DurableCalculator: DurableName,
			SubscribeOptions: []nc.SubOpt{
				nc.DeliverAll(),
				nc.AckExplicit(),
			},
		},
	}, b.wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS subscriber for %s: %w", group, err)
	}
	b.subscribers = append(b.subscribers, sub)
	return sub, nil
}

func (b *natsEventBus) Close() error {
	for _, s := range b.subscribers {
		if err := s.Close(); err != nil {
			b.logger.Error("Error closing NATS subscriber", attr.Error(err))
		}
	}
	if err := b.publisher.Close(); err != nil {
		b.logger.Error("Error closing NATS publisher", attr.Error(err))
	}
	b.conn.Close()
	return nil
}

// DurableName derives a JetStream-safe consumer name from a group and topic.
func DurableName(group, topic string) string {
	r := strings.NewReplacer(".", "_", "*", "any", ">", "all")
	return r.Replace(group + "_" + topic)
}

func nkeyOption(seed string) (nc.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive NATS public key: %w", err)
	}
	return nc.Nkey(pub, kp.Sign), nil
}

// goChannelBus is an in-process bus. Every subscriber sees every message.
type goChannelBus struct {
	*gochannel.GoChannel
}

// NewGoChannel returns an in-memory EventBus for tests and local runs.
func NewGoChannel(logger *slog.Logger) EventBus {
	return &goChannelBus{
		GoChannel: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger)),
	}
}

func (b *goChannelBus) Subscriber(string) (message.Subscriber, error) {
	return b.GoChannel, nil
}
