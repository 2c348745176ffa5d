// Package fanout relays persisted notifications between server instances
// over Redis pub/sub so a push reaches the instance holding the user's channel.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	graphmodels "friend-connect-backend/internal/features/graph/models"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "friendconnect:notifications"

// Deliverer pushes a notification to a locally connected user.
type Deliverer interface {
	Deliver(userID string, n graphmodels.Notification)
}

type message struct {
	UserID       string                   `json:"user_id"`
	Notification graphmodels.Notification `json:"notification"`
}

type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, userID string, n graphmodels.Notification) error {
	payload, err := json.Marshal(message{UserID: userID, Notification: n})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

// Subscriber receives published notifications and hands them to a Deliverer.
type Subscriber struct {
	client    *redis.Client
	channel   string
	deliverer Deliverer
	logger    zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

func NewSubscriber(client *redis.Client, channel string, deliverer Deliverer, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		client:    client,
		channel:   channel,
		deliverer: deliverer,
		logger:    logger.With().Str("component", "fanout").Logger(),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the subscription is confirmed by the server.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Run consumes messages until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info().Str("channel", s.channel).Msg("Subscribed to notification fan-out")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *Subscriber) handle(payload string) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		s.logger.Warn().Err(err).Msg("Discarding malformed fan-out message")
		return
	}
	if m.UserID == "" {
		s.logger.Warn().Msg("Discarding fan-out message without user id")
		return
	}
	s.deliverer.Deliver(m.UserID, m.Notification)
}
