package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	graphmodels "friend-connect-backend/internal/features/graph/models"
	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/notification/models"
	"friend-connect-backend/internal/features/notification/presence"
	"friend-connect-backend/internal/metrics"
)

// Publisher hands a persisted notification to other instances. When set,
// local delivery happens when the message comes back through the subscriber.
type Publisher interface {
	Publish(ctx context.Context, userID string, n graphmodels.Notification) error
}

// Dispatcher persists notifications and pushes them to online users.
type Dispatcher struct {
	store     repository.GraphStore
	registry  *presence.Registry
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Dispatcher)

// WithPublisher routes live delivery through a cross-instance fan-out.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(store repository.GraphStore, registry *presence.Registry, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		registry: registry,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect registers ch as userID's live channel and sends the snapshot of
// pending requests and unread notifications. Registration happens before the
// snapshot is read so nothing committed meanwhile is lost; a notification may
// then arrive twice and clients de-duplicate by id.
func (d *Dispatcher) Connect(ctx context.Context, userID string, ch presence.Channel) error {
	if _, err := d.store.GetUser(ctx, userID); err != nil {
		return repository.ToAppError(err, "connect")
	}

	if prev := d.registry.Register(userID, ch); prev != nil && prev.ID() != ch.ID() {
		d.logger.Debug().
			Str("user_id", userID).
			Str("previous_channel", prev.ID()).
			Str("channel", ch.ID()).
			Msg("Live channel replaced")
	}
	metrics.OnlineUsers.Set(float64(d.registry.Count()))

	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return repository.ToAppError(err, "load snapshot")
	}
	pending, err := repository.ResolveRequests(ctx, d.store, user)
	if err != nil {
		return repository.ToAppError(err, "load snapshot")
	}

	if err := ch.Send(models.Frame{Event: models.EventPendingRequests, Data: pending}); err != nil {
		d.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to send pending requests snapshot")
	}
	if err := ch.Send(models.Frame{Event: models.EventNotifications, Data: user.UnreadNotifications()}); err != nil {
		d.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to send notifications snapshot")
	}

	d.logger.Info().
		Str("user_id", userID).
		Str("channel", ch.ID()).
		Int("pending_requests", len(pending)).
		Msg("User connected")
	return nil
}

// Disconnect forgets ch. A channel that was already replaced is ignored.
func (d *Dispatcher) Disconnect(ch presence.Channel) {
	userID, ok := d.registry.Unregister(ch)
	metrics.OnlineUsers.Set(float64(d.registry.Count()))
	if ok {
		d.logger.Info().Str("user_id", userID).Str("channel", ch.ID()).Msg("User disconnected")
	}
}

// Dispatch appends the event to the recipient's log and then tries to push it.
// An error means nothing was persisted. Push failures are only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, event models.Event) (graphmodels.Notification, error) {
	n := models.NewNotification(event, d.newID(), d.now())
	if err := d.store.AppendNotification(ctx, userID, n); err != nil {
		return graphmodels.Notification{}, repository.ToAppError(err, "persist notification")
	}
	metrics.NotificationsPersisted.WithLabelValues(string(n.Kind)).Inc()

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, userID, n); err != nil {
			metrics.NotificationDeliveries.WithLabelValues(metrics.DeliveryDropped).Inc()
			d.logger.Warn().Err(err).
				Str("user_id", userID).
				Str("notification_id", n.ID).
				Msg("Failed to publish notification")
			return n, nil
		}
		metrics.NotificationDeliveries.WithLabelValues(metrics.DeliveryPublished).Inc()
		return n, nil
	}

	d.Deliver(userID, n)
	return n, nil
}

// Deliver pushes n to userID if the user is online on this instance.
// It never blocks and never retries.
func (d *Dispatcher) Deliver(userID string, n graphmodels.Notification) {
	ch, ok := d.registry.Lookup(userID)
	if !ok {
		metrics.NotificationDeliveries.WithLabelValues(metrics.DeliveryOffline).Inc()
		return
	}
	frame, err := models.NotificationFrame(n)
	if err != nil {
		d.logger.Error().Err(err).Str("notification_id", n.ID).Msg("Cannot build notification frame")
		return
	}
	if err := ch.Send(frame); err != nil {
		metrics.NotificationDeliveries.WithLabelValues(metrics.DeliveryDropped).Inc()
		evt := d.logger.Warn()
		if errors.Is(err, presence.ErrChannelClosed) {
			evt = d.logger.Debug()
		}
		evt.Err(err).
			Str("user_id", userID).
			Str("notification_id", n.ID).
			Msg("Live push dropped")
		return
	}
	metrics.NotificationDeliveries.WithLabelValues(metrics.DeliveryPushed).Inc()
}

// List returns the user's notification log, oldest first.
func (d *Dispatcher) List(ctx context.Context, userID string) ([]graphmodels.Notification, error) {
	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return nil, repository.ToAppError(err, "list notifications")
	}
	if user.Notifications == nil {
		return []graphmodels.Notification{}, nil
	}
	return user.Notifications, nil
}

func (d *Dispatcher) MarkRead(ctx context.Context, userID, notificationID string) error {
	return repository.ToAppError(d.store.MarkNotificationRead(ctx, userID, notificationID), "mark notification read")
}

func (d *Dispatcher) Clear(ctx context.Context, userID string) error {
	return repository.ToAppError(d.store.ClearNotifications(ctx, userID), "clear notifications")
}

// Shutdown clears the registry and returns the channels that were still online.
func (d *Dispatcher) Shutdown() []presence.Channel {
	chans := d.registry.Clear()
	metrics.OnlineUsers.Set(0)
	return chans
}
