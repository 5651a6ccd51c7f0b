package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/notify"
	"github.com/colonyops/farepilot/internal/data/db"
)

// NotifyStore keeps operator notifications in the journal database.
type NotifyStore struct {
	db  *db.DB
	now func() time.Time
}

var _ notify.Store = (*NotifyStore)(nil)

func NewNotifyStore(db *db.DB) *NotifyStore {
	return &NotifyStore{db: db, now: time.Now}
}

func (s *NotifyStore) Save(ctx context.Context, n notify.Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	id, err := s.db.Queries().InsertNotification(ctx, db.InsertNotificationParams{
		Level:     string(n.Level),
		Severity:  int64(n.Level.Severity()),
		Source:    string(n.Source),
		Message:   n.Message,
		CreatedAt: n.CreatedAt.UnixNano(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// List returns notifications at or above q.MinLevel, newest first.
func (s *NotifyStore) List(ctx context.Context, q notify.Query) ([]notify.Notification, error) {
	rows, err := s.db.Queries().ListNotifications(ctx, db.ListNotificationsParams{
		MinSeverity: int64(q.MinLevel.Severity()),
		Limit:       sqlLimit(q.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	out := make([]notify.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, notify.Notification{
			ID:        row.ID,
			Level:     notify.Level(row.Level),
			Source:    notify.Source(row.Source),
			Message:   row.Message,
			CreatedAt: time.Unix(0, row.CreatedAt),
		})
	}
	return out, nil
}

func (s *NotifyStore) Clear(ctx context.Context) error {
	if err := s.db.Queries().DeleteAllNotifications(ctx); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

func (s *NotifyStore) Count(ctx context.Context) (int64, error) {
	n, err := s.db.Queries().CountNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

// Register persists every notification the router publishes.
func (s *NotifyStore) Register(bus *eventbus.EventBus) {
	bus.SubscribeNotificationPublished(func(p eventbus.NotificationPublishedPayload) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		n := notify.Notification{Level: p.Level, Source: p.Source, Message: p.Message}
		if _, err := s.Save(ctx, n); err != nil {
			log.Error().Err(err).Str("source", string(p.Source)).Msg("persist notification")
		}
	})
}
