package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/notify"
	"github.com/colonyops/farepilot/internal/data/db"
)

func newNotifyStore(t *testing.T) *NotifyStore {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewNotifyStore(database)
}

func seedNotifications(t *testing.T, s *NotifyStore) {
	t.Helper()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	seed := []notify.Notification{
		{Level: notify.LevelInfo, Source: notify.SourceFilters, Message: "filters reloaded (mode amount)"},
		{Level: notify.LevelWarning, Source: notify.SourceTimeout, Message: "timed out in refreshing after 10s"},
		{Level: notify.LevelInfo, Source: notify.SourceAccept, Message: "accepted Seoul Station → Airport for 42000"},
		{Level: notify.LevelError, Source: notify.SourceFault, Message: "invalidated fault in confirming"},
	}
	for i, n := range seed {
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.Save(context.Background(), n)
		require.NoError(t, err)
	}
}

func TestNotifyStoreList(t *testing.T) {
	tests := []struct {
		name  string
		query notify.Query
		want  []notify.Source
	}{
		{
			name:  "all newest first",
			query: notify.Query{},
			want:  []notify.Source{notify.SourceFault, notify.SourceAccept, notify.SourceTimeout, notify.SourceFilters},
		},
		{
			name:  "limit",
			query: notify.Query{Limit: 2},
			want:  []notify.Source{notify.SourceFault, notify.SourceAccept},
		},
		{
			name:  "warnings and up",
			query: notify.Query{MinLevel: notify.LevelWarning},
			want:  []notify.Source{notify.SourceFault, notify.SourceTimeout},
		},
		{
			name:  "errors only",
			query: notify.Query{MinLevel: notify.LevelError, Limit: 10},
			want:  []notify.Source{notify.SourceFault},
		},
	}

	store := newNotifyStore(t)
	seedNotifications(t, store)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := store.List(context.Background(), tt.query)
			require.NoError(t, err)

			got := make([]notify.Source, 0, len(items))
			for _, n := range items {
				got = append(got, n.Source)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotifyStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newNotifyStore(t)

	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	id, err := store.Save(ctx, notify.Notification{
		Level:     notify.LevelWarning,
		Source:    notify.SourcePause,
		Message:   "engine paused in confirming: confirm control never appeared",
		CreatedAt: at,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	items, err := store.List(ctx, notify.Query{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, notify.SourcePause, items[0].Source)
	assert.True(t, at.Equal(items[0].CreatedAt))
}

func TestNotifyStoreClearAndCount(t *testing.T) {
	ctx := context.Background()
	store := newNotifyStore(t)

	items, err := store.List(ctx, notify.Query{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	seedNotifications(t, store)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, store.Clear(ctx))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotifyStoreRegister(t *testing.T) {
	store := newNotifyStore(t)
	fixed := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	bus := eventbus.New(8)
	store.Register(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Start(ctx)

	bus.PublishNotificationPublished(eventbus.NotificationPublishedPayload{
		Level:   notify.LevelWarning,
		Source:  notify.SourceTimeout,
		Message: "timed out in analyzing after 3s",
	})

	require.Eventually(t, func() bool {
		n, err := store.Count(context.Background())
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	items, err := store.List(context.Background(), notify.Query{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, notify.SourceTimeout, items[0].Source)
	assert.True(t, fixed.Equal(items[0].CreatedAt))
}
