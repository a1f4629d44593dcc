//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rumba-live/rumba/pkg/database/migrate"
	"github.com/rumba-live/rumba/pkg/session"
)

func TestStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:15",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() { _ = pgContainer.Terminate(ctx) }()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, migrate.Run(db))

	store := New(db)

	newSession := func(state session.State) *session.Session {
		return &session.Session{
			ID:         uuid.NewString(),
			Concert:    "Summer Night",
			Band:       "The Wailers",
			Date:       time.Date(2026, 7, 18, 21, 0, 0, 0, time.UTC),
			Location:   "Madrid",
			IsPublic:   true,
			FolderURL:  "/media/The_Wailers",
			EditionURL: "http://rumba.example.com/editor-nice/x",
			RecordURL:  "http://rumba.example.com/camera-back",
			MasterURL:  "http://rumba.example.com/master-camera",
			State:      state,
		}
	}

	t.Run("insert and find round-trip", func(t *testing.T) {
		sess := newSession(session.StateCreated)
		require.NoError(t, store.Insert(ctx, sess))
		defer func() { _ = store.Delete(ctx, sess.ID) }()

		got, err := store.FindByID(ctx, sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, sess.Concert, got.Concert)
		assert.Equal(t, sess.FolderURL, got.FolderURL)
		assert.Equal(t, session.StateCreated, got.State)
		assert.Nil(t, got.AudioTimestamp)
		assert.True(t, sess.Date.Equal(got.Date))
	})

	t.Run("find by id not found", func(t *testing.T) {
		got, err := store.FindByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("state filter and count", func(t *testing.T) {
		finished := newSession(session.StateFinished)
		live := newSession(session.StateCreated)
		require.NoError(t, store.Insert(ctx, finished))
		require.NoError(t, store.Insert(ctx, live))
		defer func() {
			_ = store.Delete(ctx, finished.ID)
			_ = store.Delete(ctx, live.ID)
		}()

		found, err := store.FindByStates(ctx, session.LiveStates...)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, live.ID, found[0].ID)

		count, err := store.CountByStates(ctx, session.LiveStates...)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("update fields", func(t *testing.T) {
		sess := newSession(session.StateCreated)
		require.NoError(t, store.Insert(ctx, sess))
		defer func() { _ = store.Delete(ctx, sess.ID) }()

		startedAt := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, store.UpdateFields(ctx, sess.ID, session.Fields{
			session.FieldState:          session.StateActive,
			session.FieldAudioTimestamp: startedAt,
		}))

		got, err := store.FindByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, session.StateActive, got.State)
		require.NotNil(t, got.AudioTimestamp)
		assert.True(t, startedAt.Equal(*got.AudioTimestamp))
	})

	t.Run("schema rejects second live session", func(t *testing.T) {
		first := newSession(session.StateCreated)
		require.NoError(t, store.Insert(ctx, first))
		defer func() { _ = store.Delete(ctx, first.ID) }()

		// The partial unique index is the store-level backstop for the
		// manager's single-live-session invariant.
		err := store.Insert(ctx, newSession(session.StateActive))
		assert.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		sess := newSession(session.StateFinished)
		require.NoError(t, store.Insert(ctx, sess))
		require.NoError(t, store.Delete(ctx, sess.ID))

		got, err := store.FindByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
