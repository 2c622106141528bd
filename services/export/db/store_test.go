package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, Session{
		ID:              "abc123",
		Domain:          "i.mi.com",
		OutputMode:      "combined",
		TimestampFormat: "dd-MM-yyyy_HH-mm-ss",
		ImagesEnabled:   true,
		Status:          "running",
		StartedAt:       started,
	}))

	got, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "i.mi.com", got.Domain)
	require.Equal(t, "running", got.Status)
	require.True(t, got.ImagesEnabled)
	require.True(t, got.StartedAt.Equal(started))
	require.Nil(t, got.FinishedAt)
	require.Empty(t, got.ErrorMessage)
}

func TestUpdateProgressAndOutcome(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, Session{
		ID:         "abc123",
		Domain:     "i.mi.com",
		OutputMode: "split",
		Status:     "running",
		StartedAt:  started,
	}))

	require.NoError(t, store.UpdateProgress(ctx, "abc123", 40, 12, 3))

	finished := started.Add(time.Minute * 5)
	require.NoError(t, store.SetOutcome(ctx, "abc123", "completed", "", "/tmp/out", finished))

	got, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, 40, got.TotalCount)
	require.Equal(t, 12, got.NotesCount)
	require.Equal(t, 3, got.ImagesCount)
	require.Equal(t, "completed", got.Status)
	require.Equal(t, "/tmp/out", got.OutputPath)
	require.NotNil(t, got.FinishedAt)
	require.True(t, got.FinishedAt.Equal(finished))
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.Insert(ctx, Session{
			ID:         id,
			Domain:     "i.mi.com",
			OutputMode: "combined",
			Status:     "completed",
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, "third", sessions[0].ID)
	require.Equal(t, "first", sessions[2].ID)
}

func TestFailedOutcomeKeepsErrorMessage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, Session{
		ID:         "abc123",
		Domain:     "i.mi.com",
		OutputMode: "combined",
		Status:     "running",
		StartedAt:  time.Now().UTC().Truncate(time.Second),
	}))
	require.NoError(t, store.SetOutcome(ctx, "abc123", "failed",
		"note list never became ready", "", time.Now().UTC()))

	got, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "failed", got.Status)
	require.Equal(t, "note list never became ready", got.ErrorMessage)
}
