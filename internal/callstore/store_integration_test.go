package callstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagedesk/internal/feed"
	"github.com/triagedesk/pkg/models"
)

// Integration tests need a reachable Postgres; set TRIAGEDESK_TEST_DATABASE_URL
// to run them.
func testStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database integration test")
	}
	dsn := os.Getenv("TRIAGEDESK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRIAGEDESK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func testRecord() models.CallRecord {
	return models.CallRecord{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		RiskTier:       models.TierRed,
		Advice:         "Call 108 immediately.",
		ClinicalReason: "Heavy bleeding reported.",
		Transcript:     "test transcript",
		Symptoms:       models.SymptomReport{Bleeding: models.BleedingHeavy},
		CallerPhone:    "+919876543210",
		WeeksPregnant:  28,
	}
}

func TestInsertAndFetchRoundtrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := testRecord()
	require.NoError(t, store.InsertCall(ctx, rec))

	t.Run("FetchByID", func(t *testing.T) {
		got, err := store.FetchByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, models.TierRed, got.RiskTier)
		assert.Equal(t, rec.Symptoms, got.Symptoms)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("FetchByIDNotFound", func(t *testing.T) {
		_, err := store.FetchByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, feed.ErrNotFound)
	})

	t.Run("ReinsertIsNoop", func(t *testing.T) {
		dup := rec
		dup.Advice = "changed"
		require.NoError(t, store.InsertCall(ctx, dup))

		got, err := store.FetchByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.Advice, got.Advice)
	})

	t.Run("FetchOrderedNewestFirst", func(t *testing.T) {
		newer := testRecord()
		newer.CreatedAt = rec.CreatedAt.Add(time.Hour)
		require.NoError(t, store.InsertCall(ctx, newer))

		records, err := store.FetchOrdered(ctx, 100)
		require.NoError(t, err)
		require.NotEmpty(t, records)

		for i := 1; i < len(records); i++ {
			assert.False(t, records[i-1].CreatedAt.Before(records[i].CreatedAt))
		}
	})
}

func TestInsertNotifiesSubscribers(t *testing.T) {
	store := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := store.SubscribeInserts(ctx)
	require.NoError(t, err)
	defer stream.Close()

	select {
	case <-stream.Ready():
	case <-time.After(10 * time.Second):
		t.Fatal("listener never became ready")
	}

	rec := testRecord()
	require.NoError(t, store.InsertCall(ctx, rec))

	select {
	case id := <-stream.Inserts():
		assert.Equal(t, rec.ID, id)
	case <-time.After(10 * time.Second):
		t.Fatal("insert notification never arrived")
	}
}
