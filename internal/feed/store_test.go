package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagedesk/pkg/models"
)

func TestStoreSubscribeDeliversCurrentStateImmediately(t *testing.T) {
	store := NewStore()
	store.setRecords([]models.CallRecord{record("a", models.TierRed, 0)})

	var got []Snapshot
	unsub := store.Subscribe(func(s Snapshot) { got = append(got, s) })
	defer unsub()

	require.Len(t, got, 1)
	assert.Equal(t, StatusConnecting, got[0].Status)
	assert.Equal(t, []string{"a"}, ids(got[0].Records))
}

func TestStoreNotifiesOnEveryFieldChange(t *testing.T) {
	store := NewStore()

	var got []Snapshot
	unsub := store.Subscribe(func(s Snapshot) { got = append(got, s) })
	defer unsub()

	store.setStatus(StatusLive)
	store.setRecords([]models.CallRecord{record("a", models.TierRed, 0)})
	store.addHighlight("a")
	store.removeHighlight("a")

	require.Len(t, got, 5) // initial + 4 changes
	assert.Equal(t, StatusLive, got[1].Status)
	assert.Equal(t, []string{"a"}, ids(got[2].Records))
	assert.Equal(t, []string{"a"}, got[3].Highlights)
	assert.Empty(t, got[4].Highlights)
}

func TestStoreUnsubscribeStopsDelivery(t *testing.T) {
	store := NewStore()

	calls := 0
	unsub := store.Subscribe(func(Snapshot) { calls++ })
	unsub()

	store.setStatus(StatusDegraded)
	assert.Equal(t, 1, calls) // only the initial delivery
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.setRecords([]models.CallRecord{record("a", models.TierRed, 0)})
	store.addHighlight("a")

	snap := store.Snapshot()
	snap.Records[0].ID = "mutated"
	snap.Highlights[0] = "mutated"

	fresh := store.Snapshot()
	assert.Equal(t, "a", fresh.Records[0].ID)
	assert.Equal(t, []string{"a"}, fresh.Highlights)
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "live", StatusLive.String())
	assert.Equal(t, "degraded", StatusDegraded.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestStoreListenerCanReadBack(t *testing.T) {
	store := NewStore()

	// A listener that calls back into the store must not deadlock.
	done := make(chan struct{}, 1)
	unsub := store.Subscribe(func(Snapshot) {
		_ = store.Status()
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer unsub()

	store.setStatus(StatusLive)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener blocked while reading store state")
	}
}
