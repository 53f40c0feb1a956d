package notify_test

import (
	"testing"
	"time"

	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(owner string, version int64) *model.ChangeEvent {
	return &model.ChangeEvent{
		ReservationID: "r-1",
		OwnerIdentity: owner,
		Version:       version,
		Kind:          model.ChangeKindConfirmed,
		OccurredAt:    time.Now().UTC(),
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := notify.NewHub(4)
	admin := hub.Subscribe("admin@test.com", true)
	owner := hub.Subscribe("ana@test.com", false)
	other := hub.Subscribe("bob@test.com", false)
	defer admin.Close()
	defer owner.Close()
	defer other.Close()

	delivered := hub.Broadcast(change("ana@test.com", 2))

	assert.Equal(t, 2, delivered)

	notice := <-admin.C()
	assert.Equal(t, "r-1", notice.ReservationID)
	assert.Equal(t, int64(2), notice.Version)
	assert.Equal(t, model.ChangeKindConfirmed, notice.Kind)

	notice = <-owner.C()
	assert.Equal(t, int64(2), notice.Version)

	select {
	case <-other.C():
		t.Fatal("其他使用者不應收到")
	default:
	}
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := notify.NewHub(1)
	sub := hub.Subscribe("ana@test.com", false)
	defer sub.Close()

	assert.Equal(t, 1, hub.Broadcast(change("ana@test.com", 2)))
	assert.Equal(t, 0, hub.Broadcast(change("ana@test.com", 3)))
	assert.Equal(t, int64(1), sub.Dropped())

	notice := <-sub.C()
	assert.Equal(t, int64(2), notice.Version)
}

func TestHub_Close(t *testing.T) {
	hub := notify.NewHub(1)
	sub := hub.Subscribe("ana@test.com", false)
	require.Equal(t, 1, hub.Count())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.Count())
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Broadcast(change("ana@test.com", 2)))
}
