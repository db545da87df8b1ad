package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleRedisPayloadDropsOwnPublishes(t *testing.T) {
	h := NewHub(nil)

	own, err := json.Marshal(redisMessage{
		InstanceID: h.instanceID,
		UserID:     "alice",
		Event:      &Event{Type: EventMessageNew},
	})
	assert.NoError(t, err)

	// An echo of our own publish must not reach the broadcast loop a
	// second time.
	h.handleRedisPayload(own)
	select {
	case ev := <-h.broadcast:
		t.Fatalf("own publish was re-broadcast: %+v", ev)
	default:
	}
}

func TestHandleRedisPayloadBroadcastsRemotePublishes(t *testing.T) {
	h := NewHub(nil)

	remote, err := json.Marshal(redisMessage{
		InstanceID: "other-instance",
		UserID:     "alice",
		Event:      &Event{Type: EventMessageDeleted},
	})
	assert.NoError(t, err)

	h.handleRedisPayload(remote)

	select {
	case ev := <-h.broadcast:
		assert.Equal(t, "alice", ev.UserID)
		assert.Equal(t, EventMessageDeleted, ev.Event.Type)
	default:
		t.Fatal("remote publish was not broadcast locally")
	}
}

func TestHandleRedisPayloadIgnoresGarbage(t *testing.T) {
	h := NewHub(nil)

	h.handleRedisPayload([]byte("not json"))

	select {
	case ev := <-h.broadcast:
		t.Fatalf("garbage payload produced a broadcast: %+v", ev)
	default:
	}
}
