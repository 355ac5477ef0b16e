package broadcast

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(n uint64) monitor.Snapshot {
	return monitor.Snapshot{
		BlockNumber: n,
		BlockHash:   "0xabc",
		Transactions: []monitor.RelevantTransaction{
			{TxHash: "0x01", From: "0x02", GasUsed: 21000},
		},
	}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, hub.Len())

	hub.Publish(snapshot(9))
	for _, sub := range []*Subscription{a, b} {
		event := <-sub.Events
		assert.Equal(t, EventNewBlock, event.Type)
		assert.Equal(t, uint64(9), event.Data.(monitor.Snapshot).BlockNumber)
	}
}

func TestStalledSubscriberNeverBlocks(t *testing.T) {
	hub := NewHub(2)
	stalled := hub.Subscribe()
	live := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint64(0); i < 10; i++ {
			hub.Publish(snapshot(i))
			<-live.Events
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}
	assert.Len(t, stalled.Events, 2)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe()
	hub.Unsubscribe(sub.ID)
	hub.Unsubscribe(sub.ID)

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())
	hub.Publish(snapshot(1))
}

func TestWebsocketStreamsEvents(t *testing.T) {
	hub := NewHub(4)
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting Event
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, EventConnected, greeting.Type)
	assert.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(snapshot(42))
	var raw struct {
		Type string           `json:"type"`
		Data monitor.Snapshot `json:"data"`
	}
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, EventNewBlock, raw.Type)
	assert.Equal(t, uint64(42), raw.Data.BlockNumber)
	assert.Equal(t, "0x01", raw.Data.Transactions[0].TxHash)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}
