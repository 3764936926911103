package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testHub() *Hub {
	return NewHub(zap.NewNop(), nil)
}

func recv(t *testing.T, c *Client) (Event, bool) {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev, true
	default:
		return Event{}, false
	}
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRegisterUnregister(t *testing.T) {
	h := testHub()

	c := NewClient("conn-1", 4)
	require.True(t, h.Register(c))
	assert.Equal(t, 1, h.ActiveConnections())

	h.Unregister("conn-1")
	assert.Equal(t, 0, h.ActiveConnections())

	// The outbound channel is closed so the write pump exits.
	_, open := <-c.send
	assert.False(t, open)

	// Unknown IDs are ignored.
	h.Unregister("conn-1")
}

func TestEmitSelf(t *testing.T) {
	h := testHub()
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	h.Register(a)
	h.Register(b)

	h.Emit("a", Self(), Event{Name: "hello"})

	ev, ok := recv(t, a)
	require.True(t, ok)
	assert.Equal(t, "hello", ev.Name)
	_, ok = recv(t, b)
	assert.False(t, ok)
}

func TestEmitPeer(t *testing.T) {
	h := testHub()
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	h.Register(a)
	h.Register(b)

	h.Emit("a", Peer("b"), Event{Name: "ping"})

	_, ok := recv(t, a)
	assert.False(t, ok)
	ev, ok := recv(t, b)
	require.True(t, ok)
	assert.Equal(t, "ping", ev.Name)

	// Missing peer: silently nothing.
	h.Emit("a", Peer("ghost"), Event{Name: "ping"})
}

func TestEmitRoomAudiences(t *testing.T) {
	h := testHub()
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	c := NewClient("c", 4)
	h.Register(a)
	h.Register(b)
	h.Register(c)
	h.Subscribe("a", "room-1")
	h.Subscribe("b", "room-1")

	h.Emit("a", RoomOthers("room-1"), Event{Name: "moved"})
	assert.Len(t, drain(a), 0)
	assert.Len(t, drain(b), 1)
	assert.Len(t, drain(c), 0)

	h.Emit("a", RoomAll("room-1"), Event{Name: "roster"})
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Len(t, drain(c), 0)
}

func TestEmitAllOthers(t *testing.T) {
	h := testHub()
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	c := NewClient("c", 4)
	h.Register(a)
	h.Register(b)
	h.Register(c)

	h.Emit("a", AllOthers(), Event{Name: "hello"})
	assert.Len(t, drain(a), 0)
	assert.Len(t, drain(b), 1)
	assert.Len(t, drain(c), 1)
}

func TestEmitDropsOnFullBuffer(t *testing.T) {
	h := testHub()
	a := NewClient("a", 1)
	h.Register(a)

	h.Emit("", Peer("a"), Event{Name: "first"})
	h.Emit("", Peer("a"), Event{Name: "second"})

	events := drain(a)
	require.Len(t, events, 1)
	assert.Equal(t, "first", events[0].Name)
}

func TestUnsubscribeStopsRoomDelivery(t *testing.T) {
	h := testHub()
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	h.Register(a)
	h.Register(b)
	h.Subscribe("a", "room-1")
	h.Subscribe("b", "room-1")

	h.Unsubscribe("b", "room-1")
	h.Emit("a", RoomOthers("room-1"), Event{Name: "moved"})
	assert.Len(t, drain(b), 0)
	assert.Equal(t, 1, h.RoomSize("room-1"))
}

func TestUnregisterLeavesRooms(t *testing.T) {
	h := testHub()
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	h.Register(a)
	h.Register(b)
	h.Subscribe("a", "room-1")
	h.Subscribe("b", "room-1")

	h.Unregister("a")
	assert.Equal(t, 1, h.RoomSize("room-1"))

	h.Unregister("b")
	assert.Equal(t, 0, h.RoomSize("room-1"))
}

func TestSubscribeUnknownConnection(t *testing.T) {
	h := testHub()
	assert.False(t, h.Subscribe("ghost", "room-1"))
	assert.Equal(t, 0, h.RoomSize("room-1"))
}

func TestShutdownRejectsRegistrations(t *testing.T) {
	h := testHub()
	a := NewClient("a", 4)
	h.Register(a)

	h.Shutdown()
	assert.Equal(t, 0, h.ActiveConnections())

	_, open := <-a.send
	assert.False(t, open)

	assert.False(t, h.Register(NewClient("b", 4)))
}
