package ws

import (
	"context"
	"testing"
	"time"

	"github.com/radiorevive/console/internal/event"
	"github.com/radiorevive/console/internal/testutil"
	"github.com/radiorevive/console/pkg/models"
	"github.com/radiorevive/console/pkg/plugin"
	"go.uber.org/zap"
)

func TestHubBroadcastToRegisteredClients(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c1 := &Client{send: make(chan Message, 1), logger: zap.NewNop()}
	c2 := &Client{send: make(chan Message, 1), logger: zap.NewNop()}
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(Message{Type: SnapshotType("devices")})

	for i, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != "devices.snapshot" {
				t.Errorf("client %d got type %q, want devices.snapshot", i, msg.Type)
			}
		default:
			t.Errorf("client %d received no message", i)
		}
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c := &Client{send: make(chan Message, 1), logger: zap.NewNop()}
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	if _, ok := <-c.send; ok {
		t.Error("send channel still open after unregister")
	}

	// Second unregister must not panic (double close guard).
	hub.Unregister(c)
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c := &Client{send: make(chan Message), logger: zap.NewNop()} // unbuffered, nobody reading
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(Message{Type: SnapshotType("groups")})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
}

func TestHandlerRebroadcastsSnapshotOnChange(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	loads := 0
	devices := []models.Device{
		testutil.NewDevice(testutil.WithName("Front Counter")),
		testutil.NewDevice(testutil.WithStatus(models.DeviceStatusPlaying)),
	}
	h := NewHandler(bus, zap.NewNop(), CollectionSource{
		Name:  "devices",
		Topic: "fleet.changed",
		Load: func(_ context.Context) (any, error) {
			loads++
			return devices, nil
		},
	})

	c := &Client{send: make(chan Message, 4), logger: zap.NewNop()}
	h.hub.Register(c)

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "fleet.changed", Source: "fleet"})

	if loads != 1 {
		t.Fatalf("Load called %d times, want 1 (once per event, not per client)", loads)
	}

	select {
	case msg := <-c.send:
		if msg.Type != "devices.snapshot" {
			t.Errorf("type = %q, want devices.snapshot", msg.Type)
		}
	default:
		t.Fatal("no snapshot broadcast after change event")
	}
}

func TestInitialSnapshotErrorScopedToClient(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	h := NewHandler(bus, zap.NewNop(), CollectionSource{
		Name:  "devices",
		Topic: "fleet.changed",
		Load: func(_ context.Context) (any, error) {
			return nil, context.DeadlineExceeded
		},
	})

	joining := &Client{send: make(chan Message, 4), logger: zap.NewNop()}
	existing := &Client{send: make(chan Message, 4), logger: zap.NewNop()}
	h.hub.Register(joining)
	h.hub.Register(existing)

	h.sendInitial(context.Background(), joining)

	select {
	case msg := <-joining.send:
		if msg.Type != MessageError {
			t.Errorf("joining client got type = %q, want error", msg.Type)
		}
	default:
		t.Fatal("joining client received nothing after failed initial load")
	}

	// The failure belongs to the connection attempt; clients that already
	// hold a snapshot must not be disturbed.
	select {
	case msg := <-existing.send:
		t.Errorf("existing client received %q during another client's initial load", msg.Type)
	default:
	}
}

func TestHandlerBroadcastsErrorOnLoadFailure(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	h := NewHandler(bus, zap.NewNop(), CollectionSource{
		Name:  "devices",
		Topic: "fleet.changed",
		Load: func(_ context.Context) (any, error) {
			return nil, context.DeadlineExceeded
		},
	})

	c := &Client{send: make(chan Message, 4), logger: zap.NewNop()}
	h.hub.Register(c)

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "fleet.changed", Source: "fleet"})

	select {
	case msg := <-c.send:
		if msg.Type != MessageError {
			t.Errorf("type = %q, want error", msg.Type)
		}
	default:
		t.Fatal("no error message broadcast after load failure")
	}
}
