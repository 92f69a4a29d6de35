// internal/app/core/registry/registry_test.go
package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeConn struct {
	id   string
	mu   sync.Mutex
	got  []Message
	fail bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.got = append(f.got, msg)
	return nil
}

func (f *fakeConn) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.got))
	copy(out, f.got)
	return out
}

func TestSendToRecipientReachesAllConnections(t *testing.T) {
	r := New(zap.NewNop())
	phone := &fakeConn{id: "c1"}
	tablet := &fakeConn{id: "c2"}
	r.Connect("guardian-1", phone)
	r.Connect("guardian-1", tablet)
	r.Connect("guardian-2", &fakeConn{id: "c3"})

	n := r.SendToRecipient(context.Background(), "guardian-1", Message{Type: "student_status"})
	if n != 2 {
		t.Fatalf("sent to %d connections, want 2", n)
	}
	if len(phone.messages()) != 1 || len(tablet.messages()) != 1 {
		t.Fatalf("both guardian-1 connections should receive the message")
	}
}

func TestSendToOfflineRecipientIsZero(t *testing.T) {
	r := New(zap.NewNop())
	if n := r.SendToRecipient(context.Background(), "nobody", Message{Type: "x"}); n != 0 {
		t.Fatalf("got %d, want 0", n)
	}
}

func TestRoomBroadcast(t *testing.T) {
	r := New(zap.NewNop())
	in := &fakeConn{id: "c1"}
	out := &fakeConn{id: "c2"}
	r.Connect("g1", in)
	r.Connect("g2", out)
	r.Join("c1", "room-a")

	n := r.BroadcastToRoom(context.Background(), "room-a", Message{Type: "eta"})
	if n != 1 {
		t.Fatalf("sent to %d connections, want 1", n)
	}
	msgs := in.messages()
	if len(msgs) != 1 || msgs[0].Room != "room-a" {
		t.Fatalf("room member got %+v", msgs)
	}
	if len(out.messages()) != 0 {
		t.Fatalf("non-member should not receive room broadcasts")
	}
}

func TestLeaveStopsRoomDelivery(t *testing.T) {
	r := New(zap.NewNop())
	c := &fakeConn{id: "c1"}
	r.Connect("g1", c)
	r.Join("c1", "room-a")
	r.Leave("c1", "room-a")

	if n := r.BroadcastToRoom(context.Background(), "room-a", Message{Type: "eta"}); n != 0 {
		t.Fatalf("got %d deliveries after leave, want 0", n)
	}
}

func TestFailedSendDropsConnection(t *testing.T) {
	r := New(zap.NewNop())
	bad := &fakeConn{id: "c1", fail: true}
	r.Connect("g1", bad)

	if n := r.SendToRecipient(context.Background(), "g1", Message{Type: "x"}); n != 0 {
		t.Fatalf("failed send counted as delivered")
	}
	if r.RecipientOnline("g1") {
		t.Fatalf("connection should be dropped after a failed send")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r := New(zap.NewNop())
	r.Connect("g1", &fakeConn{id: "c1"})
	r.Disconnect("c1")
	r.Disconnect("c1")
	if r.RecipientOnline("g1") {
		t.Fatalf("recipient still online after disconnect")
	}
}

func TestConcurrentConnectBroadcast(t *testing.T) {
	r := New(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			c := &fakeConn{id: id}
			r.Connect("g", c)
			r.Join(id, "room")
		}()
		go func() {
			defer wg.Done()
			r.BroadcastToRoom(context.Background(), "room", Message{Type: "tick"})
		}()
	}
	wg.Wait()
}
