package sse

import (
	"bytes"
	"testing"
)

func TestBroadcast(t *testing.T) {
	clients := NewSSEClients()
	fast := NewClient(1)
	full := NewClient(0)
	clients.Add(fast)
	clients.Add(full)

	clients.Broadcast(Message{Event: "queue", Data: "reload"})

	select {
	case msg := <-fast.Msg:
		if msg.Data != "reload" {
			t.Errorf("Expected 'reload', got %q", msg.Data)
		}
	default:
		t.Fatal("Expected buffered client to receive the message")
	}

	select {
	case <-full.Msg:
		t.Fatal("Expected unbuffered client without a reader to be skipped")
	default:
	}
}

func TestBroadcastJSON(t *testing.T) {
	clients := NewSSEClients()
	c := NewClient(1)
	clients.Add(c)

	if err := clients.BroadcastJSON("queue", map[string]string{"kind": "removed", "id": "a"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	msg := <-c.Msg
	if msg.Event != "queue" || msg.Data != `{"id":"a","kind":"removed"}` {
		t.Errorf("Unexpected message %+v", msg)
	}
}

func TestDeleteClosesOnce(t *testing.T) {
	clients := NewSSEClients()
	c := NewClient(0)
	clients.Add(c)

	clients.Delete(c)
	clients.Delete(c)

	if clients.Len() != 0 {
		t.Errorf("Expected no clients, got %d", clients.Len())
	}
	if _, ok := <-c.Msg; ok {
		t.Error("Expected channel to be closed")
	}
}

func TestMessageWriteTo(t *testing.T) {
	var buf bytes.Buffer
	if _, err := (Message{Event: "queue", Data: "x"}).WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "event: queue\ndata: x\n\n" {
		t.Errorf("Unexpected framing %q", buf.String())
	}

	buf.Reset()
	_, _ = (Message{Data: "y"}).WriteTo(&buf)
	if buf.String() != "data: y\n\n" {
		t.Errorf("Unexpected framing %q", buf.String())
	}
}
