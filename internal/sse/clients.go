// Package sse provides Server-Sent Events client management for pushing queue
// changes to reviewer pages.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

type Message struct {
	Event string
	Data  string
}

// WriteTo writes m in text/event-stream framing.
func (m Message) WriteTo(w io.Writer) (int64, error) {
	var n int
	var err error
	if m.Event != "" {
		n, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.Event, m.Data)
	} else {
		n, err = fmt.Fprintf(w, "data: %s\n\n", m.Data)
	}
	return int64(n), err
}

type Client struct {
	Msg chan Message
}

func NewClient(buffer int) *Client {
	return &Client{Msg: make(chan Message, buffer)}
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast delivers msg to every client that has room for it. Slow clients
// miss messages instead of blocking the sender.
func (s *SSEClients) Broadcast(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		select {
		case client.Msg <- msg:
		default:
		}
	}
}

// BroadcastJSON marshals v as the data of an event named event.
func (s *SSEClients) BroadcastJSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Broadcast(Message{Event: event, Data: string(data)})
	return nil
}
