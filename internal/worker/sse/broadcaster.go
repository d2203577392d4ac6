// Package sse provides Server-Sent Events broadcasting for vibe-replay.
// The worker pushes analysis lifecycle notifications to any connected
// dashboards or CLIs watching a session.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// WriteTimeout bounds writes to SSE clients so a stale connection
// cannot block a broadcast.
const WriteTimeout = 2 * time.Second

// Event is one notification pushed to clients.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Project   string `json:"project,omitempty"`
}

// Event types the worker emits.
const (
	EventConnected   = "connected"
	EventRecorded    = "event_recorded"
	EventReplayReady = "replay_ready"
)

// Client represents a connected SSE client.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
}

// Broadcaster manages SSE client connections and message broadcasting.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*Client)}
}

// AddClient registers a new SSE client connection.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	client := &Client{
		ID:      fmt.Sprintf("client-%d", b.nextID),
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[client.ID] = client
	total := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", total).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient drops a client connection.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	if _, exists := b.clients[client.ID]; exists {
		delete(b.clients, client.ID)
		select {
		case <-client.Done:
		default:
			close(client.Done)
		}
	}
	total := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", total).
		Msg("SSE client disconnected")
}

// Broadcast pushes an event to all connected clients. Writes run
// concurrently with a timeout; clients that fail or stall are dropped.
func (b *Broadcaster) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}
	message := fmt.Sprintf("data: %s\n\n", data)

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	dead := make(chan *Client, len(clients))
	var wg sync.WaitGroup
	for _, client := range clients {
		select {
		case <-client.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			b.writeToClient(c, message, dead)
		}(client)
	}
	wg.Wait()
	close(dead)

	for client := range dead {
		b.RemoveClient(client)
	}
}

// writeToClient writes one message with a timeout guard.
func (b *Broadcaster) writeToClient(client *Client, message string, dead chan<- *Client) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := client.Writer.Write([]byte(message)); err != nil {
			log.Debug().
				Str("clientId", client.ID).
				Err(err).
				Msg("Failed to write to SSE client, marking for removal")
			dead <- client
			return
		}
		client.Flusher.Flush()
	}()

	select {
	case <-done:
	case <-time.After(WriteTimeout):
		log.Warn().
			Str("clientId", client.ID).
			Msg("SSE write timed out, marking client for removal")
		dead <- client
	case <-client.Done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE serves one SSE connection until the client disconnects.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	b.sendTo(client, Event{Type: EventConnected})

	<-r.Context().Done()
}

func (b *Broadcaster) sendTo(client *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(client.Writer, "data: %s\n\n", data)
	client.Flusher.Flush()
}
