// Package control serves live measurement progress to observers: a JSON
// snapshot endpoint and a websocket feed that streams stage transitions,
// progress updates and the final report.
package control

import (
	"encoding/json"
	"sync"
)

// Hub fans broadcast messages out to connected websocket clients. Slow
// clients drop messages rather than stalling the measurement.
type Hub struct {
	mu        sync.Mutex
	clients   map[*client]struct{}
	broadcast chan any
	done      <-chan struct{}
}

type client struct {
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func NewHub(done <-chan struct{}) *Hub {
	h := &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan any, 128),
		done:      done,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				c.close()
			}
			h.clients = make(map[*client]struct{})
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast queues a message for all clients, dropping it when the queue is
// full.
func (h *Hub) Broadcast(msg any) {
	select {
	case h.broadcast <- msg:
	default:
	}
}
