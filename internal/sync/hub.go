// Package sync fans glossary events out to TCP and websocket subscribers.
package sync

import (
	"encoding/json"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 2 * time.Second

// Hub tracks subscribers. Writes to a subscriber only happen under mu, so
// a websocket connection never sees concurrent writers.
type Hub struct {
	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]struct{}
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]struct{}),
	}
}

// Add registers a TCP subscriber and greets it.
func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
	h.sendTCP(conn, welcome("tcp", len(h.clients)+len(h.wsClients)))
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// AddWS registers a websocket subscriber and greets it.
func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wsClients[ws] = struct{}{}
	h.sendWS(ws, welcome("websocket", len(h.clients)+len(h.wsClients)))
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON sends v as one JSON line to every subscriber. Subscribers
// that cannot keep up are dropped.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[hub] marshal event: %v", err)
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.sendTCP(c, b)
	}
	for ws := range h.wsClients {
		h.sendWS(ws, b)
	}
}

// sendTCP and sendWS must be called with mu held.
func (h *Hub) sendTCP(c net.Conn, b []byte) {
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.Write(b); err != nil {
		_ = c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) sendWS(ws *websocket.Conn, b []byte) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
		_ = ws.Close()
		delete(h.wsClients, ws)
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

func welcome(transport string, clients int) []byte {
	b, _ := json.Marshal(welcomeEvent{Type: TypeWelcome, Transport: transport, Clients: clients})
	return append(b, '\n')
}
