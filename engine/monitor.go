package engine

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pconrad/go-mtpd/log"
)

// Monitor broadcasts session and transaction lifecycle events to debug
// clients over a websocket, adapted from the teacher's mtp/server.go
// LVServer broadcaster (streamClients map behind a mutex, JSON text-frame
// writes). Unlike LVServer it carries no MTP traffic of its own: it is a
// side channel for operators watching the responder, entirely separate
// from the protocol-level Event packet channel, which spec.md's
// Non-goals keep an inert stub.
type Monitor struct {
	log      *log.ChildLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewMonitor returns a Monitor with no clients attached yet.
func NewMonitor(logger *log.ChildLogger) *Monitor {
	return &Monitor{
		log:     logger,
		clients: map[*websocket.Conn]bool{},
	}
}

// event is the JSON payload sent to every connected monitor client.
type event struct {
	Kind          string `json:"kind"`
	Time          string `json:"time"`
	SessionID     uint32 `json:"session_id,omitempty"`
	SessionOpen   bool   `json:"session_open,omitempty"`
	Operation     string `json:"operation,omitempty"`
	Response      string `json:"response,omitempty"`
	TransactionID uint32 `json:"transaction_id,omitempty"`
}

// HandleWebSocket upgrades r into a monitor client connection. It never
// reads from the connection beyond detecting its close, mirroring
// LVServer.HandleStream's register/block-on-read/unregister pattern.
func (m *Monitor) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Errorf("failed to upgrade monitor client: %s", err)
		return
	}
	defer ws.Close()

	m.register(ws)
	defer m.unregister(ws)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *Monitor) register(c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c] = true
}

func (m *Monitor) unregister(c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, c)
}

func (m *Monitor) broadcast(ev event) {
	ev.Time = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(ev)
	if err != nil {
		m.log.Errorf("failed to marshal monitor event: %s", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			m.log.Warningf("failed to send monitor event: %s", err)
		}
	}
}

func (m *Monitor) broadcastSession(open bool, sessionID uint32) {
	m.broadcast(event{Kind: "session", SessionOpen: open, SessionID: sessionID})
}

func (m *Monitor) broadcastTransaction(transactionID uint32, op interface{ String() string }, resp interface{ String() string }) {
	m.broadcast(event{
		Kind:          "transaction",
		TransactionID: transactionID,
		Operation:     op.String(),
		Response:      resp.String(),
	})
}
