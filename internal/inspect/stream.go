package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// sendBuffer is the number of snapshots queued per client before the client
// is considered too slow and dropped.
const sendBuffer = 16

// stream fans store snapshots out to WebSocket clients.
type stream struct {
	clients  map[*websocket.Conn]chan []byte
	mu       sync.Mutex
	upgrader websocket.Upgrader
	snapshot func() any
	logger   *slog.Logger
}

func newStream(snapshot func() any, logger *slog.Logger) *stream {
	return &stream{
		clients: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local inspection tool
			},
		},
		snapshot: snapshot,
		logger:   logger,
	}
}

// handle upgrades the connection, sends the current snapshot, then one
// snapshot per store change until the client goes away.
func (s *stream) handle(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Debug("inspect: websocket upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, sendBuffer)

	s.mu.Lock()
	if data, err := s.encode(); err == nil {
		send <- data
	}
	s.clients[conn] = send
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.remove(conn)
	<-done
	conn.Close()
}

// publish encodes the current snapshot and queues it for every client.
// Encoding under the lock keeps each client's messages in publish order.
func (s *stream) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return
	}
	data, err := s.encode()
	if err != nil {
		s.logger.Error("inspect: encode snapshot", "error", err)
		return
	}

	for conn, send := range s.clients {
		select {
		case send <- data:
		default:
			s.logger.Warn("inspect: dropping slow client", "remote", conn.RemoteAddr().String())
			delete(s.clients, conn)
			close(send)
			conn.Close()
		}
	}
}

func (s *stream) encode() ([]byte, error) {
	return json.Marshal(s.snapshot())
}

func (s *stream) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if send, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(send)
	}
}

// clientCount returns the number of connected clients.
func (s *stream) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// close closes all client connections.
func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn, send := range s.clients {
		delete(s.clients, conn)
		close(send)
		conn.Close()
	}
}
