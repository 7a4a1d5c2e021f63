// Package hub provides connection management for WebSocket clients.
package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrBufferFull is returned when a connection's outbound queue is full.
var ErrBufferFull = errors.New("send buffer full")

// ErrClosed is returned when enqueueing to a connection that has been shut down.
var ErrClosed = errors.New("connection closed")

// sendBufferSize is the capacity of each connection's outbound queue.
const sendBufferSize = 256

// Connection represents a single client connection. Outbound traffic goes
// through the buffered Send queue, drained by a single writer goroutine, so
// every event enqueued for one connection is delivered in enqueue order and
// a slow peer never blocks the sender.
type Connection struct {
	ID   string
	Conn *websocket.Conn // nil for in-process connections in tests
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// Enqueue places data on the connection's outbound queue without blocking.
func (c *Connection) Enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.Send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// EnqueueJSON marshals v and places it on the outbound queue.
func (c *Connection) EnqueueJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Enqueue(data)
}

// Done is closed when the connection has been shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Shutdown releases the connection's outbound queue. Idempotent.
func (c *Connection) Shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// WriteMessage writes a message to the underlying socket with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the underlying socket.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the underlying socket.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// Hub tracks all live connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
	}
}

// NewConnection creates a connection for the given socket. The connection is
// not tracked until Register is called.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Register starts tracking a connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
}

// Unregister stops tracking a connection and releases its outbound queue.
// Safe to call more than once.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	delete(h.connections, conn.ID)
	h.mu.Unlock()
	conn.Shutdown()
}

// Broadcast enqueues data on every live connection's outbound queue.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		// Best effort: a full or closed queue drops the snapshot for
		// that connection only.
		_ = conn.Enqueue(data)
	}
}

// BroadcastJSON marshals v once and broadcasts it to every connection.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Count returns the number of tracked connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
