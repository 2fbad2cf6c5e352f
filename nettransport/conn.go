package nettransport

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/storage"
)

// Conn wraps one peer's websocket connection and implements
// storage.NetworkConnection. Writes are serialized through a single
// goroutine draining outbox, matching the teacher's one-writer-per-stream
// discipline around gorilla's no-concurrent-writes rule.
type Conn struct {
	ID uuid.UUID

	ws *websocket.Conn

	mu         sync.Mutex
	state      storage.ConnectionState
	protoRev   uint16
	lastUpdate time.Time
	alive      bool

	outbox chan *message.Message
	done   chan struct{}
}

func newConn(ws *websocket.Conn, protoRev uint16) *Conn {
	return &Conn{
		ID:         uuid.New(),
		ws:         ws,
		protoRev:   protoRev,
		lastUpdate: time.Now(),
		alive:      true,
		outbox:     make(chan *message.Message, 256),
		done:       make(chan struct{}),
	}
}

// ProtoRev implements storage.NetworkConnection.
func (c *Conn) ProtoRev() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protoRev
}

// SetState implements storage.NetworkConnection.
func (c *Conn) SetState(state storage.ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Info implements storage.NetworkConnection.
func (c *Conn) Info() storage.ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := storage.ConnectionInfo{
		RemoteID:        c.ID.String(),
		LastUpdate:      c.lastUpdate,
		ProtocolVersion: c.protoRev,
	}
	if addr, ok := c.ws.RemoteAddr().(*net.TCPAddr); ok {
		info.RemoteIP = addr.IP.String()
		info.RemotePort = addr.Port
	}
	return info
}

// QueueOutgoing implements storage.NetworkConnection. Drops the message if
// the connection has already closed or the outbox is saturated, rather
// than blocking the caller (which may be holding Storage's mutex).
func (c *Conn) QueueOutgoing(msg *message.Message) {
	select {
	case c.outbox <- msg:
	case <-c.done:
	default:
	}
}

// Alive implements storage.NetworkConnection.
func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastUpdate = time.Now()
	c.mu.Unlock()
}

func (c *Conn) close() {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.alive = false
	c.mu.Unlock()
	close(c.done)
	c.ws.Close()
}

// writeLoop drains outbox onto the websocket until the connection closes.
// Exactly one goroutine must run this per Conn.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbox:
			buf, err := encodeMessage(msg)
			if err != nil {
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, buf); err != nil {
				c.close()
				return
			}
		}
	}
}
