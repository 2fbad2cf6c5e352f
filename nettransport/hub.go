package nettransport

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/storage"
)

// ConnectionEvent is delivered to a registered connection listener when a
// peer connects or disconnects. Connection-listener notifications are not
// part of ntcore's Storage itself, but every binding built on it exposes
// them; Hub is where that lives in this module.
type ConnectionEvent struct {
	Conn      *Conn
	Connected bool
}

// Hub is a storage.Dispatcher backed by a set of live websocket
// connections, grounded on the teacher's own hub: one HTTP upgrade
// handler, one reader goroutine and one writer goroutine per peer.
type Hub struct {
	engine *storage.Storage
	server bool
	selfID string
	log    *slog.Logger

	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     map[string]*Conn
	listeners []func(ConnectionEvent)
}

// NewHub constructs a Hub that feeds incoming traffic into engine. server
// must match the role engine was configured with via SetDispatcher.
func NewHub(engine *storage.Storage, server bool, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		engine: engine,
		server: server,
		selfID: "nettabled",
		log:    log,
		conns:  map[string]*Conn{},
	}
}

// AddConnectionListener registers cb to be invoked whenever a peer
// connects or disconnects.
func (h *Hub) AddConnectionListener(cb func(ConnectionEvent)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, cb)
	h.mu.Unlock()
}

func (h *Hub) fireConnectionEvent(ev ConnectionEvent) {
	h.mu.Lock()
	cbs := append([]func(ConnectionEvent){}, h.listeners...)
	h.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

// QueueOutgoing implements storage.Dispatcher, fanning msg out to the
// resolved target set concurrently.
func (h *Hub) QueueOutgoing(msg *message.Message, to, except storage.NetworkConnection) {
	h.mu.Lock()
	all := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		all = append(all, c)
	}
	h.mu.Unlock()

	var targets []*Conn
	if to != nil {
		if c, ok := to.(*Conn); ok {
			targets = []*Conn{c}
		}
	} else {
		exceptID := ""
		if ec, ok := except.(*Conn); ok {
			exceptID = ec.ID.String()
		}
		for _, c := range all {
			if c.ID.String() == exceptID {
				continue
			}
			targets = append(targets, c)
		}
	}

	var wg sync.WaitGroup
	for _, c := range targets {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.QueueOutgoing(msg)
		}()
	}
	wg.Wait()
}

// ServeHTTP upgrades r to a websocket and runs the connection's read loop
// until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := newConn(ws, protoRevisionCurrent)

	h.mu.Lock()
	h.conns[c.ID.String()] = c
	h.mu.Unlock()
	h.fireConnectionEvent(ConnectionEvent{Conn: c, Connected: true})

	go c.writeLoop()
	h.sendHello(c)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.conns, c.ID.String())
	h.mu.Unlock()
	c.close()
	h.fireConnectionEvent(ConnectionEvent{Conn: c, Connected: false})
}

// protoRevisionCurrent is the protocol revision this transport speaks.
const protoRevisionCurrent = 0x0300

// sendHello performs the server side of the handshake: identify ourselves,
// burst the current table as EntryAssigns, then mark the burst complete.
func (h *Hub) sendHello(c *Conn) {
	c.QueueOutgoing(message.ServerHelloMsg(0, h.selfID))
	for _, m := range h.engine.GetInitialAssignments(c) {
		c.QueueOutgoing(m)
	}
	c.QueueOutgoing(message.ServerHelloDoneMsg())
}

func (h *Hub) readLoop(c *Conn) {
	for {
		_, buf, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		msg, err := decodeMessage(buf)
		if err != nil {
			h.log.Debug("dropping malformed message", "err", err)
			continue
		}
		h.engine.ProcessIncoming(msg, c)
	}
}
