package nettransport

import (
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/storage"
)

// Client is a storage.Dispatcher backed by a single outgoing websocket
// connection, the client-role counterpart to Hub. It speaks the same
// ClientHello/ServerHello*/ClientHelloDone handshake ntcore's
// NetworkConnection performs before a table is considered synchronized.
type Client struct {
	engine *storage.Storage
	log    *slog.Logger
	conn   *Conn
}

// Dial connects to a nettabled server at url (e.g. "ws://host:1735/nt"),
// performs the hello handshake, and starts the client's read/write loops.
// The caller installs the returned Client via engine.SetDispatcher. The
// read loop starts before Dial returns, so messages arriving before that
// call are applied under whatever role engine had at the time.
func Dial(url string, engine *storage.Storage, selfID string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("nettransport: dial %s: %w", url, err)
	}
	c := newConn(ws, protoRevisionCurrent)
	cl := &Client{engine: engine, log: log, conn: c}

	go c.writeLoop()
	go cl.readLoop()

	c.QueueOutgoing(message.ClientHelloMsg(selfID))
	c.QueueOutgoing(message.ClientHelloDoneMsg())
	return cl, nil
}

// QueueOutgoing implements storage.Dispatcher. A client has exactly one
// peer, so to is ignored; a message whose except is this client's own
// connection is dropped.
func (cl *Client) QueueOutgoing(msg *message.Message, to, except storage.NetworkConnection) {
	if except == cl.conn {
		return
	}
	cl.conn.QueueOutgoing(msg)
}

// Close tears down the connection.
func (cl *Client) Close() {
	cl.conn.close()
}

// readLoop buffers the initial EntryAssign burst between ServerHello and
// ServerHelloDone and applies it in one batch via ApplyInitialAssignments,
// then hands every later message to ProcessIncoming directly, matching
// ntcore's one-time synchronization step versus steady-state delivery.
func (cl *Client) readLoop() {
	var syncing bool
	var initial []*message.Message

	for {
		_, buf, err := cl.conn.ws.ReadMessage()
		if err != nil {
			cl.conn.close()
			return
		}
		cl.conn.touch()
		msg, err := decodeMessage(buf)
		if err != nil {
			cl.log.Debug("dropping malformed message", "err", err)
			continue
		}

		switch msg.Kind {
		case message.ServerHello:
			syncing = true
			initial = nil
			continue
		case message.ServerHelloDone:
			cl.engine.ApplyInitialAssignments(cl.conn, initial)
			syncing = false
			initial = nil
			continue
		}

		if syncing && msg.Kind == message.EntryAssign {
			initial = append(initial, msg)
			continue
		}
		cl.engine.ProcessIncoming(msg, cl.conn)
	}
}
