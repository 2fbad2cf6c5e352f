package storage

import (
	"time"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/value"
)

// NotifyFlags describes why a NotifyEntry callback fired, and whether the
// change originated locally. Combinable bitwise, matching ntcore's
// NT_NOTIFY_* constants.
type NotifyFlags uint32

const (
	NotifyNew       NotifyFlags = 1 << 0
	NotifyDelete    NotifyFlags = 1 << 1
	NotifyUpdate    NotifyFlags = 1 << 2
	NotifyFlagsBit  NotifyFlags = 1 << 3
	NotifyImmediate NotifyFlags = 1 << 7
	NotifyLocal     NotifyFlags = 1 << 8
)

// Dispatcher is the injected outbound-message sink. Storage holds a
// non-owning reference, set by SetDispatcher/cleared by ClearDispatcher, and
// always releases its mutex before calling into it (see package doc).
type Dispatcher interface {
	// QueueOutgoing enqueues msg for delivery. If to is non-nil, msg is sent
	// only to that connection. If except is non-nil, msg is sent to every
	// connection except it. Both nil means "broadcast to all".
	QueueOutgoing(msg *message.Message, to NetworkConnection, except NetworkConnection)
}

// EntryNotification is one delivered change, either pushed to a callback
// listener or queued for a polled one.
type EntryNotification struct {
	LocalID uint32
	Name    string
	Value   *value.Value
	Flags   NotifyFlags
}

// ListenerHandle identifies one registered listener or poller.
type ListenerHandle uint32

// Notifier is the injected local pub/sub sink and listener registry.
// Storage calls NotifyEntry while holding its mutex; the implementation
// must not block or call back into Storage. AddListener/AddPolledListener/
// RemoveListener/Poll are forwarded verbatim from Storage's own exported
// API (see ntcore's IEntryNotifier, which plays the identical dual role).
type Notifier interface {
	NotifyEntry(localID uint32, name string, v *value.Value, flags NotifyFlags)
	AddListener(prefix string, mask NotifyFlags, cb func(EntryNotification)) ListenerHandle
	AddPolledListener(prefix string, mask NotifyFlags) ListenerHandle
	RemoveListener(h ListenerHandle)
	Poll(h ListenerHandle) ([]EntryNotification, bool)
}

// ConnectionInfo is a point-in-time snapshot of a peer connection, built
// while the connection is known to be alive (or a zero value if it has
// already died by the time it's needed).
type ConnectionInfo struct {
	RemoteID        string
	RemoteIP        string
	RemotePort      int
	LastUpdate      time.Time
	ProtocolVersion uint16
}

// RPCServer is the injected remote-procedure-call executor.
type RPCServer interface {
	// ProcessRpc invokes the handler registered for rpcUID (or queues it for
	// out-of-band execution) and calls sendResponse with the encoded result
	// once available. sendResponse may be called from another goroutine.
	ProcessRpc(localID uint32, callUID uint16, name string, params string, conn ConnectionInfo, sendResponse func(result string), rpcUID uint32)
	RemoveRpc(rpcUID uint32)
}

// NetworkConnection is the injected per-peer connection handle. Storage
// never constructs one; it's handed connections by the dispatcher layer
// (see ProcessIncoming, GetInitialAssignments, ApplyInitialAssignments).
type NetworkConnection interface {
	ProtoRev() uint16
	SetState(state ConnectionState)
	Info() ConnectionInfo
	QueueOutgoing(msg *message.Message)
	// Alive reports whether the underlying transport is still connected.
	// Storage uses this to emulate ntcore's weak_ptr<INetworkConnection>
	// upgrade-or-drop semantics around RPC responses.
	Alive() bool
}

// ConnectionState mirrors INetworkConnection::State.
type ConnectionState int

const (
	StateCreated ConnectionState = iota
	StateInit
	StateHandshake
	StateSynchronized
	StateActive
)

// DataLog is the injected, borrowed append-only sink a data-logging
// subsystem registers via Storage.StartDataLog. Storage keeps a
// non-owning reference and must stop writing to it once StopDataLog(uid)
// runs, but never destroys it.
type DataLog interface {
	Start(name string, typ string, metadata string, timestamp uint64) int
	Finish(entryID int, timestamp uint64)
	AppendBoolean(entryID int, v bool, timestamp uint64)
	AppendDouble(entryID int, v float64, timestamp uint64)
	AppendString(entryID int, v string, timestamp uint64)
	AppendRaw(entryID int, v []byte, timestamp uint64)
	AppendBooleanArray(entryID int, v []bool, timestamp uint64)
	AppendDoubleArray(entryID int, v []float64, timestamp uint64)
	AppendStringArray(entryID int, v []string, timestamp uint64)
}
