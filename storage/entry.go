package storage

import (
	"math"

	"github.com/hollowcore/nettable/seqnum"
	"github.com/hollowcore/nettable/value"
)

// Flags is the per-entry bitfield. Only PERSISTENT is defined by the core;
// higher bits are reserved for future flags the way ntcore's NT_PERSISTENT
// is bit 0 of a wider flags word.
type Flags uint32

const (
	FlagPersistent Flags = 1 << 0
)

// unassignedID is the 0xFFFF sentinel meaning "no network id assigned".
const unassignedID = 0xFFFF

// noLocalID is the UINT_MAX sentinel: GetEntry returns it for an empty
// name, and an entry's rpcUID holds it when the entry is not an RPC.
const noLocalID = math.MaxUint32

// dataLogEntry fans a value-changed notification out to one attached,
// borrowed data-log sink.
type dataLogEntry struct {
	log       DataLog
	entryID   int
	loggerUID uint32
}

// entry is the central per-name record. name is immutable after creation;
// everything else mutates under Storage.mu.
type entry struct {
	name string

	value *value.Value
	flags Flags

	// id is the 16-bit network id, or unassignedID. Assigned by the server
	// on first materialization; learned by the client from an EntryAssign.
	id uint32

	// localID is a dense, process-stable handle that survives deletion.
	localID uint32

	seqNum seqnum.T

	// localWrite records whether this process has ever written this entry's
	// value locally; drives initial-assignment reconciliation on a client.
	localWrite bool

	// RPC bookkeeping. rpcUID identifies the local RpcServer handler if this
	// entry holds an RPC definition; noLocalID means "not an RPC entry".
	rpcUID     uint32
	rpcCallUID uint16

	dataLogs    []dataLogEntry
	dataLogType value.Type
}

func newEntry(name string, localID uint32) *entry {
	return &entry{
		name:        name,
		id:          unassignedID,
		localID:     localID,
		rpcUID:      noLocalID,
		dataLogType: value.Unassigned,
	}
}

func (e *entry) isPersistent() bool {
	return e.flags&FlagPersistent != 0
}

func (e *entry) isAssigned() bool {
	return e.id != unassignedID
}
