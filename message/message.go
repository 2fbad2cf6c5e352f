// Package message defines Message, the logical protocol record exchanged
// between NetworkTables peers. This package intentionally says nothing
// about wire byte encoding; that's the job of an external WireEncoder/
// WireDecoder (see nettransport for a concrete JSON-over-websocket stand-in).
package message

import "github.com/hollowcore/nettable/value"

// Kind identifies which of the eight-plus protocol messages a Message
// carries. Numeric values match ntcore's Message::MsgType for grounding
// purposes only; nothing in this module depends on the numbering.
type Kind int

const (
	KeepAlive Kind = iota
	ClientHello
	ProtoUnsup
	ServerHelloDone
	ServerHello
	ClientHelloDone
	EntryAssign
	EntryUpdate
	FlagsUpdate
	EntryDelete
	ClearEntries
	ExecuteRPC
	RPCResponse
)

func (k Kind) String() string {
	switch k {
	case KeepAlive:
		return "KeepAlive"
	case ClientHello:
		return "ClientHello"
	case ProtoUnsup:
		return "ProtoUnsup"
	case ServerHelloDone:
		return "ServerHelloDone"
	case ServerHello:
		return "ServerHello"
	case ClientHelloDone:
		return "ClientHelloDone"
	case EntryAssign:
		return "EntryAssign"
	case EntryUpdate:
		return "EntryUpdate"
	case FlagsUpdate:
		return "FlagsUpdate"
	case EntryDelete:
		return "EntryDelete"
	case ClearEntries:
		return "ClearEntries"
	case ExecuteRPC:
		return "ExecuteRPC"
	case RPCResponse:
		return "RPCResponse"
	default:
		return "Unknown"
	}
}

// UnassignedID is the sentinel network id meaning "no id assigned yet".
const UnassignedID = 0xFFFF

// Message is an immutable logical protocol record. Which fields are
// meaningful depends on Kind; callers are expected to know the shape for
// the kind they're handling, matching ntcore's Message accessor contract.
type Message struct {
	Kind Kind

	// Name is used by EntryAssign (entry name) and ClientHello/ServerHello
	// (self id string).
	Name string

	// ID is the network id, used by EntryAssign, EntryUpdate, FlagsUpdate,
	// EntryDelete, ExecuteRPC, RPCResponse.
	ID uint16

	// SeqNum carries the sequence number for EntryAssign/EntryUpdate, and
	// doubles as the RPC call uid for ExecuteRPC/RPCResponse (see
	// SPEC_FULL.md §9's note on collapsing the dual seq/call-uid path).
	SeqNum uint16

	// Value carries the entry payload for EntryAssign/EntryUpdate.
	Value *value.Value

	// Flags carries entry flags for EntryAssign/FlagsUpdate, and the
	// ServerHello flags field.
	Flags uint32

	// Str carries ExecuteRPC params / RPCResponse result payloads (encoded
	// out of band by the RPC layer, opaque to Message itself).
	Str string
}

func newKeepAlive() *Message       { return &Message{Kind: KeepAlive} }
func newProtoUnsup() *Message      { return &Message{Kind: ProtoUnsup} }
func newServerHelloDone() *Message { return &Message{Kind: ServerHelloDone} }
func newClientHelloDone() *Message { return &Message{Kind: ClientHelloDone} }
func newClearEntries() *Message    { return &Message{Kind: ClearEntries} }

// KeepAliveMsg returns a message carrying no data.
func KeepAliveMsg() *Message { return newKeepAlive() }

// ProtoUnsupMsg returns a message carrying no data.
func ProtoUnsupMsg() *Message { return newProtoUnsup() }

// ServerHelloDoneMsg returns a message carrying no data.
func ServerHelloDoneMsg() *Message { return newServerHelloDone() }

// ClientHelloDoneMsg returns a message carrying no data.
func ClientHelloDoneMsg() *Message { return newClientHelloDone() }

// ClearEntriesMsg returns a message carrying no data.
func ClearEntriesMsg() *Message { return newClearEntries() }

// ClientHelloMsg identifies the connecting client.
func ClientHelloMsg(selfID string) *Message {
	return &Message{Kind: ClientHello, Name: selfID}
}

// ServerHelloMsg identifies the accepting server.
func ServerHelloMsg(flags uint32, selfID string) *Message {
	return &Message{Kind: ServerHello, Flags: flags, Name: selfID}
}

// EntryAssignMsg carries a full (name, id, seq, value, flags) assignment.
func EntryAssignMsg(name string, id uint16, seq uint16, v *value.Value, flags uint32) *Message {
	return &Message{Kind: EntryAssign, Name: name, ID: id, SeqNum: seq, Value: v, Flags: flags}
}

// EntryUpdateMsg carries a value update for an already-assigned id.
func EntryUpdateMsg(id uint16, seq uint16, v *value.Value) *Message {
	return &Message{Kind: EntryUpdate, ID: id, SeqNum: seq, Value: v}
}

// FlagsUpdateMsg carries a flags-only update for an already-assigned id.
func FlagsUpdateMsg(id uint16, flags uint32) *Message {
	return &Message{Kind: FlagsUpdate, ID: id, Flags: flags}
}

// EntryDeleteMsg deletes the entry with the given id.
func EntryDeleteMsg(id uint16) *Message {
	return &Message{Kind: EntryDelete, ID: id}
}

// ExecuteRPCMsg invokes the RPC entry with the given id, tagging the call
// with callUID so the response can be matched up.
func ExecuteRPCMsg(id uint16, callUID uint16, params string) *Message {
	return &Message{Kind: ExecuteRPC, ID: id, SeqNum: callUID, Str: params}
}

// RPCResponseMsg answers a previous ExecuteRPCMsg.
func RPCResponseMsg(id uint16, callUID uint16, result string) *Message {
	return &Message{Kind: RPCResponse, ID: id, SeqNum: callUID, Str: result}
}
