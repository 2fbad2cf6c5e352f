// Package nettransport is a concrete Dispatcher/NetworkConnection pair
// built on gorilla/websocket: one hub per server process, one goroutine
// pair (reader, writer) per peer connection, JSON-encoded logical
// messages. It plays the role ntcore's TCP NetworkConnection/Dispatcher
// classes play, grounded on the teacher's own websocket hub.
package nettransport

import (
	"encoding/json"
	"fmt"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/value"
)

// wireValue is the JSON-over-the-wire shape of a value.Value. Only the
// field matching Type is populated.
type wireValue struct {
	Type      string    `json:"type"`
	Bool      bool      `json:"bool,omitempty"`
	Double    float64   `json:"double,omitempty"`
	Str       string    `json:"str,omitempty"`
	Raw       []byte    `json:"raw,omitempty"`
	BoolArr   []bool    `json:"boolArr,omitempty"`
	DoubleArr []float64 `json:"doubleArr,omitempty"`
	StrArr    []string  `json:"strArr,omitempty"`
	Time      uint64    `json:"time"`
}

func encodeValue(v *value.Value) *wireValue {
	if v == nil {
		return nil
	}
	w := &wireValue{Time: v.Time()}
	switch v.Type() {
	case value.Boolean:
		w.Type = "boolean"
		w.Bool = v.GetBoolean()
	case value.Double:
		w.Type = "double"
		w.Double = v.GetDouble()
	case value.String:
		w.Type = "string"
		w.Str = v.GetString()
	case value.Raw:
		w.Type = "raw"
		w.Raw = v.GetRaw()
	case value.BooleanArray:
		w.Type = "booleanArray"
		w.BoolArr = v.GetBooleanArray()
	case value.DoubleArray:
		w.Type = "doubleArray"
		w.DoubleArr = v.GetDoubleArray()
	case value.StringArray:
		w.Type = "stringArray"
		w.StrArr = v.GetStringArray()
	case value.RPC:
		w.Type = "rpc"
		w.Raw = v.GetRPC()
	default:
		return nil
	}
	return w
}

func decodeValue(w *wireValue) (*value.Value, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Type {
	case "boolean":
		return value.NewBoolean(w.Bool, w.Time), nil
	case "double":
		return value.NewDouble(w.Double, w.Time), nil
	case "string":
		return value.NewString(w.Str, w.Time), nil
	case "raw":
		return value.NewRaw(w.Raw, w.Time), nil
	case "booleanArray":
		return value.NewBooleanArray(w.BoolArr, w.Time), nil
	case "doubleArray":
		return value.NewDoubleArray(w.DoubleArr, w.Time), nil
	case "stringArray":
		return value.NewStringArray(w.StrArr, w.Time), nil
	case "rpc":
		return value.NewRPCDef(w.Raw, w.Time), nil
	default:
		return nil, fmt.Errorf("nettransport: unknown value type %q", w.Type)
	}
}

// wireMessage is the JSON-over-the-wire shape of a message.Message.
type wireMessage struct {
	Kind   string     `json:"kind"`
	Name   string     `json:"name,omitempty"`
	ID     uint16     `json:"id,omitempty"`
	SeqNum uint16     `json:"seqNum,omitempty"`
	Value  *wireValue `json:"value,omitempty"`
	Flags  uint32     `json:"flags,omitempty"`
	Str    string     `json:"str,omitempty"`
}

var kindNames = map[message.Kind]string{
	message.KeepAlive:       "keepAlive",
	message.ClientHello:     "clientHello",
	message.ProtoUnsup:      "protoUnsup",
	message.ServerHelloDone: "serverHelloDone",
	message.ServerHello:     "serverHello",
	message.ClientHelloDone: "clientHelloDone",
	message.EntryAssign:     "entryAssign",
	message.EntryUpdate:     "entryUpdate",
	message.FlagsUpdate:     "flagsUpdate",
	message.EntryDelete:     "entryDelete",
	message.ClearEntries:    "clearEntries",
	message.ExecuteRPC:      "executeRpc",
	message.RPCResponse:     "rpcResponse",
}

var namesToKind = func() map[string]message.Kind {
	m := make(map[string]message.Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func encodeMessage(m *message.Message) ([]byte, error) {
	name, ok := kindNames[m.Kind]
	if !ok {
		return nil, fmt.Errorf("nettransport: unknown message kind %v", m.Kind)
	}
	w := wireMessage{
		Kind:   name,
		Name:   m.Name,
		ID:     m.ID,
		SeqNum: m.SeqNum,
		Value:  encodeValue(m.Value),
		Flags:  m.Flags,
		Str:    m.Str,
	}
	return json.Marshal(&w)
}

func decodeMessage(buf []byte) (*message.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(buf, &w); err != nil {
		return nil, err
	}
	kind, ok := namesToKind[w.Kind]
	if !ok {
		return nil, fmt.Errorf("nettransport: unknown message kind %q", w.Kind)
	}
	v, err := decodeValue(w.Value)
	if err != nil {
		return nil, err
	}
	return &message.Message{
		Kind:   kind,
		Name:   w.Name,
		ID:     w.ID,
		SeqNum: w.SeqNum,
		Value:  v,
		Flags:  w.Flags,
		Str:    w.Str,
	}, nil
}
