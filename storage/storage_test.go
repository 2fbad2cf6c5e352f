package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/value"
)

type fakeDispatcher struct {
	sent []sentMsg
}

type sentMsg struct {
	msg    *message.Message
	to     NetworkConnection
	except NetworkConnection
}

func (d *fakeDispatcher) QueueOutgoing(msg *message.Message, to, except NetworkConnection) {
	d.sent = append(d.sent, sentMsg{msg: msg, to: to, except: except})
}

type fakeNotifier struct {
	events []EntryNotification
}

func (n *fakeNotifier) NotifyEntry(localID uint32, name string, v *value.Value, flags NotifyFlags) {
	n.events = append(n.events, EntryNotification{LocalID: localID, Name: name, Value: v, Flags: flags})
}
func (n *fakeNotifier) AddListener(string, NotifyFlags, func(EntryNotification)) ListenerHandle { return 0 }
func (n *fakeNotifier) AddPolledListener(string, NotifyFlags) ListenerHandle                    { return 0 }
func (n *fakeNotifier) RemoveListener(ListenerHandle)                                           {}
func (n *fakeNotifier) Poll(ListenerHandle) ([]EntryNotification, bool)                          { return nil, false }

type fakeRPCServer struct{}

func (fakeRPCServer) ProcessRpc(uint32, uint16, string, string, ConnectionInfo, func(string), uint32) {
}
func (fakeRPCServer) RemoveRpc(uint32) {}

type fakeConn struct {
	proto uint16
	alive bool
	sent  []*message.Message
}

func (c *fakeConn) ProtoRev() uint16         { return c.proto }
func (c *fakeConn) SetState(ConnectionState) {}
func (c *fakeConn) Info() ConnectionInfo     { return ConnectionInfo{} }
func (c *fakeConn) QueueOutgoing(msg *message.Message) {
	c.sent = append(c.sent, msg)
}
func (c *fakeConn) Alive() bool { return c.alive }

func newTestStorage(server bool) (*Storage, *fakeDispatcher, *fakeNotifier) {
	n := &fakeNotifier{}
	s := New(n, fakeRPCServer{}, nil)
	d := &fakeDispatcher{}
	s.SetDispatcher(d, server)
	return s, d, n
}

func TestServerAssignsID(t *testing.T) {
	s, d, _ := newTestStorage(true)
	s.SetEntryTypeValue("foo", value.NewBoolean(true, 1))
	require.Len(t, d.sent, 1)
	m := d.sent[0].msg
	assert.Equal(t, message.EntryAssign, m.Kind)
	assert.Equal(t, "foo", m.Name)
	assert.EqualValues(t, 0, m.ID)
	assert.EqualValues(t, 1, m.SeqNum)

	got := s.GetEntryValue("foo")
	require.NotNil(t, got)
	assert.True(t, value.Equal(got, value.NewBoolean(true, 0)))
}

func TestClientDeferredID(t *testing.T) {
	s, d, _ := newTestStorage(false)
	s.SetEntryTypeValue("foo", value.NewBoolean(true, 1))
	require.Len(t, d.sent, 1)
	m := d.sent[0].msg
	assert.EqualValues(t, message.UnassignedID, m.ID)
	assert.Empty(t, s.idMap)
}

func TestTypeChangeEmitsAssign(t *testing.T) {
	s, d, _ := newTestStorage(true)
	s.SetEntryTypeValue("foo", value.NewBoolean(true, 1))
	d.sent = nil
	s.SetEntryTypeValue("foo", value.NewDouble(0, 1))
	require.Len(t, d.sent, 1)
	assert.Equal(t, message.EntryAssign, d.sent[0].msg.Kind)
}

func TestSetEntryValueRejectsTypeChange(t *testing.T) {
	s, _, _ := newTestStorage(true)
	s.SetEntryValue("foo", value.NewBoolean(true, 1))
	ok := s.SetEntryValue("foo", value.NewDouble(1, 1))
	assert.False(t, ok)
	got := s.GetEntryValue("foo")
	assert.True(t, got.GetBoolean())
}

func TestStaleUpdateDropped(t *testing.T) {
	s, d, _ := newTestStorage(true)
	s.SetEntryTypeValue("foo", value.NewBoolean(true, 1))
	id := uint16(0)
	d.sent = nil

	conn := &fakeConn{proto: protoRevisionV3, alive: true}
	s.ProcessIncoming(message.EntryUpdateMsg(id, 1, value.NewBoolean(false, 1)), conn)

	assert.Empty(t, d.sent)
	got := s.GetEntryValue("foo")
	assert.True(t, got.GetBoolean())
}

func TestDeleteAllPreservesPersistent(t *testing.T) {
	s, d, _ := newTestStorage(true)
	s.SetEntryTypeValue("a", value.NewDouble(1, 1))
	s.SetEntryTypeValue("b", value.NewDouble(2, 1))
	s.SetEntryFlags("b", FlagPersistent)
	d.sent = nil

	s.DeleteAllEntries()

	assert.Nil(t, s.GetEntryValue("a"))
	require.NotNil(t, s.GetEntryValue("b"))
	assert.Equal(t, 2.0, s.GetEntryValue("b").GetDouble())

	require.Len(t, d.sent, 1)
	assert.Equal(t, message.ClearEntries, d.sent[0].msg.Kind)
}

func TestReconnectReconciliation(t *testing.T) {
	s, d, _ := newTestStorage(false)
	s.SetEntryTypeValue("x", value.NewDouble(1, 1))
	s.SetEntryTypeValue("y", value.NewDouble(2, 1))
	s.SetEntryFlags("y", FlagPersistent)
	d.sent = nil

	conn := &fakeConn{proto: protoRevisionV3, alive: true}
	serverMsgs := []*message.Message{
		message.EntryAssignMsg("y", 0, 1, value.NewDouble(3, 1), uint32(FlagPersistent)),
	}
	s.ApplyInitialAssignments(conn, serverMsgs)

	assert.Equal(t, 3.0, s.GetEntryValue("y").GetDouble())

	var sawXAssign bool
	for _, sm := range d.sent {
		if sm.msg.Kind == message.EntryAssign && sm.msg.Name == "x" {
			sawXAssign = true
		}
	}
	assert.True(t, sawXAssign, "expected x to be re-advertised")
}

func TestHandleStability(t *testing.T) {
	s, _, _ := newTestStorage(true)
	h := s.GetEntry("x")
	s.DeleteEntry("x")
	h2 := s.GetEntry("x")
	assert.Equal(t, h, h2)
}

func TestRpcCallAndResult(t *testing.T) {
	// A client storage learns of a server-defined RPC via EntryAssign,
	// calls it, then receives the matching RpcResponse.
	s, d, _ := newTestStorage(false)
	conn := &fakeConn{proto: protoRevisionV3, alive: true}
	s.ProcessIncoming(message.EntryAssignMsg("rpc/add", 0, 1, value.NewRPCDef([]byte("def"), 1), 0), conn)
	id := s.GetEntry("rpc/add")
	d.sent = nil

	callUID := s.CallRpc(id, "1,2")
	require.Len(t, d.sent, 1)
	assert.Equal(t, message.ExecuteRPC, d.sent[0].msg.Kind)

	done := make(chan struct{})
	var result string
	var ok bool
	go func() {
		result, ok, _ = s.GetRpcResult(id, callUID, time.Second)
		close(done)
	}()

	s.ProcessIncoming(message.RPCResponseMsg(0, callUID, "3"), nil)

	<-done
	assert.True(t, ok)
	assert.Equal(t, "3", result)
}

func TestGetRpcResultTimeout(t *testing.T) {
	s, _, _ := newTestStorage(false)
	id := s.GetEntry("rpc/noop")
	s.CreateRpc(id, value.NewRPCDef([]byte("def"), 1), 1)
	_, ok, timedOut := s.GetRpcResult(id, 999, 20*time.Millisecond)
	assert.False(t, ok)
	assert.True(t, timedOut)
}

func TestCancelRpcResult(t *testing.T) {
	s, _, _ := newTestStorage(false)
	id := s.GetEntry("rpc/cancel")
	s.CreateRpc(id, value.NewRPCDef([]byte("def"), 1), 1)

	done := make(chan struct{})
	var ok bool
	go func() {
		_, ok, _ = s.GetRpcResult(id, 42, -1)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	s.CancelRpcResult(id, 42)
	<-done
	assert.False(t, ok)
}
