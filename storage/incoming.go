package storage

import (
	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/seqnum"
	"github.com/hollowcore/nettable/value"
)

// protoRevisionV3 is the protocol revision at which flags started riding
// along on EntryAssign (major.minor packed as major<<8|minor).
const protoRevisionV3 = 0x0300

// ProcessIncoming applies one message received on conn. Hello/keepalive
// kinds are handshake bookkeeping owned by the dispatcher layer and are
// ignored here; every other kind mutates the table under s.mu and may
// produce outbound traffic, which is queued only after s.mu is released.
func (s *Storage) ProcessIncoming(msg *message.Message, conn NetworkConnection) {
	switch msg.Kind {
	case message.EntryAssign:
		s.handleEntryAssign(msg, conn)
	case message.EntryUpdate:
		s.handleEntryUpdate(msg, conn)
	case message.FlagsUpdate:
		s.handleFlagsUpdate(msg, conn)
	case message.EntryDelete:
		s.handleEntryDelete(msg, conn)
	case message.ClearEntries:
		s.handleClearEntries(msg, conn)
	case message.ExecuteRPC:
		s.handleExecuteRPC(msg, conn)
	case message.RPCResponse:
		s.handleRPCResponse(msg, conn)
	default:
		// KeepAlive, ClientHello, ServerHello, ServerHelloDone,
		// ClientHelloDone, ProtoUnsup: handshake bookkeeping, not ours.
	}
}

func (s *Storage) handleEntryAssign(msg *message.Message, conn NetworkConnection) {
	s.mu.Lock()
	out := s.processEntryAssignLocked(msg, conn)
	s.mu.Unlock()
	s.dispatch(out)
}

func (s *Storage) processEntryAssignLocked(msg *message.Message, conn NetworkConnection) []outboundMsg {
	id := msg.ID
	seq := seqnum.T(msg.SeqNum)

	if s.server {
		if id == message.UnassignedID {
			e := s.getOrNew(msg.Name)
			if e.isAssigned() {
				return nil
			}
			e.flags = Flags(msg.Flags)
			return s.setEntryValueImpl(e, msg.Value, seq, false)
		}
		if int(id) >= len(s.idMap) {
			return nil
		}
		e := s.idMap[id]
		if e == nil {
			return nil
		}
		return s.processEntryAssignCommonLocked(e, msg, conn, false)
	}

	// Client role.
	if id == message.UnassignedID {
		return nil
	}
	for int(id) >= len(s.idMap) {
		s.idMap = append(s.idMap, nil)
	}
	e := s.idMap[id]
	if e != nil {
		return s.processEntryAssignCommonLocked(e, msg, conn, false)
	}

	e = s.getOrNew(msg.Name)
	e.id = uint32(id)
	s.idMap[id] = e

	if e.value == nil {
		e.flags = Flags(msg.Flags)
		e.seqNum = seq
		e.value = msg.Value
		s.fanOutDataLog(e, e.value)
		if s.notifier != nil {
			s.notifier.NotifyEntry(e.localID, e.name, e.value, NotifyNew)
		}
		return nil
	}

	// Entry already had a locally-written value awaiting a server id.
	var pending []outboundMsg
	if Flags(msg.Flags) != e.flags {
		pending = append(pending, outboundMsg{msg: message.FlagsUpdateMsg(uint16(e.id), uint32(e.flags))})
	}
	return append(pending, s.processEntryAssignCommonLocked(e, msg, conn, true)...)
}

func (s *Storage) processEntryAssignCommonLocked(e *entry, msg *message.Message, conn NetworkConnection, mayNeedUpdate bool) []outboundMsg {
	seq := seqnum.T(msg.SeqNum)
	if seqnum.Less(seq, e.seqNum) {
		if mayNeedUpdate {
			return []outboundMsg{{msg: message.EntryUpdateMsg(uint16(e.id), uint16(e.seqNum), e.value)}}
		}
		return nil
	}
	if msg.Name != e.name {
		s.log.Warn("dropping EntryAssign with mismatched name", "id", e.id, "want", e.name, "got", msg.Name)
		return nil
	}

	nf := NotifyUpdate
	if !mayNeedUpdate && conn != nil && conn.ProtoRev() >= protoRevisionV3 {
		newFlags := Flags(msg.Flags)
		if newFlags != e.flags {
			if newFlags&FlagPersistent != e.flags&FlagPersistent {
				s.persistentDirty = true
			}
			e.flags = newFlags
			nf |= NotifyFlagsBit
		}
	}
	if e.isPersistent() && !value.Equal(e.value, msg.Value) {
		s.persistentDirty = true
	}
	e.value = msg.Value
	e.seqNum = seq
	s.fanOutDataLog(e, e.value)
	if s.notifier != nil {
		s.notifier.NotifyEntry(e.localID, e.name, e.value, nf)
	}

	if s.server {
		return []outboundMsg{{msg: msg, except: conn}}
	}
	return nil
}

func (s *Storage) handleEntryUpdate(msg *message.Message, conn NetworkConnection) {
	s.mu.Lock()
	id := msg.ID
	if int(id) >= len(s.idMap) {
		s.mu.Unlock()
		return
	}
	e := s.idMap[id]
	if e == nil {
		s.mu.Unlock()
		return
	}
	seq := seqnum.T(msg.SeqNum)
	if seqnum.LessOrEqual(seq, e.seqNum) {
		s.mu.Unlock()
		return
	}
	if e.isPersistent() && !value.Equal(e.value, msg.Value) {
		s.persistentDirty = true
	}
	e.value = msg.Value
	e.seqNum = seq
	s.fanOutDataLog(e, e.value)
	if s.notifier != nil {
		s.notifier.NotifyEntry(e.localID, e.name, e.value, NotifyUpdate)
	}
	var out []outboundMsg
	if s.server {
		out = append(out, outboundMsg{msg: msg, except: conn})
	}
	s.mu.Unlock()
	s.dispatch(out)
}

func (s *Storage) handleFlagsUpdate(msg *message.Message, conn NetworkConnection) {
	s.mu.Lock()
	id := msg.ID
	if int(id) >= len(s.idMap) {
		s.mu.Unlock()
		return
	}
	e := s.idMap[id]
	if e == nil {
		s.mu.Unlock()
		return
	}
	out := s.setEntryFlagsImpl(e, Flags(msg.Flags), false)
	if s.server {
		out = append(out, outboundMsg{msg: msg, except: conn})
	}
	s.mu.Unlock()
	s.dispatch(out)
}

func (s *Storage) handleEntryDelete(msg *message.Message, conn NetworkConnection) {
	s.mu.Lock()
	id := msg.ID
	if int(id) >= len(s.idMap) {
		s.mu.Unlock()
		return
	}
	e := s.idMap[id]
	if e == nil {
		s.mu.Unlock()
		return
	}
	out := s.deleteEntryImpl(e, false, false)
	if s.server {
		out = append(out, outboundMsg{msg: msg, except: conn})
	}
	s.mu.Unlock()
	s.dispatch(out)
}

func (s *Storage) handleClearEntries(msg *message.Message, conn NetworkConnection) {
	s.mu.Lock()
	s.deleteAllEntriesImpl(false, func(e *entry) bool { return e.isPersistent() })
	var out []outboundMsg
	if s.server {
		out = append(out, outboundMsg{msg: msg, except: conn})
	}
	s.mu.Unlock()
	s.dispatch(out)
}

func (s *Storage) handleExecuteRPC(msg *message.Message, conn NetworkConnection) {
	s.mu.Lock()
	if !s.server {
		s.mu.Unlock()
		return
	}
	id := msg.ID
	if int(id) >= len(s.idMap) {
		s.mu.Unlock()
		return
	}
	e := s.idMap[id]
	if e == nil || e.value == nil || !e.value.IsRPC() {
		s.mu.Unlock()
		return
	}
	localID := e.localID
	name := e.name
	rpcUID := e.rpcUID
	callUID := msg.SeqNum

	var info ConnectionInfo
	if conn != nil && conn.Alive() {
		info = conn.Info()
	}
	s.mu.Unlock()

	if s.rpcServer == nil {
		return
	}
	s.rpcServer.ProcessRpc(localID, callUID, name, msg.Str, info, func(result string) {
		if conn != nil && conn.Alive() {
			conn.QueueOutgoing(message.RPCResponseMsg(id, callUID, result))
		}
	}, rpcUID)
}

func (s *Storage) handleRPCResponse(msg *message.Message, conn NetworkConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server {
		return
	}
	id := msg.ID
	if int(id) >= len(s.idMap) {
		return
	}
	e := s.idMap[id]
	if e == nil || e.value == nil || !e.value.IsRPC() {
		return
	}
	key := RpcIDPair{LocalID: e.localID, CallUID: msg.SeqNum}
	s.rpcResults[key] = msg.Str
	s.rpcResultsCond.Broadcast()
}
