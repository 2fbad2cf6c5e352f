package storage

import (
	"sort"

	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/seqnum"
)

// GetInitialAssignments snapshots every entry with a value as an
// EntryAssign, server-side, for delivery to a client that just finished
// its handshake.
func (s *Storage) GetInitialAssignments(conn NetworkConnection) []*message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn != nil {
		conn.SetState(StateSynchronized)
	}
	var msgs []*message.Message
	for _, e := range s.entries {
		if e.value == nil {
			continue
		}
		msgs = append(msgs, message.EntryAssignMsg(e.name, uint16(e.id), uint16(e.seqNum), e.value, uint32(e.flags)))
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Name < msgs[j].Name })
	return msgs
}

// ApplyInitialAssignments reconciles the client's table against a batch of
// server EntryAssigns received right after handshake. This is the
// reconciliation invariant: locally-authored non-persistent state survives
// and is re-advertised; locally-authored persistent state is superseded by
// the server's; server-only state is adopted outright.
func (s *Storage) ApplyInitialAssignments(conn NetworkConnection, msgs []*message.Message) {
	s.mu.Lock()

	if conn != nil {
		conn.SetState(StateSynchronized)
	}
	for _, e := range s.entries {
		e.id = unassignedID
	}
	s.idMap = nil

	covered := make(map[string]bool, len(msgs))
	var pending []outboundMsg

	for _, m := range msgs {
		covered[m.Name] = true
		e := s.getOrNew(m.Name)

		id := uint32(m.ID)
		for int(id) >= len(s.idMap) {
			s.idMap = append(s.idMap, nil)
		}
		e.id = id
		s.idMap[id] = e

		if e.value == nil {
			e.flags = Flags(m.Flags)
			e.seqNum = seqnum.T(m.SeqNum)
			e.value = m.Value
			s.fanOutDataLog(e, e.value)
			if s.notifier != nil {
				s.notifier.NotifyEntry(e.localID, e.name, e.value, NotifyNew)
			}
			continue
		}

		if e.localWrite && !e.isPersistent() {
			e.seqNum = seqnum.Next(seqnum.T(m.SeqNum))
			pending = append(pending, outboundMsg{msg: message.EntryUpdateMsg(uint16(e.id), uint16(e.seqNum), e.value)})
			continue
		}

		nf := NotifyUpdate
		if conn != nil && conn.ProtoRev() >= protoRevisionV3 && Flags(m.Flags) != e.flags {
			e.flags = Flags(m.Flags)
			nf |= NotifyFlagsBit
		}
		e.value = m.Value
		e.seqNum = seqnum.T(m.SeqNum)
		s.fanOutDataLog(e, e.value)
		if s.notifier != nil {
			s.notifier.NotifyEntry(e.localID, e.name, e.value, nf)
		}
	}

	for _, e := range s.entries {
		if e.value == nil || covered[e.name] {
			continue
		}
		if e.localWrite {
			e.seqNum = seqnum.Next(e.seqNum)
			pending = append(pending, outboundMsg{msg: message.EntryAssignMsg(e.name, unassignedID, uint16(e.seqNum), e.value, uint32(e.flags))})
		} else {
			s.deleteEntryImpl(e, false, false)
		}
	}

	s.mu.Unlock()
	s.dispatch(pending)
}
