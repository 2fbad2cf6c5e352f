package storage

import (
	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/seqnum"
	"github.com/hollowcore/nettable/value"
)

// outboundMsg is a message queued for delivery once the caller has released
// s.mu. to/except follow Dispatcher.QueueOutgoing's nil-means-everyone
// convention.
type outboundMsg struct {
	msg    *message.Message
	to     NetworkConnection
	except NetworkConnection
}

// dispatch flushes a batch of outboundMsg after the caller has unlocked
// s.mu. Safe to call with a nil dispatcher (no-op) or an empty slice.
func (s *Storage) dispatch(msgs []outboundMsg) {
	if s.dispatcher == nil {
		return
	}
	for _, m := range msgs {
		s.dispatcher.QueueOutgoing(m.msg, m.to, m.except)
	}
}

// setEntryValueImpl is the shared write path behind SetEntryValue,
// SetEntryTypeValue, SetDefaultEntryValue, CreateRpc, LoadPersistent, and
// a server materializing a client's id-assignment request. Caller holds
// s.mu and has already decided this call is permitted (e.g. the
// no-type-change check in SetEntryValue).
//
// Whenever the value changes: if local is true, the entry's own seq_num is
// incremented (even when no message is emitted because a client's id is
// still unassigned) and seq is ignored; if local is false, seq is
// installed directly, matching a remote peer's sequence rather than
// advancing our own.
func (s *Storage) setEntryValueImpl(e *entry, newValue *value.Value, seq seqnum.T, local bool) []outboundMsg {
	if local && newValue.Time() == 0 {
		newValue = value.WithTime(newValue, s.clock())
	}
	old := e.value
	typeChanged := old == nil || old.Type() != newValue.Type()
	changed := !value.Equal(old, newValue)

	e.value = newValue

	if s.server && e.id == unassignedID {
		e.id = uint32(len(s.idMap))
		s.idMap = append(s.idMap, e)
	}

	if e.isPersistent() && changed {
		s.persistentDirty = true
	}

	s.fanOutDataLog(e, newValue)

	if local {
		e.localWrite = true
	}

	if changed {
		var nf NotifyFlags
		if old == nil {
			nf = NotifyNew
		} else {
			nf = NotifyUpdate
		}
		if local {
			nf |= NotifyLocal
		}
		if s.notifier != nil {
			s.notifier.NotifyEntry(e.localID, e.name, newValue, nf)
		}
	}

	if !changed {
		return nil
	}

	if local {
		e.seqNum = seqnum.Next(e.seqNum)
	} else {
		e.seqNum = seq
	}

	if typeChanged {
		return []outboundMsg{{msg: message.EntryAssignMsg(e.name, uint16(e.id), uint16(e.seqNum), newValue, uint32(e.flags))}}
	}
	if e.id != unassignedID {
		return []outboundMsg{{msg: message.EntryUpdateMsg(uint16(e.id), uint16(e.seqNum), newValue)}}
	}
	// id still unassigned on a client: defer, the next EntryAssign carries
	// the latest value.
	return nil
}

// setEntryFlagsImpl applies a flags change, notifying and (if local and
// assigned) queuing a FlagsUpdate. No-op if the entry has no value or the
// flags are unchanged.
func (s *Storage) setEntryFlagsImpl(e *entry, newFlags Flags, local bool) []outboundMsg {
	if e.value == nil || e.flags == newFlags {
		return nil
	}
	old := e.flags
	e.flags = newFlags
	if old&FlagPersistent != 0 || newFlags&FlagPersistent != 0 {
		s.persistentDirty = true
	}

	nf := NotifyFlagsBit
	if local {
		nf |= NotifyLocal
	}
	if s.notifier != nil {
		s.notifier.NotifyEntry(e.localID, e.name, e.value, nf)
	}

	if local && e.id != unassignedID {
		return []outboundMsg{{msg: message.FlagsUpdateMsg(uint16(e.id), uint32(newFlags))}}
	}
	return nil
}

// deleteEntryImpl clears an entry's value and id, notifying DELETE. emit
// controls whether a discrete EntryDelete message is produced; callers
// doing a bulk clear suppress it and emit a single ClearEntries instead.
func (s *Storage) deleteEntryImpl(e *entry, local bool, emit bool) []outboundMsg {
	old := e.value
	if old == nil {
		return nil
	}
	hadID := e.id != unassignedID
	savedID := e.id

	if hadID && int(e.id) < len(s.idMap) {
		s.idMap[e.id] = nil
	}
	s.finishDataLog(e)

	e.value = nil
	e.id = unassignedID
	e.localWrite = false
	wasPersistent := e.isPersistent()
	e.flags = 0
	e.rpcUID = noLocalID
	e.rpcCallUID = 0

	if wasPersistent {
		s.persistentDirty = true
	}

	nf := NotifyDelete
	if local {
		nf |= NotifyLocal
	}
	if s.notifier != nil {
		s.notifier.NotifyEntry(e.localID, e.name, old, nf)
	}

	if local && emit && hadID {
		return []outboundMsg{{msg: message.EntryDeleteMsg(uint16(savedID))}}
	}
	return nil
}

// deleteAllEntriesImpl deletes every entry with a value for which keep
// returns false, suppressing per-entry EntryDelete emission. Caller holds
// s.mu and is responsible for emitting the resulting single ClearEntries.
func (s *Storage) deleteAllEntriesImpl(local bool, keep func(*entry) bool) {
	for _, e := range s.entries {
		if e.value == nil || keep(e) {
			continue
		}
		s.deleteEntryImpl(e, local, false)
	}
}
