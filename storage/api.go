package storage

import (
	"github.com/hollowcore/nettable/message"
	"github.com/hollowcore/nettable/value"
)

// entryByID resolves a local id to its entry, or nil if out of range.
// Caller holds s.mu.
func (s *Storage) entryByID(localID uint32) *entry {
	if localID >= uint32(len(s.localMap)) {
		return nil
	}
	return s.localMap[localID]
}

// SetEntryValue stores v under name, rejecting a type change against an
// existing value (returns false, no side effects). An empty name or nil
// value is a silent no-op that reports success, matching SetEntryValue's
// deliberately asymmetric contract with SetDefaultEntryValue.
func (s *Storage) SetEntryValue(name string, v *value.Value) bool {
	if name == "" || v == nil {
		return true
	}
	s.mu.Lock()
	e := s.getOrNew(name)
	if e.value != nil && e.value.Type() != v.Type() {
		s.mu.Unlock()
		return false
	}
	out := s.setEntryValueImpl(e, v, 0, true)
	s.mu.Unlock()
	s.dispatch(out)
	return true
}

// SetEntryValueByID is the local-id-keyed counterpart to SetEntryValue.
func (s *Storage) SetEntryValueByID(localID uint32, v *value.Value) bool {
	if v == nil {
		return true
	}
	s.mu.Lock()
	e := s.entryByID(localID)
	if e == nil {
		s.mu.Unlock()
		return true
	}
	if e.value != nil && e.value.Type() != v.Type() {
		s.mu.Unlock()
		return false
	}
	out := s.setEntryValueImpl(e, v, 0, true)
	s.mu.Unlock()
	s.dispatch(out)
	return true
}

// SetEntryTypeValue is SetEntryValue without the type-change rejection: a
// type change emits an EntryAssign in place of an EntryUpdate.
func (s *Storage) SetEntryTypeValue(name string, v *value.Value) {
	if name == "" || v == nil {
		return
	}
	s.mu.Lock()
	e := s.getOrNew(name)
	out := s.setEntryValueImpl(e, v, 0, true)
	s.mu.Unlock()
	s.dispatch(out)
}

// SetEntryTypeValueByID is the local-id-keyed counterpart.
func (s *Storage) SetEntryTypeValueByID(localID uint32, v *value.Value) {
	if v == nil {
		return
	}
	s.mu.Lock()
	e := s.entryByID(localID)
	if e == nil {
		s.mu.Unlock()
		return
	}
	out := s.setEntryValueImpl(e, v, 0, true)
	s.mu.Unlock()
	s.dispatch(out)
}

// SetDefaultEntryValue assigns v only if the entry has no value yet. If it
// already has one, reports whether its type matches v's (the value itself
// is left untouched either way). An empty name or nil value returns false.
func (s *Storage) SetDefaultEntryValue(name string, v *value.Value) bool {
	if name == "" || v == nil {
		return false
	}
	s.mu.Lock()
	e := s.getOrNew(name)
	if e.value != nil {
		ok := e.value.Type() == v.Type()
		s.mu.Unlock()
		return ok
	}
	out := s.setEntryValueImpl(e, v, 0, true)
	s.mu.Unlock()
	s.dispatch(out)
	return true
}

// SetDefaultEntryValueByID is the local-id-keyed counterpart.
func (s *Storage) SetDefaultEntryValueByID(localID uint32, v *value.Value) bool {
	if v == nil {
		return false
	}
	s.mu.Lock()
	e := s.entryByID(localID)
	if e == nil {
		s.mu.Unlock()
		return false
	}
	if e.value != nil {
		ok := e.value.Type() == v.Type()
		s.mu.Unlock()
		return ok
	}
	out := s.setEntryValueImpl(e, v, 0, true)
	s.mu.Unlock()
	s.dispatch(out)
	return true
}

// SetEntryFlags updates name's flags. No-op if the entry has no value or
// the flags are unchanged.
func (s *Storage) SetEntryFlags(name string, flags Flags) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	out := s.setEntryFlagsImpl(e, flags, true)
	s.mu.Unlock()
	s.dispatch(out)
}

// SetEntryFlagsByID is the local-id-keyed counterpart.
func (s *Storage) SetEntryFlagsByID(localID uint32, flags Flags) {
	s.mu.Lock()
	e := s.entryByID(localID)
	if e == nil {
		s.mu.Unlock()
		return
	}
	out := s.setEntryFlagsImpl(e, flags, true)
	s.mu.Unlock()
	s.dispatch(out)
}

// DeleteEntry removes name's value, retaining the entry's local id.
func (s *Storage) DeleteEntry(name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	out := s.deleteEntryImpl(e, true, true)
	s.mu.Unlock()
	s.dispatch(out)
}

// DeleteEntryByID is the local-id-keyed counterpart.
func (s *Storage) DeleteEntryByID(localID uint32) {
	s.mu.Lock()
	e := s.entryByID(localID)
	if e == nil {
		s.mu.Unlock()
		return
	}
	out := s.deleteEntryImpl(e, true, true)
	s.mu.Unlock()
	s.dispatch(out)
}

// DeleteAllEntries deletes every non-persistent entry and emits a single
// ClearEntries, leaving persistent entries untouched.
func (s *Storage) DeleteAllEntries() {
	s.mu.Lock()
	s.deleteAllEntriesImpl(true, func(e *entry) bool { return e.isPersistent() })
	s.mu.Unlock()
	s.dispatch([]outboundMsg{{msg: message.ClearEntriesMsg()}})
}

// GetMessageEntryType returns the value type currently stored under a
// network id, or Unassigned if the id is out of range or has no value.
// Exists to support protocol-2.0 wire decoding, which must infer a
// message's value type from prior EntryAssign state rather than carrying
// it inline.
func (s *Storage) GetMessageEntryType(id uint16) value.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) >= len(s.idMap) {
		return value.Unassigned
	}
	e := s.idMap[id]
	if e == nil || e.value == nil {
		return value.Unassigned
	}
	return e.value.Type()
}

// AddListener registers cb to be invoked (via the injected Notifier) for
// entries under prefix matching mask.
func (s *Storage) AddListener(prefix string, mask NotifyFlags, cb func(EntryNotification)) ListenerHandle {
	return s.notifier.AddListener(prefix, mask, cb)
}

// AddPolledListener registers a listener whose notifications accumulate
// for retrieval via Poll instead of being pushed to a callback.
func (s *Storage) AddPolledListener(prefix string, mask NotifyFlags) ListenerHandle {
	return s.notifier.AddPolledListener(prefix, mask)
}

// RemoveListener unregisters a listener or poller created by AddListener
// or AddPolledListener.
func (s *Storage) RemoveListener(h ListenerHandle) {
	s.notifier.RemoveListener(h)
}

// Poll drains queued notifications for a polled listener. The second
// return value is false if h is unknown or not a polled listener.
func (s *Storage) Poll(h ListenerHandle) ([]EntryNotification, bool) {
	return s.notifier.Poll(h)
}
