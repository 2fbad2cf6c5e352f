package storage

import "github.com/hollowcore/nettable/value"

// IsPersistentDirty reports whether any persistent entry's value, flags,
// or existence has changed since the last ClearPersistentDirty.
func (s *Storage) IsPersistentDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistentDirty
}

// ClearPersistentDirty clears the dirty flag. Callers implementing the
// periodic save loop must clear it *before* writing to disk, so that a
// mutation racing with the write re-asserts it rather than being lost.
func (s *Storage) ClearPersistentDirty() {
	s.mu.Lock()
	s.persistentDirty = false
	s.mu.Unlock()
}

// MarkPersistentDirty re-asserts the dirty flag, e.g. after a failed save.
func (s *Storage) MarkPersistentDirty() {
	s.mu.Lock()
	s.persistentDirty = true
	s.mu.Unlock()
}

// PersistentSnapshot is one persistent entry's exported shape, decoupled
// from the persist package's own Entry type so storage has no dependency
// on the persistence codec.
type PersistentSnapshot struct {
	Name  string
	Value *value.Value
	Flags Flags
}

// SnapshotPersistent returns every entry currently flagged persistent and
// holding a value, for a caller to hand to the persistence codec.
func (s *Storage) SnapshotPersistent() []PersistentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PersistentSnapshot
	for name, e := range s.entries {
		if e.value == nil || !e.isPersistent() {
			continue
		}
		out = append(out, PersistentSnapshot{Name: name, Value: e.value, Flags: e.flags})
	}
	return out
}

// LoadPersistent installs entries read from disk. Each becomes persistent
// regardless of prior state; if an entry of the same name already exists
// with a different type, the loaded type wins, matching the loader's
// documented precedence.
func (s *Storage) LoadPersistent(entries []PersistentSnapshot) {
	for _, pe := range entries {
		s.mu.Lock()
		e := s.getOrNew(pe.Name)
		e.flags = pe.Flags | FlagPersistent
		out := s.setEntryValueImpl(e, pe.Value, 0, true)
		s.mu.Unlock()
		s.dispatch(out)
	}
}
