// Package storage implements the NetworkTables Storage core: the
// authoritative in-memory entry table, the wire-message state machine, the
// client/server reconciliation rules, and the RPC call/response
// coordinator. The persistent text-file codec itself lives in package
// persist; persist_snapshot.go is this package's side of that bridge.
//
// Every table operation acquires Storage's single mutex at entry and
// releases it before calling out to the injected Dispatcher/RPCServer, the
// same discipline ntcore's Storage class uses to avoid Storage<->Dispatcher
// deadlocks. Notifier.NotifyEntry is the exception: it is called with the
// mutex held (see the Notifier interface).
package storage

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/hollowcore/nettable/value"
)

// RpcIDPair identifies one in-flight RPC call.
type RpcIDPair struct {
	LocalID uint32
	CallUID uint16
}

// Storage is the protocol engine and local data model described by
// SPEC_FULL.md §4. The zero value is not usable; construct with New.
type Storage struct {
	mu sync.Mutex

	// entries is the name->entry view.
	entries map[string]*entry
	// idMap is the network-id->entry view; idMap[e.id] == e whenever e is
	// assigned.
	idMap []*entry
	// localMap is the local-id->entry view; never shrinks, never reused.
	localMap []*entry

	// RPC bookkeeping.
	rpcResults       map[RpcIDPair]string
	rpcBlockingCalls map[RpcIDPair]struct{}
	rpcResultsCond   *sync.Cond

	dataLoggers map[uint32]*dataLogger
	nextLogger  uint32

	persistentDirty bool

	terminating bool

	dispatcher Dispatcher
	server     bool

	notifier  Notifier
	rpcServer RPCServer
	log       *slog.Logger

	clock func() uint64
}

type dataLogger struct {
	log       DataLog
	prefix    string
	logPrefix string
	uid       uint32
}

// New constructs a Storage engine. notifier and rpcServer are required
// collaborators (see package interfaces.go); log may be nil, in which case
// slog.Default() is used.
func New(notifier Notifier, rpcServer RPCServer, log *slog.Logger) *Storage {
	if log == nil {
		log = slog.Default()
	}
	s := &Storage{
		entries:          map[string]*entry{},
		rpcResults:       map[RpcIDPair]string{},
		rpcBlockingCalls: map[RpcIDPair]struct{}{},
		dataLoggers:      map[uint32]*dataLogger{},
		notifier:         notifier,
		rpcServer:        rpcServer,
		log:              log,
		server:           true,
		clock:            defaultClock,
	}
	s.rpcResultsCond = sync.NewCond(&s.mu)
	return s
}

// SetDispatcher attaches the outbound message sink and records whether this
// process is acting as server or client. Must be called before any traffic
// flows; ntcore's Dispatcher does this at connection-establishment time.
func (s *Storage) SetDispatcher(d Dispatcher, server bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
	s.server = server
}

// ClearDispatcher detaches the outbound message sink, e.g. on shutdown.
func (s *Storage) ClearDispatcher() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = nil
}

// Close marks the engine as terminating and wakes every blocked
// GetRpcResult waiter, which then return (false, false).
func (s *Storage) Close() {
	s.mu.Lock()
	s.terminating = true
	s.mu.Unlock()
	s.rpcResultsCond.Broadcast()
}

func defaultClock() uint64 {
	return uint64(nowMicros())
}

// getOrNew returns the entry for name, creating a vacant one (no value, no
// id) if this is the first time name has been observed. Caller must hold
// s.mu.
func (s *Storage) getOrNew(name string) *entry {
	e, ok := s.entries[name]
	if ok {
		return e
	}
	e = newEntry(name, uint32(len(s.localMap)))
	s.entries[name] = e
	s.localMap = append(s.localMap, e)
	return e
}

// GetEntry returns name's stable local id, creating a vacant entry if this
// is the first time name has been observed. An empty name returns the
// UINT_MAX sentinel, matching ntcore's Storage::GetEntry.
func (s *Storage) GetEntry(name string) uint32 {
	if name == "" {
		return noLocalID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrNew(name).localID
}

// GetEntryValue returns name's current value, or nil if it has none (or
// doesn't exist).
func (s *Storage) GetEntryValue(name string) *value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return nil
	}
	return e.value
}

// GetEntryValueByID is the local-id-keyed counterpart to GetEntryValue.
func (s *Storage) GetEntryValueByID(localID uint32) *value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if localID >= uint32(len(s.localMap)) {
		return nil
	}
	return s.localMap[localID].value
}

// GetEntries returns the local ids of every entry with a value whose name
// has the given prefix, and (if types != 0) whose type intersects types.
func (s *Storage) GetEntries(prefix string, types uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint32
	for name, e := range s.entries {
		if e.value == nil || !strings.HasPrefix(name, prefix) {
			continue
		}
		if types != 0 && uint32(e.value.Type())&types == 0 {
			continue
		}
		ids = append(ids, e.localID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EntryInfo summarizes one entry for enumeration purposes.
type EntryInfo struct {
	LocalID    uint32
	Name       string
	Type       uint32
	Flags      Flags
	LastChange uint64
}

// GetEntryInfo enumerates entries by prefix and type bitmask, mirroring
// GetEntries but returning full metadata (ntcore's Storage::GetEntryInfo).
func (s *Storage) GetEntryInfo(prefix string, types uint32) []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []EntryInfo
	for name, e := range s.entries {
		if e.value == nil || !strings.HasPrefix(name, prefix) {
			continue
		}
		if types != 0 && uint32(e.value.Type())&types == 0 {
			continue
		}
		infos = append(infos, EntryInfo{
			LocalID:    e.localID,
			Name:       name,
			Type:       uint32(e.value.Type()),
			Flags:      e.flags,
			LastChange: e.value.Time(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetEntryInfoByID is the local-id-keyed single-entry counterpart.
func (s *Storage) GetEntryInfoByID(localID uint32) (EntryInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if localID >= uint32(len(s.localMap)) {
		return EntryInfo{}, false
	}
	e := s.localMap[localID]
	if e.value == nil {
		return EntryInfo{}, false
	}
	return EntryInfo{
		LocalID:    e.localID,
		Name:       e.name,
		Type:       uint32(e.value.Type()),
		Flags:      e.flags,
		LastChange: e.value.Time(),
	}, true
}

// GetEntryName returns the name for a local id, or "" if out of range.
func (s *Storage) GetEntryName(localID uint32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if localID >= uint32(len(s.localMap)) {
		return ""
	}
	return s.localMap[localID].name
}

// GetEntryFlags returns the flags for name, or 0 if absent.
func (s *Storage) GetEntryFlags(name string) Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return 0
	}
	return e.flags
}

// GetEntryFlagsByID is the local-id-keyed counterpart to GetEntryFlags.
func (s *Storage) GetEntryFlagsByID(localID uint32) Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	if localID >= uint32(len(s.localMap)) {
		return 0
	}
	return s.localMap[localID].flags
}

// GetEntryLastChange returns the last-change timestamp for localID, or 0 if
// out of range or unset.
func (s *Storage) GetEntryLastChange(localID uint32) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if localID >= uint32(len(s.localMap)) {
		return 0
	}
	e := s.localMap[localID]
	if e.value == nil {
		return 0
	}
	return e.value.Time()
}
