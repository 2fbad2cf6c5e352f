package storage

import (
	"strings"

	"github.com/hollowcore/nettable/value"
)

// fanOutDataLog attaches newly-matching loggers and appends newValue to
// every data-log stream already attached to e, finishing and reopening any
// stream whose type no longer matches (a type change on the entry).
// Caller holds s.mu.
func (s *Storage) fanOutDataLog(e *entry, newValue *value.Value) {
	if newValue == nil {
		return
	}
	ts := newValue.Time()

	for uid, dl := range s.dataLoggers {
		if !strings.HasPrefix(e.name, dl.prefix) {
			continue
		}
		attached := false
		for _, d := range e.dataLogs {
			if d.loggerUID == uid {
				attached = true
				break
			}
		}
		if !attached {
			id := dl.log.Start(dl.logPrefix+e.name, newValue.Type().String(), "", ts)
			e.dataLogs = append(e.dataLogs, dataLogEntry{log: dl.log, entryID: id, loggerUID: uid})
			e.dataLogType = newValue.Type()
		}
	}

	if e.dataLogType != value.Unassigned && e.dataLogType != newValue.Type() {
		for i := range e.dataLogs {
			d := &e.dataLogs[i]
			d.log.Finish(d.entryID, ts)
			dl, ok := s.dataLoggers[d.loggerUID]
			if !ok {
				continue
			}
			d.entryID = dl.log.Start(dl.logPrefix+e.name, newValue.Type().String(), "", ts)
		}
		e.dataLogType = newValue.Type()
	}

	for _, d := range e.dataLogs {
		appendDataLogValue(d.log, d.entryID, newValue, ts)
	}
}

func appendDataLogValue(log DataLog, entryID int, v *value.Value, ts uint64) {
	switch v.Type() {
	case value.Boolean:
		log.AppendBoolean(entryID, v.GetBoolean(), ts)
	case value.Double:
		log.AppendDouble(entryID, v.GetDouble(), ts)
	case value.String:
		log.AppendString(entryID, v.GetString(), ts)
	case value.Raw:
		log.AppendRaw(entryID, v.GetRaw(), ts)
	case value.BooleanArray:
		log.AppendBooleanArray(entryID, v.GetBooleanArray(), ts)
	case value.DoubleArray:
		log.AppendDoubleArray(entryID, v.GetDoubleArray(), ts)
	case value.StringArray:
		log.AppendStringArray(entryID, v.GetStringArray(), ts)
	}
}

// finishDataLog closes out every data-log stream attached to e, e.g. on
// deletion. Caller holds s.mu.
func (s *Storage) finishDataLog(e *entry) {
	if len(e.dataLogs) == 0 {
		return
	}
	ts := nowMicros()
	for _, d := range e.dataLogs {
		d.log.Finish(d.entryID, uint64(ts))
	}
	e.dataLogs = nil
	e.dataLogType = value.Unassigned
}

// StartDataLog registers log to receive every future value change for
// entries whose name has prefix, recorded under logPrefix+name. Returns a
// uid to pass to StopDataLog.
func (s *Storage) StartDataLog(log DataLog, prefix, logPrefix string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.nextLogger
	s.nextLogger++
	s.dataLoggers[uid] = &dataLogger{log: log, prefix: prefix, logPrefix: logPrefix, uid: uid}

	ts := uint64(nowMicros())
	for _, e := range s.entries {
		if e.value == nil || !strings.HasPrefix(e.name, prefix) {
			continue
		}
		id := log.Start(logPrefix+e.name, e.value.Type().String(), "", ts)
		e.dataLogs = append(e.dataLogs, dataLogEntry{log: log, entryID: id, loggerUID: uid})
		e.dataLogType = e.value.Type()
	}
	return uid
}

// StopDataLog finishes every stream belonging to uid and unregisters it.
// Must be called before the underlying DataLog sink is closed.
func (s *Storage) StopDataLog(uid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dataLoggers[uid]; !ok {
		return
	}
	delete(s.dataLoggers, uid)

	ts := uint64(nowMicros())
	for _, e := range s.entries {
		kept := e.dataLogs[:0]
		for _, d := range e.dataLogs {
			if d.loggerUID == uid {
				d.log.Finish(d.entryID, ts)
				continue
			}
			kept = append(kept, d)
		}
		e.dataLogs = kept
	}
}
