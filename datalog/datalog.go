// Package datalog is a bbolt-backed storage.DataLog sink: every entry
// stream Storage starts gets a metadata record and an append-only run of
// timestamped values, persisted across restarts.
package datalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

var (
	entriesBucket = []byte("entries")
	recordsBucket = []byte("records")
)

// entryMeta is the JSON payload stored for one Start..Finish stream.
type entryMeta struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Metadata string `json:"metadata"`
	Start    uint64 `json:"start"`
	Finish   uint64 `json:"finish,omitempty"`
	Finished bool   `json:"finished"`
}

type record struct {
	Timestamp uint64      `json:"ts"`
	Value     interface{} `json:"v"`
}

// Log implements storage.DataLog against a bbolt database file.
type Log struct {
	db *bbolt.DB

	mu     sync.Mutex
	nextID int
}

// Open opens (creating if necessary) a bbolt database at path and prepares
// its buckets.
func Open(path string) (*Log, error) {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("datalog: open %s: %w", path, err)
	}
	var next int
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(entriesBucket)
		if err != nil {
			return err
		}
		if k, _ := b.Cursor().Last(); k != nil {
			next = int(binary.BigEndian.Uint64(k)) + 1
		}
		_, err = tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db, nextID: next}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Start implements storage.DataLog.
func (l *Log) Start(name, typ, metadata string, timestamp uint64) int {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.mu.Unlock()

	meta := entryMeta{Name: name, Type: typ, Metadata: metadata, Start: timestamp}
	_ = l.db.Update(func(tx *bbolt.Tx) error {
		buf, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(entriesBucket).Put(itob(id), buf)
	})
	return id
}

// Finish implements storage.DataLog.
func (l *Log) Finish(entryID int, timestamp uint64) {
	_ = l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		raw := b.Get(itob(entryID))
		if raw == nil {
			return nil
		}
		var meta entryMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return err
		}
		meta.Finish = timestamp
		meta.Finished = true
		buf, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return b.Put(itob(entryID), buf)
	})
}

func (l *Log) append(entryID int, timestamp uint64, v interface{}) {
	_ = l.db.Update(func(tx *bbolt.Tx) error {
		buf, err := json.Marshal(record{Timestamp: timestamp, Value: v})
		if err != nil {
			return err
		}
		return tx.Bucket(recordsBucket).Put(recordKey(entryID, timestamp), buf)
	})
}

func (l *Log) AppendBoolean(entryID int, v bool, timestamp uint64)        { l.append(entryID, timestamp, v) }
func (l *Log) AppendDouble(entryID int, v float64, timestamp uint64)      { l.append(entryID, timestamp, v) }
func (l *Log) AppendString(entryID int, v string, timestamp uint64)       { l.append(entryID, timestamp, v) }
func (l *Log) AppendRaw(entryID int, v []byte, timestamp uint64)          { l.append(entryID, timestamp, v) }
func (l *Log) AppendBooleanArray(entryID int, v []bool, timestamp uint64) { l.append(entryID, timestamp, v) }
func (l *Log) AppendDoubleArray(entryID int, v []float64, timestamp uint64) {
	l.append(entryID, timestamp, v)
}
func (l *Log) AppendStringArray(entryID int, v []string, timestamp uint64) {
	l.append(entryID, timestamp, v)
}

func itob(id int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func recordKey(entryID int, timestamp uint64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], uint64(entryID))
	binary.BigEndian.PutUint64(buf[8:], timestamp)
	return buf
}
