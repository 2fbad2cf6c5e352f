// Package notifier implements storage.Notifier: a prefix/mask-filtered
// pub/sub fan-out, decoupled from Storage's own mutex by a single
// dispatch goroutine draining a queue, the way ntcore's EntryNotifier
// decouples delivery from the table lock.
package notifier

import (
	"strings"
	"sync"

	"github.com/hollowcore/nettable/handle"
	"github.com/hollowcore/nettable/storage"
	"github.com/hollowcore/nettable/value"
)

type listener struct {
	prefix string
	mask   storage.NotifyFlags
	cb     func(storage.EntryNotification)
}

type poller struct {
	prefix string
	mask   storage.NotifyFlags
	buf    []storage.EntryNotification
}

type queued struct {
	localID uint32
	name    string
	value   *value.Value
	flags   storage.NotifyFlags
}

// Notifier is a storage.Notifier implementation. The zero value is not
// usable; construct with New and Close it on shutdown.
type Notifier struct {
	mu        sync.Mutex
	listeners map[storage.ListenerHandle]*listener
	pollers   map[storage.ListenerHandle]*poller
	nextIndex int

	queue chan queued
	done  chan struct{}
}

// New starts a Notifier's dispatch goroutine. queueDepth bounds how many
// pending notifications may back up before NotifyEntry starts dropping
// them rather than blocking Storage.
func New(queueDepth int) *Notifier {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	n := &Notifier{
		listeners: map[storage.ListenerHandle]*listener{},
		pollers:   map[storage.ListenerHandle]*poller{},
		queue:     make(chan queued, queueDepth),
		done:      make(chan struct{}),
	}
	go n.dispatchLoop()
	return n
}

// Close stops the dispatch goroutine. Queued-but-undelivered notifications
// are discarded.
func (n *Notifier) Close() {
	close(n.done)
}

// NotifyEntry implements storage.Notifier. Never blocks: a saturated queue
// drops the notification rather than stall the caller, which may be
// holding Storage's mutex.
func (n *Notifier) NotifyEntry(localID uint32, name string, v *value.Value, flags storage.NotifyFlags) {
	select {
	case n.queue <- queued{localID: localID, name: name, value: v, flags: flags}:
	default:
	}
}

func (n *Notifier) dispatchLoop() {
	for {
		select {
		case <-n.done:
			return
		case q := <-n.queue:
			n.deliver(q)
		}
	}
}

func (n *Notifier) deliver(q queued) {
	note := storage.EntryNotification{LocalID: q.localID, Name: q.name, Value: q.value, Flags: q.flags}

	n.mu.Lock()
	var cbs []func(storage.EntryNotification)
	for _, l := range n.listeners {
		if matches(l.prefix, l.mask, q.name, q.flags) {
			cbs = append(cbs, l.cb)
		}
	}
	for _, p := range n.pollers {
		if matches(p.prefix, p.mask, q.name, q.flags) {
			p.buf = append(p.buf, note)
		}
	}
	n.mu.Unlock()

	for _, cb := range cbs {
		cb(note)
	}
}

func matches(prefix string, mask storage.NotifyFlags, name string, flags storage.NotifyFlags) bool {
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	if mask != 0 && flags&mask == 0 {
		return false
	}
	return true
}

// AddListener implements storage.Notifier. The returned handle is packed via
// package handle's type:inst:index layout, tagged EntryListener, matching
// ntcore's NT_EntryListener handle space.
func (n *Notifier) AddListener(prefix string, mask storage.NotifyFlags, cb func(storage.EntryNotification)) storage.ListenerHandle {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := storage.ListenerHandle(handle.Make(handle.EntryListener, 0, n.nextIndex))
	n.nextIndex++
	n.listeners[h] = &listener{prefix: prefix, mask: mask, cb: cb}
	return h
}

// AddPolledListener implements storage.Notifier, tagged EntryListenerPoller.
func (n *Notifier) AddPolledListener(prefix string, mask storage.NotifyFlags) storage.ListenerHandle {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := storage.ListenerHandle(handle.Make(handle.EntryListenerPoller, 0, n.nextIndex))
	n.nextIndex++
	n.pollers[h] = &poller{prefix: prefix, mask: mask}
	return h
}

// RemoveListener implements storage.Notifier.
func (n *Notifier) RemoveListener(h storage.ListenerHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, h)
	delete(n.pollers, h)
}

// Poll implements storage.Notifier.
func (n *Notifier) Poll(h storage.ListenerHandle) ([]storage.EntryNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pollers[h]
	if !ok {
		return nil, false
	}
	out := p.buf
	p.buf = nil
	return out, true
}
