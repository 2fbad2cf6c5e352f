package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowcore/nettable/storage"
	"github.com/hollowcore/nettable/value"
)

func TestListenerReceivesMatchingPrefix(t *testing.T) {
	n := New(16)
	defer n.Close()

	got := make(chan storage.EntryNotification, 1)
	n.AddListener("foo/", 0, func(e storage.EntryNotification) { got <- e })

	n.NotifyEntry(1, "foo/bar", value.NewBoolean(true, 0), storage.NotifyNew)
	n.NotifyEntry(2, "baz/qux", value.NewBoolean(true, 0), storage.NotifyNew)

	select {
	case e := <-got:
		assert.Equal(t, "foo/bar", e.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestPolledListenerAccumulates(t *testing.T) {
	n := New(16)
	defer n.Close()

	h := n.AddPolledListener("", storage.NotifyUpdate)
	n.NotifyEntry(1, "a", value.NewDouble(1, 0), storage.NotifyUpdate)
	n.NotifyEntry(2, "b", value.NewDouble(2, 0), storage.NotifyNew)

	require.Eventually(t, func() bool {
		events, ok := n.Poll(h)
		return ok && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRemoveListener(t *testing.T) {
	n := New(16)
	defer n.Close()
	h := n.AddPolledListener("", 0)
	n.RemoveListener(h)
	_, ok := n.Poll(h)
	assert.False(t, ok)
}
