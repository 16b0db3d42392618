// Package docset implements the multiplexing layer from spec §4.4: a DocSet
// maps docId to the latest local document handle, and a Connection wraps
// one DocSet and a send-callback, maintaining one syncproto.SyncState per
// (peer, docId) pair so many documents can share a single message channel.
package docset

import (
	"sync"

	"github.com/HerbCaudill/automerge/frontend"
)

// DocId names a document within a DocSet.
type DocId string

// DocSet is a mapping from docId to the latest local *frontend.Doc. Per
// spec §5, the doc table is the only shared mutable state across
// Connections; mutation is confined to SetDoc.
type DocSet struct {
	mu   sync.Mutex
	docs map[DocId]*frontend.Doc

	// subscribers are notified synchronously, in registration order, after
	// every SetDoc — the hook a Connection uses to learn about local edits
	// made directly against a document handle outside of sync.
	subscribers []func(id DocId, d *frontend.Doc)
}

// NewDocSet creates an empty DocSet.
func NewDocSet() *DocSet {
	return &DocSet{docs: make(map[DocId]*frontend.Doc)}
}

// GetDoc returns the current handle for id, and whether it exists.
func (ds *DocSet) GetDoc(id DocId) (*frontend.Doc, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	d, ok := ds.docs[id]
	return d, ok
}

// SetDoc installs d as the latest handle for id and notifies subscribers.
func (ds *DocSet) SetDoc(id DocId, d *frontend.Doc) {
	ds.mu.Lock()
	ds.docs[id] = d
	subs := append([]func(DocId, *frontend.Doc){}, ds.subscribers...)
	ds.mu.Unlock()

	for _, sub := range subs {
		sub(id, d)
	}
}

// Ids returns every docId currently held.
func (ds *DocSet) Ids() []DocId {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	out := make([]DocId, 0, len(ds.docs))
	for id := range ds.docs {
		out = append(out, id)
	}
	return out
}

// OnChange registers a callback invoked after every SetDoc, the hook
// Connection uses to drive outbound sync on local edits.
func (ds *DocSet) OnChange(fn func(id DocId, d *frontend.Doc)) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.subscribers = append(ds.subscribers, fn)
}
