// Package testutil provides an in-memory replica harness for exercising the
// sync protocol and state engine without a real transport, grounded on the
// teacher's vsync/test_util.go mock service: where that file stands up a
// mock Syncbase service so vsync tests can drive sync.go without a real
// store, Peer and Network stand up mock docset.Connections so tests here can
// drive convergence without a real socket.
package testutil

import (
	"testing"

	"github.com/HerbCaudill/automerge/docset"
	"github.com/HerbCaudill/automerge/frontend"
	"github.com/HerbCaudill/automerge/op"
	"github.com/HerbCaudill/automerge/syncproto"

	"go.uber.org/zap"
)

// Peer is one named replica in a test Network: a DocSet plus the
// Connections it has open to other peers.
type Peer struct {
	Name string
	Docs *docset.DocSet

	net   *Network
	conns map[string]*docset.Connection
}

// NewDoc creates and registers a new document named id under this peer,
// owned by an actor derived from the peer's name so concurrent edits from
// different peers land under distinct actor ids without the test needing to
// invent one.
func (p *Peer) NewDoc(id docset.DocId) *frontend.Doc {
	d := frontend.New(op.ActorId(p.Name), fixedClock(0), nil)
	p.Docs.SetDoc(id, d)
	return d
}

// Doc returns the peer's current handle for id, failing the test if absent.
func (p *Peer) Doc(t *testing.T, id docset.DocId) *frontend.Doc {
	t.Helper()
	d, ok := p.Docs.GetDoc(id)
	if !ok {
		t.Fatalf("peer %s has no document %q", p.Name, id)
	}
	return d
}

// Change records a mutation against id's document on this peer and
// re-publishes the updated handle through the DocSet, which is what drives
// Connections to sync it (mirroring the real frontend.Doc + docset.DocSet
// split: DocSet.SetDoc is the only thing a Connection observes).
func (p *Peer) Change(t *testing.T, id docset.DocId, message string, mutate frontend.Mutator) {
	t.Helper()
	d := p.Doc(t, id)
	if _, err := d.Change(message, mutate); err != nil {
		t.Fatalf("peer %s: change on %q failed: %v", p.Name, id, err)
	}
	p.Docs.SetDoc(id, d)
}

// Network is a fully-connected mesh of named Peers wired with direct,
// synchronous, in-process SendFuncs: calling Send on one peer's Connection
// for another immediately invokes that target's Connection.Receive, so
// tests can drive convergence deterministically without goroutines or a
// real socket standing in for the wire.
type Network struct {
	peers map[string]*Peer
	log   *zap.SugaredLogger
}

// NewNetwork creates an empty Network. log may be nil.
func NewNetwork(log *zap.SugaredLogger) *Network {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Network{peers: make(map[string]*Peer), log: log}
}

// AddPeer creates a new Peer named name with an empty DocSet and no
// connections yet.
func (n *Network) AddPeer(name string) *Peer {
	p := &Peer{Name: name, Docs: docset.NewDocSet(), net: n, conns: make(map[string]*docset.Connection)}
	n.peers[name] = p
	return p
}

// Connect opens a bidirectional Connection between a and b: each side's
// Connection.Receive is wired as the other's SendFunc, so a local change on
// either peer synchronously propagates sync messages until both converge or
// one side has nothing left to say.
func (n *Network) Connect(a, b *Peer) {
	var connA, connB *docset.Connection
	connA = docset.NewConnection(a.Docs, func(id docset.DocId, msg *syncproto.Message) error {
		return connB.Receive(id, msg)
	}, n.log)
	connB = docset.NewConnection(b.Docs, func(id docset.DocId, msg *syncproto.Message) error {
		return connA.Receive(id, msg)
	}, n.log)
	a.conns[b.Name] = connA
	b.conns[a.Name] = connB
}

// Sync drives a's connection to b (and transitively b's reply, and a's
// reply to that, and so on via the synchronous SendFuncs Connect wired up)
// by re-advertising every document a holds. Since each Receive call already
// chains a reply when there's something new to say, one AdvertiseAll call
// runs the exchange to a fixed point.
func (n *Network) Sync(t *testing.T, a, b *Peer) {
	t.Helper()
	conn, ok := a.conns[b.Name]
	if !ok {
		t.Fatalf("no connection from %s to %s", a.Name, b.Name)
	}
	if err := conn.AdvertiseAll(); err != nil {
		t.Fatalf("sync %s -> %s failed: %v", a.Name, b.Name, err)
	}
}

// SyncAll runs Sync between every pair of connected peers, repeating the
// full pass exactly rounds times; it does not stop early when a pass
// produces no messages.
func SyncAll(t *testing.T, n *Network, rounds int) {
	t.Helper()
	names := make([]string, 0, len(n.peers))
	for name := range n.peers {
		names = append(names, name)
	}
	for i := 0; i < rounds; i++ {
		for _, an := range names {
			a := n.peers[an]
			for bn := range a.conns {
				n.Sync(t, a, n.peers[bn])
			}
		}
	}
}

func fixedClock(t int64) func() int64 {
	return func() int64 { return t }
}
