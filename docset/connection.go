package docset

import (
	"sync"

	"github.com/HerbCaudill/automerge/frontend"
	"github.com/HerbCaudill/automerge/syncproto"

	"go.uber.org/zap"
)

// SendFunc delivers one docId-tagged sync message to the peer on the other
// end of a Connection. It is invoked synchronously (spec §5: "Connection
// only invokes a user-supplied send-callback synchronously").
type SendFunc func(id DocId, msg *syncproto.Message) error

// Connection multiplexes sync for many documents over a single logical
// channel to one peer (spec §4.4): it subscribes to its DocSet's mutations
// and keeps one syncproto.SyncState per docId for that peer.
type Connection struct {
	ds   *DocSet
	send SendFunc
	log  *zap.SugaredLogger

	mu     sync.Mutex
	states map[DocId]*syncproto.SyncState
}

// NewConnection wires a Connection to ds, subscribing so that every local
// SetDoc triggers an outbound sync attempt for that docId.
func NewConnection(ds *DocSet, send SendFunc, log *zap.SugaredLogger) *Connection {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Connection{ds: ds, send: send, log: log, states: make(map[DocId]*syncproto.SyncState)}
	ds.OnChange(func(id DocId, d *frontend.Doc) {
		if err := c.syncDoc(id, d); err != nil {
			c.log.Warnw("sync failed after local change", "doc", id, "error", err)
		}
	})
	return c
}

func (c *Connection) stateFor(id DocId) *syncproto.SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[id]
	if !ok {
		s = syncproto.NewSyncState(c.log)
		c.states[id] = s
	}
	return s
}

// syncDoc generates the next outbound message for id against d's current
// history and sends it if there's anything new to say.
func (c *Connection) syncDoc(id DocId, d *frontend.Doc) error {
	s := c.stateFor(id)
	msg, ok := s.GenerateMessage(d.History())
	if !ok {
		return nil
	}
	return c.send(id, msg)
}

// Receive handles one inbound message for docId: routes it to the matching
// document, applies its changes, and re-generates a reply if anything
// changed. A message for a docId this side does not hold is an
// advertisement/request it cannot act on, per spec §4.4, and is ignored.
func (c *Connection) Receive(id DocId, msg *syncproto.Message) error {
	d, ok := c.ds.GetDoc(id)
	if !ok {
		c.log.Debugw("ignoring sync message for unknown document", "doc", id)
		return nil
	}
	s := c.stateFor(id)
	if err := s.ReceiveMessage(d.History(), msg); err != nil {
		return err
	}
	return c.syncDoc(id, d)
}

// AdvertiseAll sends an initial message for every document currently held,
// letting a newly-connected peer discover and request them.
func (c *Connection) AdvertiseAll() error {
	for _, id := range c.ds.Ids() {
		d, ok := c.ds.GetDoc(id)
		if !ok {
			continue
		}
		if err := c.syncDoc(id, d); err != nil {
			return err
		}
	}
	return nil
}
