// Package frontend implements the contract spec §4.5 describes: the surface
// the state engine exposes to an external mutable-proxy layer. Doc is the
// opaque replica handle the design note in spec §9 calls for in place of a
// recursively-immutable document tree: callers read through accessors and
// mutate only by submitting a Mutator to Change, never by holding a pointer
// into live state.
package frontend

import (
	"time"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/dag"
	"github.com/HerbCaudill/automerge/internal/verr"
	"github.com/HerbCaudill/automerge/op"
	"github.com/HerbCaudill/automerge/opset"
	"go.uber.org/zap"
)

// Mutator records a batch of edits against r; returning an error aborts the
// whole batch (Doc.Change records no change and the OpSet is left
// untouched, since nothing was applied yet).
type Mutator func(r *Recorder) error

// Doc is a single replica's handle onto one document: its causal history
// and the live CRDT state projected from it.
type Doc struct {
	actor   op.ActorId
	counter uint64 // last local op counter claimed, across all changes
	seqs    map[op.ActorId]uint64

	history *dag.History
	opset   *opset.OpSet
	clock   func() int64

	lastLocalChange *change.Change
	log             *zap.SugaredLogger
}

// docApplier adapts *opset.OpSet to dag.Applier, routing every change the
// History admits (local or remote) through the same state engine.
type docApplier struct{ opset *opset.OpSet }

func (a *docApplier) Apply(c *change.Change) error {
	_, err := a.opset.Apply(c)
	return err
}

// New creates an empty document owned by actor. clock supplies the
// millisecond timestamp for locally-authored changes; pass nil to use
// time.Now (the caller almost always wants this — New takes a func instead
// of stamping internally only so deterministic tests can inject a fixed
// clock, per spec §9's "Async" note that the engine itself does no
// wall-clock-dependent scheduling).
func New(actor op.ActorId, clock func() int64, log *zap.SugaredLogger) *Doc {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	s := opset.New(log)
	d := &Doc{
		actor: actor,
		seqs:  make(map[op.ActorId]uint64),
		opset: s,
		clock: clock,
		log:   log,
	}
	d.history = dag.New(&docApplier{opset: s}, log)
	return d
}

// NewWithRandomActor is New with a freshly generated op.NewActorId, for
// callers that don't need a stable actor id across restarts.
func NewWithRandomActor(clock func() int64, log *zap.SugaredLogger) *Doc {
	return New(op.NewActorId(), clock, log)
}

// GetActorId returns the actor id this handle records local changes as.
func (d *Doc) GetActorId() op.ActorId { return d.actor }

// SetActorId changes the actor id used for subsequent local changes. It
// does not rewrite history already recorded under the previous id.
func (d *Doc) SetActorId(actor op.ActorId) { d.actor = actor }

// GetLastLocalChange returns the most recent change produced by Change on
// this handle, or nil if none has been made yet.
func (d *Doc) GetLastLocalChange() *change.Change { return d.lastLocalChange }

// GetConflicts returns the full conflict set at a map/table key (spec §4.2
// "Conflicts", exposed per §9's supplemented-features list).
func (d *Doc) GetConflicts(objID op.OpId, key string) map[op.OpId]op.Value {
	return d.opset.GetConflicts(objID, key)
}

// GetObjectById returns the kind of the composite object named by id, and
// whether it exists in this document.
func (d *Doc) GetObjectById(id op.OpId) (op.Action, bool) { return d.opset.ObjectKind(id) }

// GetObjectId returns the OpId of the composite object currently winning at
// a map/table key, if any.
func (d *Doc) GetObjectId(objID op.OpId, key string) (op.OpId, bool) {
	return d.opset.ChildAt(objID, key)
}

// GetValue returns the projected value at a map/table key.
func (d *Doc) GetValue(objID op.OpId, key string) (op.Value, bool) { return d.opset.GetValue(objID, key) }

// Keys returns the active keys of a map/table object.
func (d *Doc) Keys(objID op.OpId) []string { return d.opset.Keys(objID) }

// ListLen returns the visible length of a list/text object.
func (d *Doc) ListLen(objID op.OpId) int { return d.opset.ListLen(objID) }

// ListValueAt returns the projected value of the i-th visible list element.
func (d *Doc) ListValueAt(objID op.OpId, i int) (op.Value, bool) { return d.opset.ListValueAt(objID, i) }

// Text returns the concatenated projected characters of a Text object.
func (d *Doc) Text(objID op.OpId) string { return d.opset.TextString(objID) }

// Heads returns the document's current set of heads.
func (d *Doc) Heads() []change.Hash { return d.history.Heads() }

// History returns the handle's causal history graph, the surface the sync
// protocol drives directly (spec §4.3/§4.4).
func (d *Doc) History() *dag.History { return d.history }

// Root is the fixed OpId naming the document's root map.
func Root() op.OpId { return op.Root }

// Change runs mutator to record a batch of ops, assembles them into a new
// Change authored by this handle's actor (deps = current heads), applies it
// to the OpSet, and returns it. A mutator that records no ops produces no
// change and a nil, nil result, matching the source's behaviour of
// suppressing empty commits.
func (d *Doc) Change(message string, mutator Mutator) (*change.Change, error) {
	r := newRecorder(d.actor, d.counter, d.opset)
	if err := mutator(r); err != nil {
		return nil, err
	}
	if len(r.ops) == 0 {
		return nil, nil
	}

	seq := d.seqs[d.actor] + 1
	startOp := d.counter + 1
	var now int64
	if d.clock != nil {
		now = d.clock()
	}

	c := &change.Change{
		Actor:   d.actor,
		Seq:     seq,
		StartOp: startOp,
		Time:    now,
		Message: message,
		Deps:    d.history.Heads(),
		Ops:     r.ops,
	}

	if err := d.history.Insert(c); err != nil {
		return nil, err
	}

	d.counter = r.counter
	d.seqs[d.actor] = seq
	d.lastLocalChange = c
	return c, nil
}

// ApplyRemoteChanges inserts already-decoded remote changes into the document's
// history, applying each to the OpSet once its deps are satisfied and
// parking the rest, per spec §4.1.
func (d *Doc) ApplyRemoteChanges(changes []*change.Change) error {
	for _, c := range changes {
		if err := d.history.Insert(c); err != nil {
			return err
		}
	}
	return nil
}

// Merge absorbs other's entire history into d, the §9-supplemented
// "combining two documents" operation: a verr.ActorCollision is returned
// without mutating d if the two histories disagree about an actor id they
// both claim changes for.
func (d *Doc) Merge(other *Doc) error {
	return d.history.Merge(other.history)
}

// Diff computes the patch between an arbitrary historical point, named by
// its head set, and the document's current heads: the §9-supplemented
// time-travel primitive, built directly on the DAG's existing
// getChanges(haveDeps) traversal rather than a new one.
//
// It replays the whole history into a scratch OpSet (through a scratch
// History, so deps are honoured regardless of replay order) and keeps only
// the patches produced by the changes getChanges(from) identifies as not
// yet reachable from from — the same "changes the other side is missing"
// computation the sync protocol performs, here targeted at two points in
// one document's own history instead of two replicas.
func (d *Doc) Diff(from []change.Hash) (*opset.Patch, error) {
	for _, h := range from {
		if !d.history.Has(h) {
			return nil, verr.New(verr.InvalidArgument, "frontend.Diff",
				"unknown hash in from set: "+h.String(), nil)
		}
	}
	delta := d.history.GetChanges(from)
	wanted := make(map[change.Hash]bool, len(delta))
	for _, c := range delta {
		wanted[c.Hash()] = true
	}

	collector := &diffCollector{
		opset:   opset.New(d.log),
		wanted:  wanted,
		combined: &opset.Patch{Objects: make(map[op.OpId]*opset.ObjectDiff)},
	}
	scratch := dag.New(collector, d.log)
	for _, c := range d.history.GetChanges(nil) {
		if err := scratch.Insert(c); err != nil {
			return nil, err
		}
	}
	return collector.combined, nil
}

// diffCollector applies every change to a scratch OpSet so causally-earlier
// state is correctly reconstructed, but only folds the patches of the
// changes named in wanted into combined.
type diffCollector struct {
	opset    *opset.OpSet
	wanted   map[change.Hash]bool
	combined *opset.Patch
}

func (c *diffCollector) Apply(ch *change.Change) error {
	patch, err := c.opset.Apply(ch)
	if err != nil {
		return err
	}
	if !c.wanted[ch.Hash()] {
		return nil
	}
	for id, od := range patch.Objects {
		c.combined.Objects[id] = od
	}
	return nil
}
