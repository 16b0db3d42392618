// Package dag implements the causal history graph of changes keyed by hash
// (spec §4.1): the entry point for reachability and "heads" computation,
// and the holding area for changes whose dependencies have not yet arrived.
//
// The control flow (insert → apply-or-park → reactivate on dep arrival) is
// modeled on the teacher's vsync responder/initiator pairing of "replay log
// records, then promote anything now satisfied", reworked here around
// explicit hash deps instead of per-device generation vectors.
package dag

import (
	"sort"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/internal/verr"
	"github.com/HerbCaudill/automerge/op"
	"go.uber.org/zap"
)

// Applier is invoked by the DAG once a change's dependencies are all
// present, so the OpSet can absorb it in causal order. Returning an error
// aborts the insert of that change (and anything chained on it) without
// mutating the DAG's heads.
type Applier interface {
	Apply(c *change.Change) error
}

// History is the hash-keyed causal graph of changes for one document.
// It is not safe for concurrent use by multiple goroutines (spec §5).
type History struct {
	changes map[change.Hash]*change.Change
	actors  map[op.ActorId][]change.Hash // per-actor changes in seq order

	heads map[change.Hash]bool

	// pending maps a missing dep hash to the set of parked changes that are
	// waiting on it.
	pending map[change.Hash]map[change.Hash]bool
	parked  map[change.Hash]*change.Change

	applier Applier
	log     *zap.SugaredLogger
}

// New creates an empty History. applier may be nil, in which case Insert
// still tracks DAG structure but never calls back (useful for tests that
// only exercise reachability). log may be nil, in which case a no-op logger
// is used.
func New(applier Applier, log *zap.SugaredLogger) *History {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &History{
		changes: make(map[change.Hash]*change.Change),
		actors:  make(map[op.ActorId][]change.Hash),
		heads:   make(map[change.Hash]bool),
		pending: make(map[change.Hash]map[change.Hash]bool),
		parked:  make(map[change.Hash]*change.Change),
		applier: applier,
		log:     log,
	}
}

// Heads returns the current set of heads: hashes with no applied successor.
func (h *History) Heads() []change.Hash {
	out := make([]change.Hash, 0, len(h.heads))
	for hash := range h.heads {
		out = append(out, hash)
	}
	change.SortHashes(out)
	return out
}

// Has reports whether hash names a change already applied to this History.
func (h *History) Has(hash change.Hash) bool {
	_, ok := h.changes[hash]
	return ok
}

// Get returns the applied change named by hash, or nil if unknown/pending.
func (h *History) Get(hash change.Hash) *change.Change {
	return h.changes[hash]
}

// Insert adds c to the history. If c's hash is already known, this is a
// no-op. If any dep is missing, c is parked until reactivate resolves it.
// Otherwise c is applied immediately and heads are recomputed.
func (h *History) Insert(c *change.Change) error {
	hash := c.Hash()
	if h.Has(hash) {
		return nil
	}
	if _, parked := h.parked[hash]; parked {
		return nil
	}

	missing := h.missingDeps(c)
	if len(missing) > 0 {
		h.park(c, hash, missing)
		return nil
	}

	return h.apply(c, hash)
}

// validateSeq enforces the per-actor gap-free sequence invariant (spec §3):
// a change may only be applied once its deps are satisfied, so at that
// point its seq must be exactly one more than the last applied change from
// the same actor.
func (h *History) validateSeq(c *change.Change) error {
	hashes := h.actors[c.Actor]
	expected := uint64(1)
	if len(hashes) > 0 {
		last := h.changes[hashes[len(hashes)-1]]
		expected = last.Seq + 1
	}
	if c.Seq != expected {
		return verr.New(verr.InvalidArgument, "dag.Insert",
			"invalid sequence number for actor", nil)
	}
	return nil
}

func (h *History) missingDeps(c *change.Change) []change.Hash {
	var missing []change.Hash
	for _, d := range c.Deps {
		if !h.Has(d) {
			missing = append(missing, d)
		}
	}
	return missing
}

func (h *History) park(c *change.Change, hash change.Hash, missing []change.Hash) {
	h.parked[hash] = c
	for _, d := range missing {
		if h.pending[d] == nil {
			h.pending[d] = make(map[change.Hash]bool)
		}
		h.pending[d][hash] = true
	}
}

// apply absorbs c into the History: runs the Applier (if any), records it
// by hash and by actor, and updates heads.
func (h *History) apply(c *change.Change, hash change.Hash) error {
	if err := h.validateSeq(c); err != nil {
		return err
	}
	if h.applier != nil {
		if err := h.applier.Apply(c); err != nil {
			return err
		}
	}

	h.changes[hash] = c
	h.actors[c.Actor] = append(h.actors[c.Actor], hash)

	for _, d := range c.Deps {
		delete(h.heads, d)
	}
	h.heads[hash] = true

	h.reactivate(hash)
	return nil
}

// reactivate promotes any parked changes whose dep sets are now satisfied
// by the arrival of hash. Promotion can cascade.
func (h *History) reactivate(hash change.Hash) {
	waiting := h.pending[hash]
	delete(h.pending, hash)
	if len(waiting) == 0 {
		return
	}

	// Stable order so cascading applies are deterministic across replicas
	// that received the same set of changes in different wire orders.
	candidates := make([]change.Hash, 0, len(waiting))
	for w := range waiting {
		candidates = append(candidates, w)
	}
	change.SortHashes(candidates)

	for _, w := range candidates {
		c, ok := h.parked[w]
		if !ok {
			continue // already promoted via a different cascade branch
		}
		if len(h.missingDeps(c)) > 0 {
			continue // still waiting on something else
		}
		delete(h.parked, w)
		// c's deps are all satisfied now, so apply can only fail on
		// validateSeq or the Applier's own validation, not on missing deps.
		// Drop it rather than re-park it (nothing will ever mark it ready
		// again): a caller can still retry by re-inserting the same bytes,
		// which will fail identically, since its deps remain satisfied.
		if err := h.apply(c, w); err != nil {
			h.log.Warnw("dropping parked change that failed to apply once deps arrived",
				"hash", w.String(), "error", err)
		}
	}
}

// ancestorClosure returns the set of hashes reachable from roots by
// following deps, roots included. Used by GetChanges to exclude everything
// haveDeps already implies, not just the literal haveDeps hashes themselves.
func (h *History) ancestorClosure(roots []change.Hash) map[change.Hash]bool {
	closure := make(map[change.Hash]bool, len(roots))
	queue := append([]change.Hash(nil), roots...)
	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]
		if closure[hash] {
			continue
		}
		closure[hash] = true
		c, ok := h.changes[hash]
		if !ok {
			continue
		}
		queue = append(queue, c.Deps...)
	}
	return closure
}

// GetChanges returns all applied changes not reachable from haveDeps: the
// heads-reachable complement of haveDeps' full ancestor closure (spec §4.1).
// A literal-hash stop set is not enough — in a diamond DAG a change can be
// an ancestor of haveDeps via a different path than the one the BFS happens
// to walk first, and must still be excluded.
func (h *History) GetChanges(haveDeps []change.Hash) []*change.Change {
	have := h.ancestorClosure(haveDeps)

	visited := make(map[change.Hash]bool)
	var out []*change.Change

	var queue []change.Hash
	for hd := range h.heads {
		queue = append(queue, hd)
	}

	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]
		if visited[hash] || have[hash] {
			continue
		}
		visited[hash] = true
		c, ok := h.changes[hash]
		if !ok {
			continue
		}
		out = append(out, c)
		queue = append(queue, c.Deps...)
	}

	sort.Slice(out, func(i, j int) bool {
		hi, hj := out[i].Hash(), out[j].Hash()
		return hi.Less(hj)
	})
	return out
}

// GetMissingDeps returns the union of unsatisfied dep hashes among parked
// changes, plus any hash in extraHeads not known locally (spec §4.1).
func (h *History) GetMissingDeps(extraHeads []change.Hash) []change.Hash {
	set := make(map[change.Hash]bool)
	for d := range h.pending {
		if !h.Has(d) {
			set[d] = true
		}
	}
	for _, eh := range extraHeads {
		if !h.Has(eh) {
			set[eh] = true
		}
	}
	out := make([]change.Hash, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	change.SortHashes(out)
	return out
}

// IsAncestor reports whether a is reachable from b by following deps,
// inclusive of a == b. Used by the sync protocol's sharedHeads update
// (spec §4.3) and grounded on the teacher's graft/ancestor tracking in
// vsync/initiator.go.
func (h *History) IsAncestor(a, b change.Hash) bool {
	if a == b {
		return true
	}
	visited := make(map[change.Hash]bool)
	queue := []change.Hash{b}
	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]
		if hash == a {
			return true
		}
		if visited[hash] {
			continue
		}
		visited[hash] = true
		c, ok := h.changes[hash]
		if !ok {
			continue
		}
		queue = append(queue, c.Deps...)
	}
	return false
}

// CommonAncestors returns the greatest common ancestor set of two head
// sets: the subset of as that is reachable from every hash in bs, by
// running IsAncestor pairwise. Used to update sharedHeads (spec §4.3).
func (h *History) CommonAncestors(as, bs []change.Hash) []change.Hash {
	var out []change.Hash
	for _, a := range as {
		coveredByAll := true
		for _, b := range bs {
			if !h.IsAncestor(a, b) {
				coveredByAll = false
				break
			}
		}
		if coveredByAll {
			out = append(out, a)
		}
	}
	change.SortHashes(out)
	return out
}

// Merge inserts every change of other into h, the "combining two documents'
// histories" operation named but not wired in by the data model (spec §7).
// Before inserting anything it checks that the two histories agree on every
// change they both claim for a given (actor, seq): if one side's change at
// a seq differs from the other's, the actor id was reused across two
// independently-seeded replicas rather than one real actor forking its own
// history, and merging would silently interleave unrelated changes under a
// shared identity. That case is rejected wholesale as ActorCollision rather
// than partially merged.
func (h *History) Merge(other *History) error {
	for actor, theirs := range other.actors {
		mine := h.actors[actor]
		n := len(theirs)
		if len(mine) < n {
			n = len(mine)
		}
		for i := 0; i < n; i++ {
			if theirs[i] != mine[i] {
				return verr.New(verr.ActorCollision, "dag.Merge",
					"actor "+string(actor)+" has diverging history: the two histories being merged disagree on its changes", nil)
			}
		}
	}

	for _, c := range other.GetChanges(nil) {
		if err := h.Insert(c); err != nil {
			return err
		}
	}
	return nil
}
