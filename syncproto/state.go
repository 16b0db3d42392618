// Package syncproto implements the two-party delta-exchange protocol from
// spec §4.3: a per-peer SyncState state machine that generates and consumes
// Bloom-filter-based sync Messages, converging two replicas' causal
// histories in O(depth-of-divergence) round-trips.
package syncproto

import (
	"sort"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/dag"

	"go.uber.org/zap"
)

// SyncState is the per-peer state spec §4.3 describes: sharedHeads,
// theirHeads, theirNeed, theirHave, sentHashes.
type SyncState struct {
	sharedHeads []change.Hash
	theirHeads  []change.Hash
	theirNeed   []change.Hash
	theirHave   []Have
	sentHashes  map[change.Hash]bool

	log *zap.SugaredLogger
}

// NewSyncState creates an empty per-peer state, as if nothing has been
// exchanged with this peer yet.
func NewSyncState(log *zap.SugaredLogger) *SyncState {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SyncState{sentHashes: make(map[change.Hash]bool), log: log}
}

// hashSetEqual reports whether two hash slices name the same set.
func hashSetEqual(a, b []change.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]change.Hash(nil), a...)
	sb := append([]change.Hash(nil), b...)
	change.SortHashes(sa)
	change.SortHashes(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// GenerateMessage builds the next outbound Message for h's current state
// against this peer, per spec §4.3's 5-step algorithm. ok is false when
// there is nothing new to say (our heads already equal sharedHeads).
func (s *SyncState) GenerateMessage(h *dag.History) (msg *Message, ok bool) {
	heads := h.Heads()
	if hashSetEqual(heads, s.sharedHeads) {
		return nil, false
	}

	all := h.GetChanges(nil)
	filter := NewBloom(len(all), DefaultFPR)
	for _, c := range all {
		filter.Add(c.Hash())
	}
	have := Have{Anchors: heads, Filter: filter}

	need := h.GetMissingDeps(s.theirHeads)

	theirNeed := make(map[change.Hash]bool, len(s.theirNeed))
	for _, n := range s.theirNeed {
		theirNeed[n] = true
	}

	var changes []*change.Change
	for _, c := range all {
		hash := c.Hash()
		if s.sentHashes[hash] {
			continue
		}
		wanted := theirNeed[hash]
		if !wanted {
			wanted = !s.probablyTheirs(hash)
		}
		if wanted {
			changes = append(changes, c)
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Hash().Less(changes[j].Hash()) })
	for _, c := range changes {
		s.sentHashes[c.Hash()] = true
	}

	return &Message{Heads: heads, Need: need, Have: []Have{have}, Changes: changes}, true
}

// probablyTheirs tests hash against every filter we've been sent by this
// peer; true means at least one filter claims membership (spec §4.3 step 4
// "not probably-in their Bloom").
func (s *SyncState) probablyTheirs(hash change.Hash) bool {
	for _, have := range s.theirHave {
		if have.Filter.MayContain(hash) {
			return true
		}
	}
	return false
}

// ReceiveMessage records msg's heads/have/need, applies its changes to h
// (parking any whose deps are still missing), and updates sharedHeads when
// msg.Heads acknowledges our own current heads.
func (s *SyncState) ReceiveMessage(h *dag.History, msg *Message) error {
	ourHeadsBefore := h.Heads()

	for _, c := range msg.Changes {
		if err := h.Insert(c); err != nil {
			return err
		}
	}

	s.theirHeads = msg.Heads
	s.theirHave = msg.Have
	s.theirNeed = msg.Need

	if hashSetEqual(msg.Heads, ourHeadsBefore) {
		s.sharedHeads = h.CommonAncestors(h.Heads(), msg.Heads)
	}
	return nil
}

// IsConverged reports whether this peer's last-known heads equal h's
// current heads and sharedHeads is fully caught up — the termination
// condition of spec §4.3.
func (s *SyncState) IsConverged(h *dag.History) bool {
	return hashSetEqual(s.theirHeads, h.Heads()) && hashSetEqual(s.sharedHeads, h.Heads())
}
