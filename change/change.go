package change

import "github.com/HerbCaudill/automerge/op"

// Change is a signed, hash-identified batch of ops with explicit dependency
// hashes (spec §3). Its hash is computed from its canonical encoding, not
// stored as a field, so that two Changes built with identical content but
// different provenance always collide into the same identity.
type Change struct {
	Actor   op.ActorId
	Seq     uint64 // per-actor, 1..∞, gap-free
	StartOp uint64 // counter of the first op this change claims
	Time    int64  // milliseconds since epoch
	Message string
	Deps    []Hash
	Ops     []op.Operation
}

// NumOps returns the number of op-ids this change claims, accounting for
// multiOp runs (spec §9).
func (c *Change) NumOps() uint64 { return op.TotalCounters(c.Ops) }

// EndOp returns one past the last counter this change claims.
func (c *Change) EndOp() uint64 { return c.StartOp + c.NumOps() }

// ExpandedOps resolves c's compact op list into individually-addressed
// ExpandedOps, each carrying its own OpId.
func (c *Change) ExpandedOps() []op.ExpandedOp {
	return op.ExpandOps(c.StartOp, c.Actor, c.Ops)
}

// Hash computes the SHA-256 digest of c's canonical encoding (spec §6).
// Deps are sorted byte-lexicographically before hashing, per spec.
func (c *Change) Hash() Hash { return HashOf(EncodeChunk(c)) }

// sortedDeps returns a sorted copy of c.Deps, never mutating c.
func (c *Change) sortedDeps() []Hash {
	deps := make([]Hash, len(c.Deps))
	copy(deps, c.Deps)
	SortHashes(deps)
	return deps
}
