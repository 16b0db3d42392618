package op

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ActorId is an opaque identifier unique per replica. Ordering between
// actors is the byte-lexicographic order of their rendered string form.
type ActorId string

// RootActor is the actor half of the sentinel OpId 0@0 that names the root
// object, per spec §6; its counter is 0.
const RootActor ActorId = "0"

// OpId is the Lamport-style identifier of a single operation:
// (counter, actor), rendered "<counter>@<actor>".
type OpId struct {
	Counter uint64
	Actor   ActorId
}

// Root is the fixed OpId of the root object.
var Root = OpId{Counter: 0, Actor: RootActor}

func (id OpId) String() string {
	return strconv.FormatUint(id.Counter, 10) + "@" + string(id.Actor)
}

// IsRoot reports whether id names the sentinel root object.
func (id OpId) IsRoot() bool { return id == Root }

// IsNull reports whether id is the zero value, used as a "no predecessor" /
// "insert at head of list" sentinel.
func (id OpId) IsNull() bool { return id.Counter == 0 && id.Actor == "" }

// NewActorId generates a fresh, globally-unique ActorId rendered as a
// lowercase hex UUID, per spec §2's "a fresh one per session is acceptable".
func NewActorId() ActorId {
	return ActorId(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// ParseOpId parses the "<counter>@<actor>" rendering back into an OpId.
func ParseOpId(s string) (OpId, error) {
	i := strings.IndexByte(s, '@')
	if i < 0 {
		return OpId{}, fmt.Errorf("op: invalid OpId %q: missing '@'", s)
	}
	c, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return OpId{}, fmt.Errorf("op: invalid OpId %q: %w", s, err)
	}
	return OpId{Counter: c, Actor: ActorId(s[i+1:])}, nil
}

// Less implements the OpId total order from spec §3: counter ascending,
// ties broken by actor ascending (byte-lexicographic).
func (id OpId) Less(other OpId) bool {
	if id.Counter != other.Counter {
		return id.Counter < other.Counter
	}
	return id.Actor < other.Actor
}

// Greater is the converse of Less, used throughout the OpSet where "highest
// OpId wins" conflict resolution is phrased in terms of a maximum.
func (id OpId) Greater(other OpId) bool { return other.Less(id) }

// MaxOpId returns the greatest of a non-empty slice of OpIds under the
// spec's total order. Panics on an empty slice; callers only call this on
// non-empty active-assignment sets.
func MaxOpId(ids []OpId) OpId {
	if len(ids) == 0 {
		panic("op: MaxOpId called with no ids")
	}
	max := ids[0]
	for _, id := range ids[1:] {
		if max.Less(id) {
			max = id
		}
	}
	return max
}

// SortOpIds sorts ids in place by the spec's total order (counter, then
// actor), used whenever a deterministic rendering of a conflict set or pred
// group is required (e.g. columnar encoding).
func SortOpIds(ids []OpId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
