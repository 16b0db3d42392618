package opset

import "github.com/HerbCaudill/automerge/op"

// Patch describes the delta from the document state before a batch of ops
// to after it (spec §4.2). Objects holds every composite object touched by
// the batch, keyed by its OpId; RootDiff assembles the nested tree view
// rooted at the document root.
type Patch struct {
	Objects map[op.OpId]*ObjectDiff
}

func newPatch() *Patch {
	return &Patch{Objects: make(map[op.OpId]*ObjectDiff)}
}

func (p *Patch) objDiff(id op.OpId, kind op.Action) *ObjectDiff {
	d, ok := p.Objects[id]
	if !ok {
		d = &ObjectDiff{ObjID: id, Kind: kind, Map: make(map[string]map[op.OpId]*ValueDiff)}
		p.Objects[id] = d
	}
	return d
}

// ObjectDiff is the diff for one composite object: either a MapDiff-style
// per-key conflict-set snapshot (map/table) or an ordered list of Edits
// (list/text).
type ObjectDiff struct {
	ObjID op.OpId
	Kind  op.Action

	// Map holds, for every key whose active assignment set changed, the
	// full conflict set after the change: opId -> nested diff. Deletes
	// still emit an entry with an empty map so observers can drop their
	// local view, per spec §4.2 "Conflicts".
	Map map[string]map[op.OpId]*ValueDiff

	// Edits carries list/text edits in the order they must be applied to
	// rebuild the post-edit list, referring to positions in the
	// *post-edit* list (spec §4.2 "Patch construction").
	Edits []ListEdit
}

// ValueDiff is either a primitive value or a reference to a nested object's
// own diff, forming the recursive patch tree.
type ValueDiff struct {
	Value  op.Value
	IsObj  bool
	Object *ObjectDiff // non-nil when IsObj
}

// ListEditKind enumerates the edit operations a list/text patch carries.
type ListEditKind int

const (
	EditInsert ListEditKind = iota
	EditMultiInsert
	EditUpdate
	EditRemove
)

func (k ListEditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditMultiInsert:
		return "multi-insert"
	case EditUpdate:
		return "update"
	case EditRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ListEdit is one entry of an ObjectDiff.Edits list.
type ListEdit struct {
	Kind   ListEditKind
	Index  int
	ElemID op.OpId // Insert, Update
	Value  ValueDiff

	// MultiInsert: BaseElemID is the elemId of the first inserted element;
	// subsequent elements' ids are BaseElemID.Counter+i for the same actor.
	BaseElemID op.OpId
	Values     []op.Value

	// Remove
	Count int
}

// RootDiff assembles the nested patch tree starting at the document root,
// by walking Objects and, for every assignment in a map/table key's
// conflict set that references a touched child object, nesting that
// child's ObjectDiff under the ValueDiff. Returns nil if the root itself was not touched by this
// patch's batch.
func (p *Patch) RootDiff() *ObjectDiff {
	root, ok := p.Objects[op.Root]
	if !ok {
		return nil
	}
	return p.nest(root, make(map[op.OpId]bool))
}

func (p *Patch) nest(d *ObjectDiff, seen map[op.OpId]bool) *ObjectDiff {
	if seen[d.ObjID] {
		return d // defensive; the data model is acyclic (spec §9)
	}
	seen[d.ObjID] = true
	for _, conflicts := range d.Map {
		for _, vd := range conflicts {
			if vd.IsObj && vd.Object != nil {
				if touched, ok := p.Objects[vd.Object.ObjID]; ok {
					vd.Object = p.nest(touched, seen)
				}
			}
		}
	}
	return d
}
