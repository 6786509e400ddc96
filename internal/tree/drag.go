package tree

import "slices"

// ReassembleAfterDrag rebuilds the forest behind a flattened list after the
// user dragged movedID onto the row held by refID. See Forest.Drag.
func ReassembleAfterDrag(flat []Flat, movedID, refID string) (Forest, error) {
	return FromFlat(flat).Drag(movedID, refID)
}

// Drag moves movedID (with its subtree) to the row currently held by refID in
// the flattened list. Dragging onto yourself, or onto a row inside your own
// subtree, leaves the forest unchanged.
//
// Roots move as blocks: they land before the reference root when dragged up
// and after the reference root's whole block when dragged down. A root dropped
// onto a child row lands after that child's root block.
//
// Children are re-parented from the drop point:
//   - dragged up onto a child: become its sibling, directly before it;
//   - dragged up onto a root: look at the row directly above the root. A root
//     there adopts the moved node as its last child; a child there gets the
//     moved node as its next sibling. With nothing above, the node becomes
//     the first root;
//   - dragged down: a root, or a node that shows children, adopts the moved
//     node as its first child; a leaf child gets it as its next sibling.
//
// The asymmetry matters: the row above an upward drop is what the user sees
// the node land under.
func (f Forest) Drag(movedID, refID string) (Forest, error) {
	moved, ok := f.nodes[movedID]
	if !ok {
		return f, notFound(movedID)
	}
	ref, ok := f.nodes[refID]
	if !ok {
		return f, notFound(refID)
	}
	if movedID == refID || f.IsDescendant(refID, movedID) {
		return f, nil
	}

	flat := f.Flatten()
	mi := indexOfFlat(flat, movedID)
	ri := indexOfFlat(flat, refID)
	upward := ri < mi

	res, sub, err := f.Extract(movedID)
	if err != nil {
		return f, err
	}

	if moved.IsRoot() {
		if !ref.IsRoot() {
			refRoot, _ := f.RootOf(refID)
			if refRoot == movedID {
				return f, nil
			}
			return res.InsertAsSiblingBelow(refRoot, sub)
		}
		if upward {
			return res.InsertAt("", slices.Index(res.children[""], refID), sub)
		}
		return res.InsertAsSiblingBelow(refID, sub)
	}

	if upward {
		if !ref.IsRoot() {
			return res.InsertAt(ref.ParentID, slices.Index(res.children[ref.ParentID], refID), sub)
		}
		if ri == 0 {
			return res.InsertAt("", 0, sub)
		}
		above := flat[ri-1].Node
		if above.IsRoot() {
			return res.InsertAsChild(above.ID, sub, Append)
		}
		return res.InsertAsSiblingBelow(above.ID, sub)
	}

	if ref.IsRoot() || len(res.children[refID]) > 0 {
		return res.InsertAsChild(refID, sub, Prepend)
	}
	return res.InsertAsSiblingBelow(refID, sub)
}
