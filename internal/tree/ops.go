package tree

import (
	"slices"
	"strings"
)

type Placement int

const (
	Append Placement = iota
	Prepend
)

// Leaf returns a single-node forest, ready to be inserted somewhere.
func Leaf(n Node) Forest {
	f := newForest(1)
	n.ID = strings.TrimSpace(n.ID)
	n.ParentID = ""
	f.nodes[n.ID] = n
	f.children[""] = []string{n.ID}
	return f
}

// Extract removes id and its whole subtree. The residual forest and the
// extracted subtree (whose root has its parent cleared) are returned.
func (f Forest) Extract(id string) (Forest, Forest, error) {
	n, ok := f.nodes[id]
	if !ok {
		return f, Forest{}, notFound(id)
	}
	ids := f.Descendants(id)
	res := f.clone()
	sub := newForest(len(ids))
	for _, x := range ids {
		node := res.nodes[x]
		delete(res.nodes, x)
		if x == id {
			node.ParentID = ""
		}
		sub.nodes[x] = node
		if ch, ok := res.children[x]; ok {
			sub.children[x] = ch
			delete(res.children, x)
		}
	}
	sub.children[""] = []string{id}

	siblings := slices.DeleteFunc(slices.Clone(res.children[n.ParentID]), func(x string) bool { return x == id })
	if len(siblings) == 0 && n.ParentID != "" {
		delete(res.children, n.ParentID)
	} else {
		res.children[n.ParentID] = siblings
	}
	return res, sub, nil
}

// Remove drops id and its subtree.
func (f Forest) Remove(id string) (Forest, error) {
	res, _, err := f.Extract(id)
	return res, err
}

// InsertAsSiblingBelow places sub directly after targetID, under the same
// parent (or in the root list when the target is a root).
func (f Forest) InsertAsSiblingBelow(targetID string, sub Forest) (Forest, error) {
	target, ok := f.nodes[targetID]
	if !ok {
		return f, notFound(targetID)
	}
	idx := slices.Index(f.children[target.ParentID], targetID)
	return f.InsertAt(target.ParentID, idx+1, sub)
}

// InsertAsChild places sub at the front or the back of targetID's children.
func (f Forest) InsertAsChild(targetID string, sub Forest, at Placement) (Forest, error) {
	if _, ok := f.nodes[targetID]; !ok {
		return f, notFound(targetID)
	}
	idx := len(f.children[targetID])
	if at == Prepend {
		idx = 0
	}
	return f.InsertAt(targetID, idx, sub)
}

// AppendRoot adds sub at the end of the root list.
func (f Forest) AppendRoot(sub Forest) Forest {
	out, _ := f.InsertAt("", len(f.children[""]), sub)
	return out
}

// InsertAt splices the roots of sub into parentID's children at index.
// parentID "" addresses the root list; index is clamped.
func (f Forest) InsertAt(parentID string, index int, sub Forest) (Forest, error) {
	if parentID != "" {
		if _, ok := f.nodes[parentID]; !ok {
			return f, notFound(parentID)
		}
		if sub.Has(parentID) {
			return f, CycleError{ID: firstRoot(sub), TargetID: parentID}
		}
	}
	for id := range sub.nodes {
		if f.Has(id) {
			return f, DuplicateError{ID: id}
		}
	}
	roots := sub.children[""]
	if len(roots) == 0 {
		return f, nil
	}

	out := f.clone()
	for id, n := range sub.nodes {
		out.nodes[id] = n
	}
	for pid, ch := range sub.children {
		if pid == "" {
			continue
		}
		out.children[pid] = ch
	}
	for _, id := range roots {
		n := out.nodes[id]
		n.ParentID = parentID
		out.nodes[id] = n
	}
	siblings := out.children[parentID]
	index = max(0, min(index, len(siblings)))
	out.children[parentID] = slices.Insert(slices.Clone(siblings), index, roots...)
	return out, nil
}

// Update rewrites the payload fields of a node. Identity and parent links are
// preserved whatever fn returns.
func (f Forest) Update(id string, fn func(Node) Node) (Forest, error) {
	n, ok := f.nodes[id]
	if !ok {
		return f, notFound(id)
	}
	next := fn(n)
	next.ID = n.ID
	next.ParentID = n.ParentID
	if next == n {
		return f, nil
	}
	out := f.clone()
	out.nodes[id] = next
	return out, nil
}

// ApplyPositions assigns sort positions to the listed ids (unknown ids are
// ignored) and re-sorts every sibling list by position. Ties keep their
// current relative order.
func (f Forest) ApplyPositions(positions map[string]int) Forest {
	if len(positions) == 0 {
		return f
	}
	out := f.clone()
	for id, pos := range positions {
		n, ok := out.nodes[id]
		if !ok {
			continue
		}
		n.Position = pos
		out.nodes[id] = n
	}
	for pid, ids := range out.children {
		sorted := slices.Clone(ids)
		slices.SortStableFunc(sorted, func(a, b string) int {
			return out.nodes[a].Position - out.nodes[b].Position
		})
		out.children[pid] = sorted
	}
	return out
}

// Remap returns a copy of the forest with every id rewritten by fn. Order,
// nesting and payloads are preserved.
func (f Forest) Remap(fn func(old string) string) Forest {
	out := newForest(len(f.nodes))
	ids := make(map[string]string, len(f.nodes))
	for id := range f.nodes {
		ids[id] = fn(id)
	}
	ids[""] = ""
	for id, n := range f.nodes {
		n.ID = ids[id]
		n.ParentID = ids[n.ParentID]
		out.nodes[n.ID] = n
	}
	for pid, ch := range f.children {
		mapped := make([]string, 0, len(ch))
		for _, id := range ch {
			mapped = append(mapped, ids[id])
		}
		out.children[ids[pid]] = mapped
	}
	return out
}

// Map applies fn to every node payload; identity and links are preserved.
func (f Forest) Map(fn func(Node) Node) Forest {
	out := f.clone()
	for id, n := range f.nodes {
		next := fn(n)
		next.ID = n.ID
		next.ParentID = n.ParentID
		out.nodes[id] = next
	}
	return out
}

func firstRoot(f Forest) string {
	if roots := f.children[""]; len(roots) > 0 {
		return roots[0]
	}
	return ""
}
