package tree

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// Node is a single task or checkbox.
type Node struct {
	ID       string
	ParentID string // "" for roots
	Title    string
	Position int
	Checked  bool
}

// IsRoot reports whether the node sits in the root list.
func (n Node) IsRoot() bool { return strings.TrimSpace(n.ParentID) == "" }

type Forest struct {
	nodes    map[string]Node
	children map[string][]string
}

// Task is the nested projection of a forest used on the wire and in storage.
type Task struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parentId,omitempty"`
	Title    string  `json:"title"`
	Position int     `json:"sortPosition"`
	Checked  bool    `json:"checked,omitempty"`
	Children []Task  `json:"children,omitempty"`
}

func newForest(sizeHint int) Forest {
	return Forest{
		nodes:    make(map[string]Node, sizeHint),
		children: make(map[string][]string, sizeHint/2+1),
	}
}

func (f Forest) clone() Forest {
	out := newForest(len(f.nodes) + 1)
	maps.Copy(out.nodes, f.nodes)
	maps.Copy(out.children, f.children)
	return out
}

// Build assembles a forest from nested tasks. Parent ids are taken from the
// nesting, not from Task.ParentID. Duplicate ids keep their first occurrence.
func Build(tasks []Task) Forest {
	f := newForest(len(tasks))
	var walk func(ts []Task, parentID string)
	walk = func(ts []Task, parentID string) {
		for _, t := range ts {
			id := strings.TrimSpace(t.ID)
			if id == "" {
				continue
			}
			if _, dup := f.nodes[id]; dup {
				continue
			}
			f.nodes[id] = Node{ID: id, ParentID: parentID, Title: t.Title, Position: t.Position, Checked: t.Checked}
			f.children[parentID] = append(f.children[parentID], id)
			walk(t.Children, id)
		}
	}
	walk(tasks, "")
	return f
}

// FromNodes assembles a forest from flat rows that reference their parent by
// id. Siblings are ordered by Position, then ID. Rows whose parent is missing
// are promoted to roots, and so are rows caught in a parent cycle.
func FromNodes(rows []Node) Forest {
	f := newForest(len(rows))
	for _, n := range rows {
		n.ID = strings.TrimSpace(n.ID)
		n.ParentID = strings.TrimSpace(n.ParentID)
		if n.ID == "" {
			continue
		}
		if _, dup := f.nodes[n.ID]; dup {
			continue
		}
		f.nodes[n.ID] = n
	}
	byParent := map[string][]string{}
	for _, n := range f.nodes {
		pid := n.ParentID
		if pid != "" {
			if _, ok := f.nodes[pid]; !ok || pid == n.ID {
				pid = ""
			}
		}
		if pid != n.ParentID {
			n.ParentID = pid
			f.nodes[n.ID] = n
		}
		byParent[pid] = append(byParent[pid], n.ID)
	}
	for pid, ids := range byParent {
		f.sortSiblings(ids)
		f.children[pid] = ids
	}

	// Anything not reachable from the root list is part of a cycle.
	seen := map[string]bool{}
	var mark func(id string)
	mark = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, ch := range f.children[id] {
			mark(ch)
		}
	}
	for _, id := range f.children[""] {
		mark(id)
	}
	if len(seen) == len(f.nodes) {
		return f
	}
	var stray []string
	for id := range f.nodes {
		if !seen[id] {
			stray = append(stray, id)
		}
	}
	slices.Sort(stray)
	for _, id := range stray {
		if seen[id] {
			continue
		}
		n := f.nodes[id]
		f.children[n.ParentID] = slices.DeleteFunc(slices.Clone(f.children[n.ParentID]), func(x string) bool { return x == id })
		n.ParentID = ""
		f.nodes[id] = n
		f.children[""] = append(f.children[""], id)
		mark(id)
	}
	f.sortSiblings(f.children[""])
	return f
}

// FromFlat rebuilds a forest from a pre-order flattened list. Order comes from
// the list itself; parent links come from each entry's node.
func FromFlat(flat []Flat) Forest {
	f := newForest(len(flat))
	for _, e := range flat {
		n := e.Node
		if _, dup := f.nodes[n.ID]; dup || strings.TrimSpace(n.ID) == "" {
			continue
		}
		if n.ParentID != "" {
			if _, ok := f.nodes[n.ParentID]; !ok {
				n.ParentID = ""
			}
		}
		f.nodes[n.ID] = n
		f.children[n.ParentID] = append(f.children[n.ParentID], n.ID)
	}
	return f
}

func (f Forest) sortSiblings(ids []string) {
	slices.SortStableFunc(ids, func(a, b string) int {
		pa, pb := f.nodes[a].Position, f.nodes[b].Position
		if pa != pb {
			return pa - pb
		}
		return strings.Compare(a, b)
	})
}

func (f Forest) Len() int { return len(f.nodes) }

func (f Forest) Has(id string) bool {
	_, ok := f.nodes[id]
	return ok
}

func (f Forest) Node(id string) (Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

func (f Forest) Roots() []string { return slices.Clone(f.children[""]) }

func (f Forest) Children(id string) []string {
	if id == "" {
		return nil
	}
	return slices.Clone(f.children[id])
}

// RootOf walks parent links up to the root that owns id.
func (f Forest) RootOf(id string) (string, bool) {
	n, ok := f.nodes[id]
	if !ok {
		return "", false
	}
	for n.ParentID != "" {
		n = f.nodes[n.ParentID]
	}
	return n.ID, true
}

// Descendants returns id and everything below it, in pre-order.
func (f Forest) Descendants(id string) []string {
	if !f.Has(id) {
		return nil
	}
	var out []string
	var walk func(x string)
	walk = func(x string) {
		out = append(out, x)
		for _, ch := range f.children[x] {
			walk(ch)
		}
	}
	walk(id)
	return out
}

// IsDescendant reports whether id sits strictly below ancestorID.
func (f Forest) IsDescendant(id, ancestorID string) bool {
	n, ok := f.nodes[id]
	if !ok {
		return false
	}
	for n.ParentID != "" {
		if n.ParentID == ancestorID {
			return true
		}
		n = f.nodes[n.ParentID]
	}
	return false
}

// Tasks projects the forest back into nested tasks.
func (f Forest) Tasks() []Task {
	var build func(ids []string) []Task
	build = func(ids []string) []Task {
		if len(ids) == 0 {
			return nil
		}
		out := make([]Task, 0, len(ids))
		for _, id := range ids {
			n := f.nodes[id]
			t := Task{ID: n.ID, Title: n.Title, Position: n.Position, Checked: n.Checked}
			if n.ParentID != "" {
				pid := n.ParentID
				t.ParentID = &pid
			}
			t.Children = build(f.children[id])
			out = append(out, t)
		}
		return out
	}
	out := build(f.children[""])
	if out == nil {
		out = []Task{}
	}
	return out
}

// Nodes returns every node in pre-order.
func (f Forest) Nodes() []Node {
	flat := f.Flatten()
	out := make([]Node, 0, len(flat))
	for _, e := range flat {
		out = append(out, e.Node)
	}
	return out
}

// Equal compares structure, order and node fields.
func (f Forest) Equal(other Forest) bool {
	if f.Len() != other.Len() {
		return false
	}
	return slices.Equal(f.Flatten(), other.Flatten())
}

func (f Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Tasks())
}

func (f *Forest) UnmarshalJSON(b []byte) error {
	var tasks []Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return err
	}
	*f = Build(tasks)
	return nil
}
