package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
)

// fourByThree builds "Item 1..4", each with "Child p-1..3".
func fourByThree() Forest {
	var tasks []Task
	for p := 1; p <= 4; p++ {
		parent := Task{ID: fmt.Sprintf("item-%d", p), Title: fmt.Sprintf("Item %d", p), Position: p}
		for c := 1; c <= 3; c++ {
			parent.Children = append(parent.Children, Task{
				ID:       fmt.Sprintf("child-%d-%d", p, c),
				Title:    fmt.Sprintf("Child %d-%d", p, c),
				Position: c,
			})
		}
		tasks = append(tasks, parent)
	}
	return Build(tasks)
}

func flatIDs(f Forest) []string {
	var out []string
	for _, e := range f.Flatten() {
		out = append(out, e.Node.ID)
	}
	return out
}

func TestBuild_SetsParentsFromNesting(t *testing.T) {
	f := fourByThree()
	if f.Len() != 16 {
		t.Fatalf("expected 16 nodes, got %d", f.Len())
	}
	n, ok := f.Node("child-2-3")
	if !ok || n.ParentID != "item-2" {
		t.Fatalf("unexpected node: %#v", n)
	}
	if got := f.Roots(); !slices.Equal(got, []string{"item-1", "item-2", "item-3", "item-4"}) {
		t.Fatalf("unexpected roots: %v", got)
	}
}

func TestFlatten_DepthAndOrder(t *testing.T) {
	f := Build([]Task{
		{ID: "a", Children: []Task{{ID: "b", Children: []Task{{ID: "c"}}}}},
		{ID: "d"},
	})
	flat := f.Flatten()
	want := []struct {
		id    string
		depth int
	}{{"a", 0}, {"b", 1}, {"c", 2}, {"d", 0}}
	if len(flat) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(flat))
	}
	for i, w := range want {
		if flat[i].Node.ID != w.id || flat[i].Depth != w.depth {
			t.Fatalf("row %d: got %s@%d want %s@%d", i, flat[i].Node.ID, flat[i].Depth, w.id, w.depth)
		}
	}
	// Restartable: a second walk yields the same rows.
	if !slices.Equal(flat, f.Flatten()) {
		t.Fatalf("flatten is not repeatable")
	}
}

func TestFromNodes_SortsByPositionAndPromotesOrphans(t *testing.T) {
	f := FromNodes([]Node{
		{ID: "b", Position: 2},
		{ID: "a", Position: 1},
		{ID: "a2", ParentID: "a", Position: 5},
		{ID: "a1", ParentID: "a", Position: 1},
		{ID: "orphan", ParentID: "gone", Position: 3},
	})
	if got := flatIDs(f); !slices.Equal(got, []string{"a", "a1", "a2", "b", "orphan"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	n, _ := f.Node("orphan")
	if !n.IsRoot() {
		t.Fatalf("expected orphan promoted to root: %#v", n)
	}
}

func TestFromNodes_BreaksCycles(t *testing.T) {
	f := FromNodes([]Node{
		{ID: "x", ParentID: "y"},
		{ID: "y", ParentID: "x"},
		{ID: "root"},
	})
	if f.Len() != 3 || len(f.Flatten()) != 3 {
		t.Fatalf("expected every node reachable, got %v", flatIDs(f))
	}
}

func TestExtract_RemovesWholeSubtree(t *testing.T) {
	f := fourByThree()
	res, sub, err := f.Extract("item-2")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Len() != 12 || sub.Len() != 4 {
		t.Fatalf("unexpected sizes: residual=%d sub=%d", res.Len(), sub.Len())
	}
	if res.Has("child-2-1") {
		t.Fatalf("child of extracted node left behind")
	}
	root, _ := sub.Node("item-2")
	if !root.IsRoot() {
		t.Fatalf("extracted root should have no parent: %#v", root)
	}
	// The receiver is untouched.
	if f.Len() != 16 || !f.Has("child-2-1") {
		t.Fatalf("extract mutated the source forest")
	}
}

func TestExtract_MissingIsNotFound(t *testing.T) {
	f := fourByThree()
	_, _, err := f.Extract("nope")
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.ID != "nope" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestExtractThenInsertBelowPredecessor_RestoresShape(t *testing.T) {
	f := fourByThree()
	cases := []struct{ id, pred string }{
		{"child-1-2", "child-1-1"},
		{"item-3", "item-2"},
		{"child-4-3", "child-4-2"},
	}
	for _, c := range cases {
		res, sub, err := f.Extract(c.id)
		if err != nil {
			t.Fatalf("extract %s: %v", c.id, err)
		}
		back, err := res.InsertAsSiblingBelow(c.pred, sub)
		if err != nil {
			t.Fatalf("insert %s: %v", c.id, err)
		}
		if !back.Equal(f) {
			t.Fatalf("%s: got %v want %v", c.id, flatIDs(back), flatIDs(f))
		}
	}
}

func TestInsertAsChild_PrependAndAppend(t *testing.T) {
	f := fourByThree()
	f, err := f.InsertAsChild("item-1", Leaf(Node{ID: "first"}), Prepend)
	if err != nil {
		t.Fatalf("prepend: %v", err)
	}
	f, err = f.InsertAsChild("item-1", Leaf(Node{ID: "last"}), Append)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got := f.Children("item-1")
	want := []string{"first", "child-1-1", "child-1-2", "child-1-3", "last"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	n, _ := f.Node("last")
	if n.ParentID != "item-1" {
		t.Fatalf("expected parent item-1, got %#v", n)
	}
}

func TestInsertAsSiblingBelow_RootClearsParent(t *testing.T) {
	f := fourByThree()
	_, sub, _ := f.Extract("child-1-1")
	f, _ = f.Remove("child-1-1")
	f, err := f.InsertAsSiblingBelow("item-1", sub)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	n, _ := f.Node("child-1-1")
	if !n.IsRoot() {
		t.Fatalf("expected root, got %#v", n)
	}
	if got := f.Roots(); !slices.Equal(got[:2], []string{"item-1", "child-1-1"}) {
		t.Fatalf("unexpected roots: %v", got)
	}
}

func TestInsertAt_RejectsDuplicatesAndCycles(t *testing.T) {
	f := fourByThree()
	if _, err := f.InsertAsChild("item-1", Leaf(Node{ID: "child-2-1"}), Append); !errors.As(err, new(DuplicateError)) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	_, sub, _ := f.Extract("item-1")
	if _, err := sub.InsertAsChild("child-1-1", sub, Append); err == nil {
		t.Fatalf("expected an error when inserting a subtree under itself")
	}
	if _, err := f.InsertAsChild("missing", Leaf(Node{ID: "z"}), Append); !errors.As(err, new(NotFoundError)) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestApplyPositions_ResortsEveryLevel(t *testing.T) {
	f := fourByThree()
	f = f.ApplyPositions(map[string]int{
		"item-4":    -1,
		"child-1-3": 0,
		"unknown":   7,
	})
	if got := f.Roots(); got[0] != "item-4" {
		t.Fatalf("unexpected roots: %v", got)
	}
	if got := f.Children("item-1"); !slices.Equal(got, []string{"child-1-3", "child-1-1", "child-1-2"}) {
		t.Fatalf("unexpected children: %v", got)
	}
}

func TestRemap_PreservesShape(t *testing.T) {
	f := fourByThree()
	g := f.Remap(func(old string) string { return "new-" + old })
	if g.Len() != f.Len() {
		t.Fatalf("size changed")
	}
	n, ok := g.Node("new-child-3-2")
	if !ok || n.ParentID != "new-item-3" {
		t.Fatalf("unexpected remapped node: %#v", n)
	}
	if g.Has("item-1") {
		t.Fatalf("old id survived remap")
	}
}

func TestForest_JSONRoundTripKeepsNesting(t *testing.T) {
	f := fourByThree()
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var g Forest
	if err := json.Unmarshal(b, &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !g.Equal(f) {
		t.Fatalf("round trip changed forest: %v", flatIDs(g))
	}
}

func TestUpdate_KeepsLinks(t *testing.T) {
	f := fourByThree()
	g, err := f.Update("child-1-1", func(n Node) Node {
		n.Title = "Renamed"
		n.ParentID = "item-4"
		return n
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	n, _ := g.Node("child-1-1")
	if n.Title != "Renamed" || n.ParentID != "item-1" {
		t.Fatalf("unexpected node: %#v", n)
	}
	old, _ := f.Node("child-1-1")
	if old.Title != "Child 1-1" {
		t.Fatalf("update leaked into source forest")
	}
}
