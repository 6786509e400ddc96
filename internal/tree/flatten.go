package tree

// Flat is one row of a flattened forest.
type Flat struct {
	Node  Node
	Depth int
}

// Flatten walks the forest in pre-order. Roots have depth 0. Each call builds
// a fresh slice, so the result can be reordered by a list UI without touching
// the forest.
func (f Forest) Flatten() []Flat {
	out := make([]Flat, 0, len(f.nodes))
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		out = append(out, Flat{Node: f.nodes[id], Depth: depth})
		for _, ch := range f.children[id] {
			walk(ch, depth+1)
		}
	}
	for _, id := range f.children[""] {
		walk(id, 0)
	}
	return out
}

// FlatPositions numbers every node by its pre-order index.
func (f Forest) FlatPositions() map[string]int {
	out := make(map[string]int, len(f.nodes))
	for i, e := range f.Flatten() {
		out[e.Node.ID] = i
	}
	return out
}

func indexOfFlat(flat []Flat, id string) int {
	for i := range flat {
		if flat[i].Node.ID == id {
			return i
		}
	}
	return -1
}
