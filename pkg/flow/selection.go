package flow

import "sort"

// Selection is the set of selected nodes and links in the current model.
type Selection struct {
	nodes map[string]struct{}
	links map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{nodes: map[string]struct{}{}, links: map[string]struct{}{}}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.nodes = map[string]struct{}{}
	s.links = map[string]struct{}{}
}

// AddNodes selects nodes.
func (s *Selection) AddNodes(ids ...string) {
	for _, id := range ids {
		s.nodes[id] = struct{}{}
	}
}

// AddLinks selects links.
func (s *Selection) AddLinks(ids ...string) {
	for _, id := range ids {
		s.links[id] = struct{}{}
	}
}

// ToggleNode flips a node's membership, as a shifted click does.
func (s *Selection) ToggleNode(id string) {
	if _, ok := s.nodes[id]; ok {
		delete(s.nodes, id)
		return
	}
	s.nodes[id] = struct{}{}
}

// HasNode reports whether a node is selected.
func (s *Selection) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Nodes returns the selected node IDs, sorted.
func (s *Selection) Nodes() []string { return sorted(s.nodes) }

// Links returns the selected link IDs, sorted.
func (s *Selection) Links() []string { return sorted(s.links) }

// Empty reports whether nothing is selected.
func (s *Selection) Empty() bool { return len(s.nodes) == 0 && len(s.links) == 0 }

func sorted(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
