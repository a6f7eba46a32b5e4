package results

import "github.com/mabhi256/refscan/internal/graph"

// ComponentCount is the number of absent component slots seen on a node
type ComponentCount struct {
	Node  graph.Node
	Count int
}

// Reference is one dangling field, tagged with the root context that found it
type Reference struct {
	ComponentType string
	Field         string
	Context       string
}

type NodeReferences struct {
	Node graph.Node
	Refs []Reference // Never empty in a View
}

// View is an immutable, insertion-ordered copy of the aggregated results
type View struct {
	Version           uint64
	MissingComponents []ComponentCount
	MissingReferences []NodeReferences
	MissingPrefabs    []graph.Node
	Findings          []graph.Finding // Traversal order
}

func (v View) Empty() bool {
	return len(v.Findings) == 0
}

// ComponentCount returns the missing component count recorded for a node
func (v View) ComponentCount(id graph.ID) int {
	for _, entry := range v.MissingComponents {
		if entry.Node.ID == id {
			return entry.Count
		}
	}
	return 0
}

// References returns the dangling fields recorded for a node, or nil
func (v View) References(id graph.ID) []Reference {
	for _, entry := range v.MissingReferences {
		if entry.Node.ID == id {
			return entry.Refs
		}
	}
	return nil
}

// CountByContext tallies findings per root context in first-seen order
func (v View) CountByContext() ([]string, map[string]int) {
	var order []string
	counts := make(map[string]int)
	for _, f := range v.Findings {
		if _, seen := counts[f.Context]; !seen {
			order = append(order, f.Context)
		}
		counts[f.Context]++
	}
	return order, counts
}

// Totals returns the number of findings of each kind
func (v View) Totals() (components, references, prefabs int) {
	for _, f := range v.Findings {
		switch f.Kind {
		case graph.MissingComponent:
			components++
		case graph.MissingReference:
			references++
		case graph.MissingPrefab:
			prefabs++
		}
	}
	return components, references, prefabs
}
