package results

import (
	"slices"
	"sync"

	"github.com/mabhi256/refscan/internal/graph"
)

// Aggregator accumulates findings into per-node summaries. The scan engine is
// the single writer; any number of readers may call Snapshot concurrently.
type Aggregator struct {
	mu sync.RWMutex

	componentOrder  []graph.ID
	componentCounts map[graph.ID]*ComponentCount

	referenceOrder []graph.ID
	references     map[graph.ID]*NodeReferences

	prefabs  []graph.Node
	findings []graph.Finding

	version uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		componentCounts: make(map[graph.ID]*ComponentCount),
		references:      make(map[graph.ID]*NodeReferences),
	}
}

// Clear empties every mapping in one step
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.componentOrder = nil
	a.componentCounts = make(map[graph.ID]*ComponentCount)
	a.referenceOrder = nil
	a.references = make(map[graph.ID]*NodeReferences)
	a.prefabs = nil
	a.findings = nil
	a.version++
}

func (a *Aggregator) RecordMissingComponent(node graph.Node, context string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.componentCounts[node.ID]
	if !ok {
		entry = &ComponentCount{Node: node}
		a.componentCounts[node.ID] = entry
		a.componentOrder = append(a.componentOrder, node.ID)
	}
	entry.Count++

	a.findings = append(a.findings, graph.Finding{
		Kind:    graph.MissingComponent,
		Node:    node,
		Context: context,
	})
	a.version++
}

func (a *Aggregator) RecordMissingReference(node graph.Node, componentType, field, context string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.references[node.ID]
	if !ok {
		entry = &NodeReferences{Node: node}
		a.references[node.ID] = entry
		a.referenceOrder = append(a.referenceOrder, node.ID)
	}
	entry.Refs = append(entry.Refs, Reference{
		ComponentType: componentType,
		Field:         field,
		Context:       context,
	})

	a.findings = append(a.findings, graph.Finding{
		Kind:          graph.MissingReference,
		Node:          node,
		ComponentType: componentType,
		Field:         field,
		Context:       context,
	})
	a.version++
}

func (a *Aggregator) RecordMissingPrefab(node graph.Node, context string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.prefabs = append(a.prefabs, node)
	a.findings = append(a.findings, graph.Finding{
		Kind:    graph.MissingPrefab,
		Node:    node,
		Context: context,
	})
	a.version++
}

// Version changes on every write, so renderers can skip unchanged snapshots
func (a *Aggregator) Version() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// Snapshot returns a deep copy of the current state. Writes that happen after
// the call are not visible in the returned View.
func (a *Aggregator) Snapshot() View {
	a.mu.RLock()
	defer a.mu.RUnlock()

	view := View{
		Version:           a.version,
		MissingComponents: make([]ComponentCount, 0, len(a.componentOrder)),
		MissingReferences: make([]NodeReferences, 0, len(a.referenceOrder)),
		MissingPrefabs:    slices.Clone(a.prefabs),
		Findings:          slices.Clone(a.findings),
	}

	for _, id := range a.componentOrder {
		view.MissingComponents = append(view.MissingComponents, *a.componentCounts[id])
	}

	for _, id := range a.referenceOrder {
		entry := a.references[id]
		if len(entry.Refs) == 0 {
			continue
		}
		view.MissingReferences = append(view.MissingReferences, NodeReferences{
			Node: entry.Node,
			Refs: slices.Clone(entry.Refs),
		})
	}

	return view
}
