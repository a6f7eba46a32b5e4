package scan

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/mabhi256/refscan/internal/graph"
)

var errBroken = errors.New("broken read")

type fakeComponent struct {
	typeName   string
	present    bool
	fields     []graph.Field
	failFields bool
}

type fakeNode struct {
	name           string
	path           string
	components     []fakeComponent
	children       []graph.ID
	prefabMissing  bool
	failComponents bool
	failChildren   bool
}

// fakeGraph is an in-memory Accessor for engine tests
type fakeGraph struct {
	nodes   map[graph.ID]*fakeNode
	nextID  graph.ID
	onField func(node graph.Node, slot graph.ComponentSlot)

	componentCalls map[graph.ID]int
	childrenCalls  map[graph.ID]int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes:          make(map[graph.ID]*fakeNode),
		nextID:         1,
		componentCalls: make(map[graph.ID]int),
		childrenCalls:  make(map[graph.ID]int),
	}
}

func (g *fakeGraph) add(parent graph.ID, name string, components ...fakeComponent) graph.ID {
	id := g.nextID
	g.nextID++

	path := name
	if p, ok := g.nodes[parent]; ok {
		path = p.path + "/" + name
		p.children = append(p.children, id)
	}

	g.nodes[id] = &fakeNode{name: name, path: path, components: components}
	return id
}

func (g *fakeGraph) node(id graph.ID) graph.Node {
	n := g.nodes[id]
	return graph.Node{ID: id, Name: n.name, Path: n.path}
}

func (g *fakeGraph) Children(node graph.Node) ([]graph.Node, error) {
	g.childrenCalls[node.ID]++
	n, ok := g.nodes[node.ID]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", node.ID, errBroken)
	}
	if n.failChildren {
		return nil, errBroken
	}

	out := make([]graph.Node, 0, len(n.children))
	for _, id := range n.children {
		out = append(out, g.node(id))
	}
	return out, nil
}

func (g *fakeGraph) Components(node graph.Node) ([]graph.ComponentSlot, error) {
	g.componentCalls[node.ID]++
	n, ok := g.nodes[node.ID]
	if !ok || n.failComponents {
		return nil, errBroken
	}

	slots := make([]graph.ComponentSlot, len(n.components))
	for i, c := range n.components {
		slots[i] = graph.ComponentSlot{ID: graph.ID(i + 1), TypeName: c.typeName, Present: c.present}
	}
	return slots, nil
}

func (g *fakeGraph) ReferenceFields(node graph.Node, slot graph.ComponentSlot) ([]graph.Field, error) {
	if g.onField != nil {
		g.onField(node, slot)
	}
	c := g.nodes[node.ID].components[slot.ID-1]
	if c.failFields {
		return nil, errBroken
	}
	return c.fields, nil
}

// prefabGraph adds PrefabInspector to fakeGraph
type prefabGraph struct {
	*fakeGraph
}

func (g prefabGraph) PrefabState(node graph.Node) (graph.Resolution, error) {
	if g.nodes[node.ID].prefabMissing {
		return graph.Dangling, nil
	}
	return graph.Unset, nil
}

// openingGraph adds Opener to fakeGraph; roots listed in unavailable fail to open
type openingGraph struct {
	*fakeGraph
	unavailable map[graph.ID]bool
	opened      []graph.ID
}

func (g *openingGraph) Open(root graph.Node) (graph.Node, error) {
	g.opened = append(g.opened, root.ID)
	if g.unavailable[root.ID] {
		return graph.Node{}, fmt.Errorf("open %s: %w", root.Name, errBroken)
	}
	return root, nil
}

func present(typeName string, fields ...graph.Field) fakeComponent {
	return fakeComponent{typeName: typeName, present: true, fields: fields}
}

func absent() fakeComponent {
	return fakeComponent{}
}

func ref(name string, state graph.Resolution) graph.Field {
	return graph.Field{Name: name, Kind: graph.KindObjectReference, State: state}
}

// randomTree grows a tree with branching 0-5 and depth up to maxDepth,
// scattering absent slots and dangling fields. Returns the root and the
// number of absent slots and dangling reference fields placed.
func randomTree(g *fakeGraph, rng *rand.Rand, maxDepth int) (root graph.ID, absentSlots, dangling int) {
	var grow func(parent graph.ID, depth int) graph.ID
	grow = func(parent graph.ID, depth int) graph.ID {
		var comps []fakeComponent
		for range rng.IntN(4) {
			if rng.IntN(5) == 0 {
				comps = append(comps, absent())
				absentSlots++
				continue
			}

			var fields []graph.Field
			for j := range rng.IntN(4) {
				name := fmt.Sprintf("f%d", j)
				switch rng.IntN(4) {
				case 0:
					fields = append(fields, ref(name, graph.Dangling))
					dangling++
				case 1:
					fields = append(fields, ref(name, graph.Unset))
				case 2:
					fields = append(fields, ref(name, graph.Valid))
				default:
					fields = append(fields, graph.Field{Name: name, Kind: graph.KindValue, State: graph.Dangling})
				}
			}
			comps = append(comps, present("Comp", fields...))
		}

		id := g.add(parent, fmt.Sprintf("n%d", g.nextID), comps...)
		if depth < maxDepth {
			for range rng.IntN(6) {
				grow(id, depth+1)
			}
		}
		return id
	}

	root = grow(0, 0)
	return root, absentSlots, dangling
}
