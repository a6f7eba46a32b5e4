package graph

// Accessor exposes the read-only view of an object graph that a scan needs.
// Implementations own the nodes; callers never mutate what they return.
type Accessor interface {
	// Children returns the immediate children of node, never node itself
	Children(node Node) ([]Node, error)

	// Components returns the node's component slots in attachment order
	Components(node Node) ([]ComponentSlot, error)

	// ReferenceFields returns the fields of a present component with their resolution state
	ReferenceFields(node Node, slot ComponentSlot) ([]Field, error)
}

// Opener is implemented by accessors whose roots must be opened (loaded)
// before traversal. A failed Open makes the whole root unavailable.
type Opener interface {
	Open(root Node) (Node, error)
}

// PrefabInspector is implemented by accessors that know whether a node is an
// instance of a prefab asset and whether that asset still resolves.
type PrefabInspector interface {
	PrefabState(node Node) (Resolution, error)
}
