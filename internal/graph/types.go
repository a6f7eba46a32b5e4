package graph

import "fmt"

type ID uint64 // Graph-native identity, 0 is the null identifier

// Node is a read-only handle to a position in the scanned hierarchy
type Node struct {
	ID   ID
	Name string
	Path string // Slash-joined hierarchy path, e.g. "Level/Player/Weapon"
}

func (n Node) String() string {
	if n.Path != "" {
		return n.Path
	}
	return n.Name
}

// ComponentSlot is one entry of a node's component list. A slot that is not
// Present exists in the list but resolves to no live object.
type ComponentSlot struct {
	ID       ID
	TypeName string
	Present  bool
}

type FieldKind int

const (
	KindValue FieldKind = iota
	KindObjectReference
)

func (k FieldKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindObjectReference:
		return "object"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Resolution describes what a reference field's stored identifier points at
type Resolution int

const (
	Unset    Resolution = iota // stored identifier is 0
	Valid                      // resolves to a live target
	Dangling                   // non-zero but resolves to nothing
)

func (r Resolution) String() string {
	switch r {
	case Unset:
		return "unset"
	case Valid:
		return "valid"
	case Dangling:
		return "dangling"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// Resolve classifies a stored identifier against a liveness check
func Resolve(target ID, exists func(ID) bool) Resolution {
	if target == 0 {
		return Unset
	}
	if exists(target) {
		return Valid
	}
	return Dangling
}

type Field struct {
	Name  string
	Kind  FieldKind
	State Resolution
}

// Reportable is true only for object references that no longer resolve
func (f Field) Reportable() bool {
	return f.Kind == KindObjectReference && f.State == Dangling
}

// RootSpec is a caller-supplied entry point into the graph
type RootSpec struct {
	Root    Node
	Weight  float64 // Relative share of total progress
	Context string  // Provenance label attached to every finding from this root
	Recurse bool

	// Flat marks a flat collection: the root's children are the items, each
	// item is inspected without recursion, and items are processed in batches.
	Flat bool
}

type FindingKind int

const (
	MissingComponent FindingKind = iota
	MissingReference
	MissingPrefab
)

func (k FindingKind) String() string {
	switch k {
	case MissingComponent:
		return "missing_component"
	case MissingReference:
		return "missing_reference"
	case MissingPrefab:
		return "missing_prefab"
	default:
		return fmt.Sprintf("FindingKind(%d)", int(k))
	}
}

// Finding is an append-only fact produced by a scan
type Finding struct {
	Kind          FindingKind
	Node          Node
	ComponentType string // MissingReference only
	Field         string // MissingReference only
	Context       string
}
