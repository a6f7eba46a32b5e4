package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mabhi256/refscan/internal/graph"
)

const (
	SceneSuffix = ".scene.yaml"
	AssetSuffix = ".asset.yaml"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidDocument = errors.New("invalid document")
)

// Manifest is the project file, refscan.yaml
type Manifest struct {
	Name   string       `yaml:"name"`
	Scenes []SceneEntry `yaml:"scenes"`
	Assets string       `yaml:"assets"`
}

type SceneEntry struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// Document is one scene or asset file. Object IDs are project-wide so that
// scene objects can reference asset objects.
type Document struct {
	Name    string   `yaml:"name"`
	Objects []Object `yaml:"objects"`
}

type Object struct {
	ID         graph.ID    `yaml:"id"`
	Name       string      `yaml:"name"`
	Hidden     bool        `yaml:"hidden,omitempty"`
	Prefab     graph.ID    `yaml:"prefab,omitempty"`
	Components []Component `yaml:"components,omitempty"`
	Children   []Object    `yaml:"children,omitempty"`
}

// Component with Missing set or an empty Type is an absent slot: the
// object says a component belongs there but its type cannot be loaded.
type Component struct {
	ID      graph.ID `yaml:"id,omitempty"`
	Type    string   `yaml:"type"`
	Missing bool     `yaml:"missing,omitempty"`
	Fields  []Field  `yaml:"fields,omitempty"`
}

func (c Component) Present() bool {
	return !c.Missing && c.Type != ""
}

type Field struct {
	Name string   `yaml:"name"`
	Kind string   `yaml:"kind"`
	Ref  graph.ID `yaml:"ref,omitempty"`
}

func (f Field) kind() graph.FieldKind {
	if f.Kind == "object" {
		return graph.KindObjectReference
	}
	return graph.KindValue
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	for i, s := range m.Scenes {
		if s.Path == "" {
			return nil, fmt.Errorf("manifest %s: scene %d has no path", path, i)
		}
	}
	return &m, nil
}

// ParseDocument decodes and validates a document. Unknown keys are rejected;
// an empty input is an empty document.
func ParseDocument(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := validateObjects(doc.Objects); err != nil {
		return nil, err
	}
	return &doc, nil
}

func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func validateObjects(objects []Object) error {
	for i := range objects {
		obj := &objects[i]
		if obj.ID == 0 {
			return fmt.Errorf("%w: object %q has no id", ErrInvalidDocument, obj.Name)
		}
		if obj.ID >= documentIDBase {
			return fmt.Errorf("%w: object %q id %d is out of range", ErrInvalidDocument, obj.Name, obj.ID)
		}
		for _, c := range obj.Components {
			if c.ID >= documentIDBase {
				return fmt.Errorf("%w: object %d component id %d is out of range", ErrInvalidDocument, obj.ID, c.ID)
			}
		}
		for _, f := range componentFields(obj) {
			if f.Kind != "object" && f.Kind != "value" {
				return fmt.Errorf("%w: object %d field %q has kind %q", ErrInvalidDocument, obj.ID, f.Name, f.Kind)
			}
		}
		if err := validateObjects(obj.Children); err != nil {
			return err
		}
	}
	return nil
}

func componentFields(obj *Object) []Field {
	var out []Field
	for _, c := range obj.Components {
		out = append(out, c.Fields...)
	}
	return out
}
