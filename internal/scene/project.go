package scene

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/refscan/internal/graph"
)

const (
	ManifestName  = "refscan.yaml"
	AssetsContext = "Assets"

	// Document handles live above every object ID a file can declare
	documentIDBase graph.ID = 1 << 63
	assetsRootID            = documentIDBase
)

type Options struct {
	IncludeHidden bool
	AssetWorkers  int
	Logger        *zap.Logger
}

type docKind int

const (
	sceneDoc docKind = iota
	assetDoc
)

type docEntry struct {
	id   graph.ID
	path string
	kind docKind
	doc  *Document
}

// indexed is an object, or a component owned by one
type indexed struct {
	object    *Object
	component *Component
	doc       graph.ID
	path      string
}

// catalog is everything one Reload builds: the manifest, document handles,
// and the registry of indexed IDs. A catalog is swapped in whole.
type catalog struct {
	manifest   *Manifest
	docs       map[graph.ID]*docEntry
	docsByPath map[string]graph.ID
	assets     []graph.ID
	assetBytes int64
	objects    *BaseRegistry[graph.ID, indexed]
}

func newCatalog(manifest *Manifest) *catalog {
	return &catalog{
		manifest:   manifest,
		docs:       make(map[graph.ID]*docEntry),
		docsByPath: make(map[string]graph.ID),
		objects:    NewBaseRegistry[graph.ID, indexed](),
	}
}

// Project is a loaded refscan project. Asset documents are loaded up front.
// At most one scene is loaded at a time: opening a scene unloads the
// previous one, so references resolve against the assets and that scene
// only. It implements graph.Accessor, graph.Opener and
// graph.PrefabInspector.
type Project struct {
	dir          string
	manifestPath string
	opts         Options
	logger       *zap.Logger

	mu      sync.Mutex
	cat     *catalog
	scene   graph.ID // loaded scene document, 0 if none
	nextDoc graph.ID
}

var (
	_ graph.Accessor        = (*Project)(nil)
	_ graph.Opener          = (*Project)(nil)
	_ graph.PrefabInspector = (*Project)(nil)
)

// OpenProject reads the manifest at path (or path/refscan.yaml when path is
// a directory) and loads every asset document.
func OpenProject(ctx context.Context, path string, opts Options) (*Project, error) {
	if isDir(path) {
		path = filepath.Join(path, ManifestName)
	}
	if opts.AssetWorkers <= 0 {
		opts.AssetWorkers = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	p := &Project{
		dir:          filepath.Dir(path),
		manifestPath: path,
		opts:         opts,
		logger:       opts.Logger.Named("scene"),
		nextDoc:      documentIDBase + 1,
	}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload rereads the manifest and assets. Scenes are unloaded, and node
// handles from before the reload are no longer found. On error the project
// keeps its previous state.
func (p *Project) Reload(ctx context.Context) error {
	start := time.Now()

	manifest, err := LoadManifest(p.manifestPath)
	if err != nil {
		return err
	}

	assetPaths, err := p.findAssets(manifest.Assets)
	if err != nil {
		return err
	}
	docs, err := p.loadAssets(ctx, assetPaths)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := newCatalog(manifest)
	for _, s := range manifest.Scenes {
		p.register(next, s.Path, sceneDoc)
	}
	for i, rel := range assetPaths {
		e := p.register(next, rel, assetDoc)
		e.doc = docs[i]
		if err := next.index(e); err != nil {
			return err
		}
		next.assets = append(next.assets, e.id)
		next.assetBytes += p.fileSize(rel)
	}

	p.cat = next
	p.scene = 0

	p.logger.Info("Project loaded",
		zap.String("project", manifest.Name),
		zap.Int("scenes", len(manifest.Scenes)),
		zap.Int("assets", len(assetPaths)),
		zap.Int("objects", next.objects.Count()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Project) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cat.manifest.Name
}

func (p *Project) Dir() string {
	return p.dir
}

// Scenes lists the manifest's scene entries
func (p *Project) Scenes() []SceneEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.cat.manifest.Scenes)
}

func (p *Project) findAssets(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}

	var paths []string
	root := filepath.Join(p.dir, dir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), AssetSuffix) {
			return nil
		}
		rel, err := filepath.Rel(p.dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	slices.Sort(paths)
	return paths, nil
}

// loadAssets parses asset documents concurrently; results keep path order
func (p *Project) loadAssets(ctx context.Context, paths []string) ([]*Document, error) {
	docs := make([]*Document, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.AssetWorkers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := LoadDocument(filepath.Join(p.dir, rel))
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	return docs, nil
}

// register returns the handle for rel in c, allocating one if needed.
// Must be called with p.mu held.
func (p *Project) register(c *catalog, rel string, kind docKind) *docEntry {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if id, ok := c.docsByPath[rel]; ok {
		return c.docs[id]
	}

	e := &docEntry{id: p.nextDoc, path: rel, kind: kind}
	p.nextDoc++
	c.docs[e.id] = e
	c.docsByPath[rel] = e.id
	return e
}

// index adds a document's objects and components to the registry. On an ID
// collision nothing from the document stays indexed.
func (c *catalog) index(e *docEntry) error {
	prefix := ""
	if e.kind == assetDoc {
		prefix = e.path
	}

	var walk func(objects []Object, parent string) error
	walk = func(objects []Object, parent string) error {
		for i := range objects {
			obj := &objects[i]
			path := joinPath(parent, obj.Name)

			if err := c.add(obj.ID, indexed{object: obj, doc: e.id, path: path}, e); err != nil {
				return err
			}
			for j := range obj.Components {
				comp := &obj.Components[j]
				if comp.ID == 0 {
					continue
				}
				if err := c.add(comp.ID, indexed{object: obj, component: comp, doc: e.id, path: path}, e); err != nil {
					return err
				}
			}
			if err := walk(obj.Children, path); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(e.doc.Objects, prefix); err != nil {
		c.unindex(e)
		return err
	}
	return nil
}

func (c *catalog) unindex(e *docEntry) {
	c.objects.DeleteFunc(func(_ graph.ID, v indexed) bool { return v.doc == e.id })
}

func (c *catalog) add(id graph.ID, v indexed, e *docEntry) error {
	if existing, ok := c.objects.Add(id, v); !ok {
		other := c.docs[existing.doc]
		return fmt.Errorf("%w: %s: id %d is already used in %s", ErrInvalidDocument, e.path, id, other.path)
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (p *Project) fileSize(rel string) int64 {
	info, err := os.Stat(filepath.Join(p.dir, rel))
	if err != nil {
		return 0
	}
	return info.Size()
}

func (p *Project) registry() *BaseRegistry[graph.ID, indexed] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cat.objects
}

func (p *Project) exists(id graph.ID) bool {
	return p.registry().Has(id)
}

func (p *Project) doc(id graph.ID) (*docEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.cat.docs[id]
	return e, ok
}

func (p *Project) object(node graph.Node) (*Object, error) {
	v, ok := p.registry().Get(node.ID)
	if !ok || v.component != nil {
		return nil, fmt.Errorf("%s (%d): %w", node, node.ID, ErrObjectNotFound)
	}
	return v.object, nil
}

func (p *Project) objectNode(objects *BaseRegistry[graph.ID, indexed], obj *Object) graph.Node {
	v, _ := objects.Get(obj.ID)
	return graph.Node{ID: obj.ID, Name: obj.Name, Path: v.path}
}

func (p *Project) visible(objects []Object) []graph.Node {
	reg := p.registry()
	out := make([]graph.Node, 0, len(objects))
	for i := range objects {
		if objects[i].Hidden && !p.opts.IncludeHidden {
			continue
		}
		out = append(out, p.objectNode(reg, &objects[i]))
	}
	return out
}

// Open loads a scene document and unloads whichever scene was loaded
// before it. Asset and object roots are already loaded and only checked
// for existence.
func (p *Project) Open(root graph.Node) (graph.Node, error) {
	if root.ID == assetsRootID {
		return root, nil
	}

	e, ok := p.doc(root.ID)
	if !ok {
		if _, err := p.object(root); err != nil {
			return graph.Node{}, err
		}
		return root, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scene != 0 && p.scene != e.id {
		if prev, ok := p.cat.docs[p.scene]; ok {
			p.cat.unindex(prev)
			prev.doc = nil
			p.logger.Debug("Unloaded scene", zap.String("path", prev.path))
		}
		p.scene = 0
	}
	if e.doc != nil {
		p.scene = e.id
		return root, nil
	}

	doc, err := LoadDocument(filepath.Join(p.dir, e.path))
	if err != nil {
		return graph.Node{}, err
	}
	e.doc = doc
	if err := p.cat.index(e); err != nil {
		e.doc = nil
		return graph.Node{}, err
	}
	p.scene = e.id

	p.logger.Debug("Loaded scene",
		zap.String("path", e.path),
		zap.Int("objects", len(doc.Objects)))
	return root, nil
}

// Children returns visible child objects. The assets root yields every
// visible asset object in document order, flattened pre-order.
func (p *Project) Children(node graph.Node) ([]graph.Node, error) {
	if node.ID == assetsRootID {
		return p.assetItems(), nil
	}

	if e, ok := p.doc(node.ID); ok {
		p.mu.Lock()
		doc := e.doc
		p.mu.Unlock()
		if doc == nil {
			return nil, fmt.Errorf("document %s is not loaded", e.path)
		}
		return p.visible(doc.Objects), nil
	}

	obj, err := p.object(node)
	if err != nil {
		return nil, err
	}
	return p.visible(obj.Children), nil
}

func (p *Project) assetItems() []graph.Node {
	p.mu.Lock()
	reg := p.cat.objects
	var docs []*Document
	for _, id := range p.cat.assets {
		docs = append(docs, p.cat.docs[id].doc)
	}
	p.mu.Unlock()

	var items []graph.Node
	var walk func(objects []Object)
	walk = func(objects []Object) {
		for i := range objects {
			obj := &objects[i]
			if obj.Hidden && !p.opts.IncludeHidden {
				continue
			}
			items = append(items, p.objectNode(reg, obj))
			walk(obj.Children)
		}
	}
	for _, doc := range docs {
		walk(doc.Objects)
	}
	return items
}

// Components lists an object's slots in declaration order. Slot IDs are
// 1-based positions. Documents and the assets root have no slots.
func (p *Project) Components(node graph.Node) ([]graph.ComponentSlot, error) {
	if node.ID >= documentIDBase {
		return nil, nil
	}

	obj, err := p.object(node)
	if err != nil {
		return nil, err
	}

	slots := make([]graph.ComponentSlot, len(obj.Components))
	for i, c := range obj.Components {
		slots[i] = graph.ComponentSlot{
			ID:       graph.ID(i + 1),
			TypeName: c.Type,
			Present:  c.Present(),
		}
	}
	return slots, nil
}

func (p *Project) ReferenceFields(node graph.Node, slot graph.ComponentSlot) ([]graph.Field, error) {
	obj, err := p.object(node)
	if err != nil {
		return nil, err
	}

	idx := int(slot.ID) - 1
	if idx < 0 || idx >= len(obj.Components) {
		return nil, fmt.Errorf("%s slot %d: %w", node, slot.ID, ErrObjectNotFound)
	}

	comp := obj.Components[idx]
	fields := make([]graph.Field, len(comp.Fields))
	for i, f := range comp.Fields {
		fields[i] = graph.Field{Name: f.Name, Kind: f.kind()}
		if fields[i].Kind == graph.KindObjectReference {
			fields[i].State = graph.Resolve(f.Ref, p.exists)
		}
	}
	return fields, nil
}

// PrefabState resolves an object's prefab link. Objects that are not prefab
// instances report Unset.
func (p *Project) PrefabState(node graph.Node) (graph.Resolution, error) {
	if node.ID >= documentIDBase {
		return graph.Unset, nil
	}
	obj, err := p.object(node)
	if err != nil {
		return graph.Unset, err
	}
	return graph.Resolve(obj.Prefab, p.exists), nil
}

// SceneRoot builds a root for one scene document, weighted by file size.
// A scene missing from disk still yields a root; opening it fails.
func (p *Project) SceneRoot(rel string) graph.RootSpec {
	p.mu.Lock()
	e := p.register(p.cat, rel, sceneDoc)
	p.mu.Unlock()

	return graph.RootSpec{
		Root:    graph.Node{ID: e.id, Name: filepath.Base(e.path), Path: e.path},
		Weight:  float64(max(p.fileSize(e.path), 1)),
		Context: e.path,
		Recurse: true,
	}
}

func (p *Project) EnabledSceneRoots() []graph.RootSpec {
	var roots []graph.RootSpec
	for _, s := range p.Scenes() {
		if s.Enabled {
			roots = append(roots, p.SceneRoot(s.Path))
		}
	}
	return roots
}

// AssetRoot is the flat collection of every asset object, weighted by the
// combined size of the asset documents.
func (p *Project) AssetRoot() graph.RootSpec {
	p.mu.Lock()
	size := p.cat.assetBytes
	p.mu.Unlock()

	return graph.RootSpec{
		Root:    graph.Node{ID: assetsRootID, Name: AssetsContext},
		Weight:  float64(max(size, 1)),
		Context: AssetsContext,
		Flat:    true,
	}
}

func (p *Project) AllRoots() []graph.RootSpec {
	return append(p.EnabledSceneRoots(), p.AssetRoot())
}

// NodeRoot builds a root for one object and its subtree. objectPath is the
// slash-separated name path inside the document.
func (p *Project) NodeRoot(rel, objectPath string) (graph.RootSpec, error) {
	docRoot := p.SceneRoot(rel)
	if _, err := p.Open(docRoot.Root); err != nil {
		return graph.RootSpec{}, err
	}

	e, _ := p.doc(docRoot.Root.ID)
	p.mu.Lock()
	doc := e.doc
	p.mu.Unlock()
	if doc == nil {
		return graph.RootSpec{}, fmt.Errorf("document %s is not loaded", e.path)
	}

	obj := findByPath(doc.Objects, strings.Split(objectPath, "/"))
	if obj == nil {
		return graph.RootSpec{}, fmt.Errorf("%s in %s: %w", objectPath, rel, ErrObjectNotFound)
	}

	return graph.RootSpec{
		Root:    p.objectNode(p.registry(), obj),
		Weight:  1,
		Context: e.path,
		Recurse: true,
	}, nil
}

func findByPath(objects []Object, names []string) *Object {
	for i := range objects {
		if objects[i].Name != names[0] {
			continue
		}
		if len(names) == 1 {
			return &objects[i]
		}
		if found := findByPath(objects[i].Children, names[1:]); found != nil {
			return found
		}
	}
	return nil
}

// Documents lists the manifest's scenes and the asset documents by path,
// scenes first
func (p *Project) Documents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.cat.manifest.Scenes)+len(p.cat.assets))
	for _, s := range p.cat.manifest.Scenes {
		out = append(out, filepath.ToSlash(filepath.Clean(s.Path)))
	}
	for _, id := range p.cat.assets {
		out = append(out, p.cat.docs[id].path)
	}
	return out
}
