package scan

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mabhi256/refscan/internal/graph"
)

const DefaultBatchSize = 32

// Recorder receives findings in traversal order
type Recorder interface {
	Clear()
	RecordMissingComponent(node graph.Node, context string)
	RecordMissingReference(node graph.Node, componentType, field, context string)
	RecordMissingPrefab(node graph.Node, context string)
}

// Engine walks roots depth-first in bounded steps. It holds no state beyond
// the one active session and never blocks, sleeps or starts goroutines.
type Engine struct {
	accessor graph.Accessor
	recorder Recorder
	logger   *zap.Logger

	batchSize     int
	retainResults bool

	mu     sync.Mutex
	active *Session
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBatchSize sets how many flat-collection items one Advance inspects
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRetainedResults keeps earlier findings in the recorder when a new scan begins
func WithRetainedResults() Option {
	return func(e *Engine) {
		e.retainResults = true
	}
}

func NewEngine(accessor graph.Accessor, recorder Recorder, opts ...Option) *Engine {
	e := &Engine{
		accessor:  accessor,
		recorder:  recorder,
		logger:    zap.NewNop(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("scan")
	return e
}

// Active returns the running session, or nil
func (e *Engine) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// BeginScan validates roots and starts a new session, retiring any session
// still running. No traversal work happens until Advance is called.
func (e *Engine) BeginScan(roots []graph.RootSpec) (*Session, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no roots", ErrInvalidRootSpec)
	}
	for i, r := range roots {
		if !(r.Weight > 0) || math.IsInf(r.Weight, 1) {
			return nil, fmt.Errorf("%w: root %d (%s) has weight %v", ErrInvalidRootSpec, i, r.Context, r.Weight)
		}
	}

	e.mu.Lock()
	previous := e.active
	e.mu.Unlock()

	if previous != nil && !previous.Done() {
		e.logger.Info("Superseding running scan", zap.String("session", previous.ID.String()))
		previous.Cancel()
		e.finish(previous, Cancelled)
	}

	if !e.retainResults {
		e.recorder.Clear()
	}

	s := newSession(roots)
	e.mu.Lock()
	e.active = s
	e.mu.Unlock()

	e.logger.Info("Scan started",
		zap.String("session", s.ID.String()),
		zap.Int("roots", len(roots)))

	return s, nil
}

// Cancel requests cancellation; the next Advance returns Cancelled
func (e *Engine) Cancel(s *Session) {
	if s != nil {
		s.Cancel()
	}
}

func (e *Engine) Progress(s *Session) float64 {
	if s == nil {
		return 0
	}
	return s.Progress()
}

// Advance performs one bounded unit of work: opening a root, inspecting one
// node, or inspecting one batch of flat-collection items.
func (e *Engine) Advance(s *Session) StepResult {
	if s == nil {
		return StepResult{State: Cancelled}
	}
	if s.Done() {
		return s.result()
	}
	if s.CancelRequested() {
		return e.finish(s, Cancelled)
	}
	if s.exhausted() {
		return e.finish(s, Completed)
	}

	var interrupted bool
	switch {
	case s.flat != nil:
		interrupted = e.stepFlat(s)
	case len(s.stack) > 0:
		interrupted = e.stepNode(s)
	default:
		e.openRoot(s)
	}

	if interrupted {
		return e.finish(s, Cancelled)
	}

	if s.exhausted() {
		s.progress.Store(math.Float64bits(1))
	}
	return s.result()
}

func (e *Engine) openRoot(s *Session) {
	idx := s.next
	s.next++

	spec := s.roots[idx]
	share := s.shares[idx]
	root := spec.Root
	s.status = fmt.Sprintf("Opening [%s] %s", spec.Context, root)

	if opener, ok := e.accessor.(graph.Opener); ok {
		opened, err := opener.Open(root)
		if err != nil {
			e.fault(s, ErrRootUnavailable, spec.Context, root, "open", err)
			s.credit(share)
			return
		}
		root = opened
	}

	if !spec.Flat {
		s.stack = append(s.stack, frame{node: root, budget: share, root: idx})
		return
	}

	items, err := e.accessor.Children(root)
	if err != nil {
		e.fault(s, ErrAccessorFault, spec.Context, root, "children", err)
		s.credit(share)
		return
	}
	if len(items) == 0 {
		s.credit(share)
		return
	}

	s.flat = &flatCursor{
		items:  items,
		budget: share / float64(len(items)),
		root:   idx,
	}
}

// stepNode pops one frame, inspects it and pushes its children. Returns true
// when cancellation interrupted the inspection.
func (e *Engine) stepNode(s *Session) bool {
	f := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	spec := s.roots[f.root]
	s.status = fmt.Sprintf("Searching [%s] %s", spec.Context, f.node)

	found, slots, prefabMissing, ok := e.inspect(s, f.node, spec.Context)
	if !ok {
		return true
	}

	var children []graph.Node
	if spec.Recurse && !prefabMissing {
		var err error
		children, err = e.accessor.Children(f.node)
		if err != nil {
			e.fault(s, ErrAccessorFault, spec.Context, f.node, "children", err)
			children = nil
		}
	}

	e.flush(found)
	s.visited.Add(1)

	own, each := split(f.budget, slots, len(children))
	s.credit(own)

	// Reverse push keeps pre-order in accessor order
	for _, child := range slices.Backward(children) {
		s.stack = append(s.stack, frame{node: child, budget: each, root: f.root})
	}

	return false
}

func (e *Engine) stepFlat(s *Session) bool {
	cur := s.flat
	spec := s.roots[cur.root]

	end := min(cur.pos+e.batchSize, len(cur.items))
	for cur.pos < end {
		if s.CancelRequested() {
			return true
		}

		item := cur.items[cur.pos]
		s.status = fmt.Sprintf("Searching [%s] %s", spec.Context, item)

		found, _, _, ok := e.inspect(s, item, spec.Context)
		if !ok {
			return true
		}
		e.flush(found)
		s.visited.Add(1)
		s.credit(cur.budget)
		cur.pos++
	}

	if cur.pos >= len(cur.items) {
		s.flat = nil
	}
	return false
}

// inspect reads one node's prefab state and component slots into a buffer.
// Nothing reaches the recorder until the whole node is inspected, so a
// cancellation observed between slots leaves no partial entries behind.
func (e *Engine) inspect(s *Session, node graph.Node, context string) (found []graph.Finding, slots int, prefabMissing, ok bool) {
	if inspector, has := e.accessor.(graph.PrefabInspector); has {
		state, err := inspector.PrefabState(node)
		switch {
		case err != nil:
			e.fault(s, ErrAccessorFault, context, node, "prefab", err)
		case state == graph.Dangling:
			prefabMissing = true
			found = append(found, graph.Finding{Kind: graph.MissingPrefab, Node: node, Context: context})
		}
	}

	components, err := e.accessor.Components(node)
	if err != nil {
		e.fault(s, ErrAccessorFault, context, node, "components", err)
		found = append(found, graph.Finding{Kind: graph.MissingComponent, Node: node, Context: context})
		return found, 0, prefabMissing, true
	}

	for _, slot := range components {
		if s.CancelRequested() {
			return nil, 0, false, false
		}

		if !slot.Present {
			found = append(found, graph.Finding{Kind: graph.MissingComponent, Node: node, Context: context})
			continue
		}

		fields, err := e.accessor.ReferenceFields(node, slot)
		if err != nil {
			e.fault(s, ErrAccessorFault, context, node, "fields of "+slot.TypeName, err)
			found = append(found, graph.Finding{Kind: graph.MissingComponent, Node: node, Context: context})
			continue
		}

		for _, field := range fields {
			if !field.Reportable() {
				continue
			}
			found = append(found, graph.Finding{
				Kind:          graph.MissingReference,
				Node:          node,
				ComponentType: slot.TypeName,
				Field:         field.Name,
				Context:       context,
			})
		}
	}

	return found, len(components), prefabMissing, true
}

func (e *Engine) flush(found []graph.Finding) {
	for _, f := range found {
		switch f.Kind {
		case graph.MissingComponent:
			e.recorder.RecordMissingComponent(f.Node, f.Context)
			e.logger.Warn("Missing component",
				zap.String("context", f.Context),
				zap.String("node", f.Node.String()))
		case graph.MissingReference:
			e.recorder.RecordMissingReference(f.Node, f.ComponentType, f.Field, f.Context)
			e.logger.Warn("Missing reference",
				zap.String("context", f.Context),
				zap.String("node", f.Node.String()),
				zap.String("component", f.ComponentType),
				zap.String("property", f.Field))
		case graph.MissingPrefab:
			e.recorder.RecordMissingPrefab(f.Node, f.Context)
			e.logger.Warn("Missing prefab",
				zap.String("context", f.Context),
				zap.String("node", f.Node.String()))
		}
	}
}

func (e *Engine) fault(s *Session, kind error, context string, node graph.Node, op string, err error) {
	scanErr := &ScanError{Kind: kind, Context: context, Node: node, Op: op, Err: err}
	s.addError(scanErr)
	e.logger.Error("Scan error",
		zap.String("session", s.ID.String()),
		zap.Error(scanErr))
}

func (e *Engine) finish(s *Session, state State) StepResult {
	if s.Done() {
		return s.result()
	}

	if state == Completed {
		s.progress.Store(math.Float64bits(1))
		s.status = "Finished finding missing references"
	} else {
		s.status = "Cancelled"
	}

	s.stack = nil
	s.flat = nil
	s.finishedAt = time.Now()
	s.state.Store(int32(state))

	e.mu.Lock()
	if e.active == s {
		e.active = nil
	}
	e.mu.Unlock()

	e.logger.Info("Scan finished",
		zap.String("session", s.ID.String()),
		zap.Stringer("state", state),
		zap.Int64("nodes", s.NodesVisited()),
		zap.Int("errors", len(s.Errors())),
		zap.Duration("elapsed", s.Elapsed()))

	return s.result()
}
