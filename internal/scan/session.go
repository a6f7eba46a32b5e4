package scan

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mabhi256/refscan/internal/graph"
)

type State int32

const (
	InProgress State = iota
	Cancelled
	Completed
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in progress"
	case Cancelled:
		return "cancelled"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// StepResult is what a single Advance call reports back to the host loop
type StepResult struct {
	State    State
	Progress float64
	Status   string
}

// Done reports whether the session reached a terminal state
func (r StepResult) Done() bool {
	return r.State != InProgress
}

// frame is one pending node on the work stack together with the share of
// total progress its subtree is worth
type frame struct {
	node   graph.Node
	budget float64
	root   int
}

// flatCursor walks the items of a flat collection root in batches
type flatCursor struct {
	items  []graph.Node
	pos    int
	budget float64 // per item
	root   int
}

// Session is the mutable state of one traversal. Traversal fields are owned
// by Engine.Advance; progress, cancellation and errors may be read from any
// goroutine.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	roots  []graph.RootSpec
	shares []float64
	next   int

	stack []frame
	flat  *flatCursor

	credited float64 // raw sum of credited budget, may drift past 1 by rounding
	status   string

	progress  atomic.Uint64 // float64 bits
	cancelled atomic.Bool
	state     atomic.Int32
	visited   atomic.Int64

	mu   sync.Mutex
	errs []error

	finishedAt time.Time
}

func newSession(roots []graph.RootSpec) *Session {
	total := 0.0
	for _, r := range roots {
		total += r.Weight
	}

	shares := make([]float64, len(roots))
	for i, r := range roots {
		shares[i] = r.Weight / total
	}

	return &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		roots:     slices.Clone(roots),
		shares:    shares,
	}
}

// Cancel requests cooperative cancellation; safe from any goroutine
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

func (s *Session) CancelRequested() bool {
	return s.cancelled.Load()
}

// Progress returns cumulative progress in [0,1]
func (s *Session) Progress() float64 {
	return math.Float64frombits(s.progress.Load())
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Done() bool {
	return s.State() != InProgress
}

// NodesVisited counts nodes and flat items whose inspection completed
func (s *Session) NodesVisited() int64 {
	return s.visited.Load()
}

// Errors returns the non-fatal errors recorded so far
func (s *Session) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.errs)
}

// Elapsed is the wall time from start to finish, or to now while running
func (s *Session) Elapsed() time.Duration {
	if s.Done() {
		return s.finishedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

func (s *Session) Roots() []graph.RootSpec {
	return slices.Clone(s.roots)
}

func (s *Session) addError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// credit adds finished budget and publishes the clamped, non-decreasing progress
func (s *Session) credit(amount float64) {
	s.credited += amount
	p := min(s.credited, 1)
	if p > s.Progress() {
		s.progress.Store(math.Float64bits(p))
	}
}

func (s *Session) exhausted() bool {
	return s.flat == nil && len(s.stack) == 0 && s.next >= len(s.roots)
}

func (s *Session) result() StepResult {
	return StepResult{State: s.State(), Progress: s.Progress(), Status: s.status}
}

// split divides a node's inherited budget evenly across its k component
// inspections and m child subtrees. own + m*child == budget.
func split(budget float64, k, m int) (own, child float64) {
	if k+m == 0 {
		return budget, 0
	}
	each := budget / float64(k+m)
	return each * float64(k), each
}
