package percept

import "sync"

// Session is a loaded inference graph.  Implementations are not required to
// be safe for concurrent Run calls on the same session, the orchestrator
// serializes Run per loaded handle, including across concurrent detect
// calls, and keeps the session open until in-flight runs drain.
type Session interface {
	// InputShape returns the spatial dimensions the model expects, derived
	// from its declared input signature
	InputShape() (width, height int)
	// OutputShapes returns the declared shape of every output tensor
	OutputShapes() [][]int
	// Run executes the graph on a planar NCHW float32 input buffer and
	// returns the raw output tensor set.  Ownership of the outputs
	// transfers to the caller
	Run(input []float32) (*Outputs, error)
	// Close unloads the graph and releases its resources
	Close() error
}

// Backend creates model sessions on a particular compute runtime
type Backend interface {
	// Name identifies the backend in configuration
	Name() string
	// Open loads the model at the given path into a new session
	Open(modelPath string) (Session, error)
	// Close releases backend wide resources.  Sessions must be closed first
	Close() error
}

// Scope is a buffer scope boundary.  Output sets added to the scope that are
// not part of the final result are released when the scope closes, even on
// early return.  Free on an output set is idempotent so pipelines may also
// release eagerly
type Scope struct {
	mu      sync.Mutex
	outputs []*Outputs
}

func newScope() *Scope {
	return &Scope{}
}

// Add registers an output set for release at scope close.  Safe for use
// from concurrently running pipelines
func (s *Scope) Add(o *Outputs) {
	if o == nil {
		return
	}

	s.mu.Lock()
	s.outputs = append(s.outputs, o)
	s.mu.Unlock()
}

// Close releases every registered output set.  All pipelines are joined
// before the orchestrator closes the scope
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.outputs {
		_ = o.Free()
	}

	s.outputs = nil
}
