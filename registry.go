package percept

import (
	"fmt"
	"strings"
	"sync"
)

// Capability identifies one perception model slot in the registry
type Capability string

const (
	CapFace      Capability = "face"
	CapAge       Capability = "age"
	CapGender    Capability = "gender"
	CapEmotion   Capability = "emotion"
	CapEmbedding Capability = "embedding"
	CapDescribe  Capability = "describe"
	CapBody      Capability = "body"
	CapHand      Capability = "hand"
	CapObject    Capability = "object"
)

// BodyVariant names one of the interchangeable body pose model variants.
// Only one variant is ever loaded for a given configuration
type BodyVariant string

const (
	BodyPoseNet   BodyVariant = "posenet"
	BodyMoveNet   BodyVariant = "movenet"
	BodyBlazePose BodyVariant = "blazepose"
)

// BodyVariantFor selects the body model variant by matching a substring of
// the configured model path
func BodyVariantFor(modelPath string) BodyVariant {

	path := strings.ToLower(modelPath)

	switch {
	case strings.Contains(path, "blazepose"):
		return BodyBlazePose
	case strings.Contains(path, "posenet"):
		return BodyPoseNet
	default:
		return BodyMoveNet
	}
}

// Model is a loaded inference graph handle plus cached metadata derived from
// its declared signature at load time
type Model struct {
	Capability Capability
	// Path the model was loaded from
	Path string
	// Session is the underlying backend session
	Session Session
	// expected input spatial size, derived from the input signature
	InputWidth  int
	InputHeight int
	// OutputShapes binds output index to declared shape once at load time
	// so decode stages never re-derive it per call
	OutputShapes [][]int
	// Variant is set for the body capability only
	Variant BodyVariant

	// handle lifecycle: a reload or backend switch retires the handle but
	// the session only closes once the last acquired reference is released
	mu      sync.Mutex
	refs    int
	retired bool

	// runMu serializes Run calls on the session across concurrent detect
	// calls, sessions are not required to support concurrent execution
	runMu sync.Mutex
}

// Release returns a handle obtained from Acquire.  A retired handle closes
// its session once the last reference is released
func (m *Model) Release() {
	m.mu.Lock()
	m.refs--
	closeNow := m.retired && m.refs == 0
	m.mu.Unlock()

	if closeNow {
		_ = m.Session.Close()
	}
}

// retire marks the handle as replaced.  The session closes immediately when
// no references are held, otherwise on the final Release
func (m *Model) retire() {
	m.mu.Lock()
	m.retired = true
	closeNow := m.refs == 0
	m.mu.Unlock()

	if closeNow {
		_ = m.Session.Close()
	}
}

// Registry lazily loads and holds one model handle per capability.  It is
// the one piece of mutable state shared across detect calls, loads and
// backend switches are serialized by a single guard.  Each Detector owns its
// own registry so multiple independent instances can coexist in process.
type Registry struct {
	mu      sync.Mutex
	backend Backend
	models  map[Capability]*Model
	// loads counts underlying model loads, reuse of a cached handle does
	// not increment it
	loads int
}

// NewRegistry returns a registry creating sessions on the given backend
func NewRegistry(backend Backend) *Registry {
	return &Registry{
		backend: backend,
		models:  make(map[Capability]*Model),
	}
}

// SetBackend switches the registry to a new backend.  All cached handles are
// closed and reload lazily on next use.  Serialized with in-flight loads
func (r *Registry) SetBackend(backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == backend {
		return
	}

	r.closeLocked()
	r.backend = backend
}

// Backend returns the currently active backend
func (r *Registry) Backend() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

// Load ensures every capability enabled in the configuration has a loaded
// model handle.  Loading is idempotent per capability, an existing handle
// for the same path is reused.  A changed model path triggers a reload of
// that capability only
func (r *Registry) Load(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == nil {
		return fmt.Errorf("%w: no backend configured", ErrBackendUnavailable)
	}

	type want struct {
		cap     Capability
		path    string
		enabled bool
	}

	wants := []want{
		{CapFace, cfg.Face.ModelPath, cfg.Face.Enabled},
		{CapAge, cfg.Face.Age.ModelPath, cfg.Face.Enabled && cfg.Face.Age.Enabled},
		{CapGender, cfg.Face.Gender.ModelPath, cfg.Face.Enabled && cfg.Face.Gender.Enabled},
		{CapEmotion, cfg.Face.Emotion.ModelPath, cfg.Face.Enabled && cfg.Face.Emotion.Enabled},
		{CapEmbedding, cfg.Face.Embedding.ModelPath, cfg.Face.Enabled && cfg.Face.Embedding.Enabled},
		{CapDescribe, cfg.Face.Describe.ModelPath, cfg.Face.Enabled && cfg.Face.Describe.Enabled},
		{CapBody, cfg.Body.ModelPath, cfg.Body.Enabled},
		{CapHand, cfg.Hand.ModelPath, cfg.Hand.Enabled},
		{CapObject, cfg.Object.ModelPath, cfg.Object.Enabled},
	}

	for _, w := range wants {
		if !w.enabled || w.path == "" {
			continue
		}

		if existing, ok := r.models[w.cap]; ok {
			if existing.Path == w.path {
				// handle reused
				continue
			}

			// path changed, reload this capability.  The old handle is
			// retired and its session survives until in-flight runs drain
			existing.retire()
			delete(r.models, w.cap)
		}

		model, err := r.loadLocked(w.cap, w.path)

		if err != nil {
			return err
		}

		r.models[w.cap] = model
	}

	return nil
}

// loadLocked opens a session and derives the model metadata from its
// declared signature.  Caller holds the registry lock
func (r *Registry) loadLocked(cap Capability, path string) (*Model, error) {

	session, err := r.backend.Open(path)

	if err != nil {
		return nil, fmt.Errorf("%w: %s model at %s: %v", ErrModelLoad, cap, path, err)
	}

	width, height := session.InputShape()

	model := &Model{
		Capability:   cap,
		Path:         path,
		Session:      session,
		InputWidth:   width,
		InputHeight:  height,
		OutputShapes: session.OutputShapes(),
	}

	if cap == CapBody {
		model.Variant = BodyVariantFor(path)
	}

	r.loads++

	return model, nil
}

// Get returns the loaded handle for a capability, or nil when the model has
// not been loaded
func (r *Registry) Get(cap Capability) *Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.models[cap]
}

// Acquire returns the loaded handle for a capability with a reference held,
// or nil when the model has not been loaded.  The caller must Release the
// handle when done so a concurrent reload cannot close the session under a
// running invocation
func (r *Registry) Acquire(cap Capability) *Model {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.models[cap]

	if m == nil {
		return nil
	}

	m.mu.Lock()
	m.refs++
	m.mu.Unlock()

	return m
}

// Loads returns the number of underlying model loads performed
func (r *Registry) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// Close releases all cached model handles
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Registry) closeLocked() {
	for cap, model := range r.models {
		model.retire()
		delete(r.models, cap)
	}
}
