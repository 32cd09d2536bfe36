package percept

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visionkit/go-percept/postprocess"
	"github.com/visionkit/go-percept/preprocess"
)

// State names the orchestrator execution phase.  The per capability run
// states are entered in sequential mode only, concurrent mode reports
// StateRunAll while the overlapped pipelines execute
type State int32

const (
	StateIdle State = iota
	StateConfig
	StateCheck
	StateBackend
	StateLoad
	StateRunFace
	StateRunBody
	StateRunHand
	StateRunObject
	StateRunAll
)

// String returns a readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfig:
		return "config"
	case StateCheck:
		return "check"
	case StateBackend:
		return "backend"
	case StateLoad:
		return "load"
	case StateRunFace:
		return "run:face"
	case StateRunBody:
		return "run:body"
	case StateRunHand:
		return "run:hand"
	case StateRunObject:
		return "run:object"
	case StateRunAll:
		return "run:all"
	default:
		return fmt.Sprintf("unknown state %d", int32(s))
	}
}

// Detector orchestrates the perception pipelines against input frames.
// Each Detector owns its own model registry and buffer accounting, multiple
// independent instances can coexist in process.
type Detector struct {
	// mu serializes configuration updates, backend switches and model
	// loads.  Only one of those may be in flight at a time
	mu     sync.Mutex
	config Config

	log      *zap.Logger
	backends map[string]Backend
	registry *Registry
	object   *objectPipeline
	ids      *postprocess.IDGenerator

	buffers BufferTracker
	perf    PerfStats
	state   atomic.Int32

	// stageMax retains the maximum observed elapsed time per stage across
	// calls, a zero elapsed stage never overwrites a longer earlier one
	stageMu  sync.Mutex
	stageMax map[string]float64
}

// DetectorOption configures a Detector at construction
type DetectorOption func(*Detector)

// WithLogger sets the logger, defaults to a no-op logger
func WithLogger(log *zap.Logger) DetectorOption {
	return func(d *Detector) { d.log = log }
}

// WithBackends registers the compute backends model sessions can run on
func WithBackends(backends ...Backend) DetectorOption {
	return func(d *Detector) {
		for _, b := range backends {
			d.backends[b.Name()] = b
		}
	}
}

// New returns a Detector with the given base configuration
func New(cfg Config, opts ...DetectorOption) *Detector {

	d := &Detector{
		config:   cfg,
		log:      zap.NewNop(),
		backends: make(map[string]Backend),
		object:   newObjectPipeline(),
		ids:      postprocess.NewIDGenerator(),
		stageMax: make(map[string]float64),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.registry = NewRegistry(d.backends[cfg.Backend])

	return d
}

// State returns the current orchestrator phase
func (d *Detector) State() State {
	return State(d.state.Load())
}

func (d *Detector) setState(s State) {
	d.state.Store(int32(s))
}

// Config returns a copy of the current base configuration
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// Stats returns the rolling detect latency statistics
func (d *Detector) Stats() *PerfStats {
	return &d.perf
}

// LiveBuffers reports the number of transient buffers currently held.  It
// returns to its pre call baseline after every detect call
func (d *Detector) LiveBuffers() int {
	return d.buffers.Live()
}

// StageMax returns the maximum elapsed milliseconds observed for a stage
// across all sequential detect calls
func (d *Detector) StageMax(stage string) float64 {
	d.stageMu.Lock()
	defer d.stageMu.Unlock()
	return d.stageMax[stage]
}

func (d *Detector) recordStage(perf map[string]float64, stage string, elapsed time.Duration) {

	ms := float64(elapsed.Microseconds()) / 1000.0
	perf[stage] = ms

	d.stageMu.Lock()
	if ms > d.stageMax[stage] {
		d.stageMax[stage] = ms
	}
	d.stageMu.Unlock()
}

// Load merges the given overrides into the base configuration and ensures
// the backend is active and all enabled models are loaded.  Loading is
// idempotent, models already held for unchanged paths are reused
func (d *Detector) Load(overrides ...Option) error {

	d.mu.Lock()
	d.config = d.config.snapshot(overrides...)
	cfg := d.config
	d.mu.Unlock()

	if err := d.ensureBackend(cfg); err != nil {
		return err
	}

	start := time.Now()

	if err := d.registry.Load(cfg); err != nil {
		return err
	}

	d.recordStage(map[string]float64{}, "load", time.Since(start))

	return nil
}

// ensureBackend activates the backend named in the configuration.  The
// switch path is serialized and never re-entered concurrently.  A switch to
// an unavailable backend is logged and the currently active backend is kept,
// the call fails only when no backend is active at all
func (d *Detector) ensureBackend(cfg Config) error {

	d.mu.Lock()
	defer d.mu.Unlock()

	active := d.registry.Backend()

	if active != nil && active.Name() == cfg.Backend {
		return nil
	}

	requested, ok := d.backends[cfg.Backend]

	if !ok {
		if active != nil {
			// degrade to the active backend rather than aborting
			d.log.Warn("requested backend unavailable, keeping active backend",
				zap.String("requested", cfg.Backend),
				zap.String("active", active.Name()))
			return nil
		}

		return fmt.Errorf("%w: backend %q not registered", ErrBackendUnavailable,
			cfg.Backend)
	}

	d.log.Info("switching compute backend", zap.String("backend", cfg.Backend))
	d.registry.SetBackend(requested)

	return nil
}

// Detect runs all enabled pipelines against the input frame and aggregates
// their outputs into one structured result.  Overrides are merged into a
// read-only configuration snapshot for this call only.  Detect always
// resolves with either a well formed result or an error value, never a panic
func (d *Detector) Detect(img image.Image, overrides ...Option) (*Result, error) {

	started := time.Now()

	d.setState(StateConfig)
	defer d.setState(StateIdle)

	d.mu.Lock()
	cfg := d.config.snapshot(overrides...)
	d.mu.Unlock()

	d.setState(StateCheck)

	if img == nil {
		return nil, fmt.Errorf("%w: no input frame", ErrInvalidInput)
	}

	d.setState(StateBackend)

	if err := d.ensureBackend(cfg); err != nil {
		// a missing backend invalidates the whole call
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	d.setState(StateLoad)

	loadStart := time.Now()

	if err := d.registry.Load(cfg); err != nil {
		return nil, err
	}

	perf := make(map[string]float64)
	d.recordStage(perf, "load", time.Since(loadStart))

	// buffer scope boundary: everything allocated by the pipelines that is
	// not part of the final result is released when the scope closes, on
	// every exit path
	var scope *Scope

	if cfg.Scoped {
		scope = newScope()
		defer scope.Close()
	}

	frame := preprocess.Normalize(img)

	if frame == nil {
		return nil, fmt.Errorf("%w: input yielded no pixel buffer", ErrImageConversion)
	}

	result := &Result{
		ID:          uuid.NewString(),
		Canvas:      frame,
		Performance: perf,
	}

	var err error

	if cfg.Async {
		err = d.runConcurrent(frame, cfg, scope, result)
	} else {
		err = d.runSequential(frame, cfg, scope, result)
	}

	if err != nil {
		d.log.Error("detect failed", zap.Error(err))
		return nil, err
	}

	if cfg.Gesture.Enabled {
		result.Gesture = append(result.Gesture, GesturesFromFace(result.Face)...)
		result.Gesture = append(result.Gesture, GesturesFromBody(result.Body)...)
		result.Gesture = append(result.Gesture, GesturesFromHand(result.Hand)...)
	}

	total := float64(time.Since(started).Microseconds()) / 1000.0
	perf["total"] = total
	d.perf.record(total)

	result.Timestamp = time.Now()

	d.log.Debug("detect complete",
		zap.String("id", result.ID),
		zap.Int("faces", len(result.Face)),
		zap.Int("bodies", len(result.Body)),
		zap.Int("hands", len(result.Hand)),
		zap.Int("objects", len(result.Object)),
		zap.Float64("ms", total))

	return result, nil
}

// runSequential awaits each pipeline to completion before the next starts
// and records per stage elapsed time.  A stage's buffers are fully released
// before the next stage allocates
func (d *Detector) runSequential(frame *image.RGBA, cfg Config, scope *Scope,
	result *Result) error {

	if cfg.Face.Enabled {
		d.setState(StateRunFace)
		start := time.Now()

		faces, err := d.runFace(frame, cfg, scope)

		if err != nil {
			return err
		}

		result.Face = faces
		d.recordStage(result.Performance, "face", time.Since(start))
	}

	if cfg.Body.Enabled {
		d.setState(StateRunBody)
		start := time.Now()

		bodies, err := d.runBody(frame, cfg, scope)

		if err != nil {
			return err
		}

		result.Body = bodies
		d.recordStage(result.Performance, "body", time.Since(start))
	}

	if cfg.Hand.Enabled {
		d.setState(StateRunHand)
		start := time.Now()

		hands, err := d.runHand(frame, cfg, scope)

		if err != nil {
			return err
		}

		result.Hand = hands
		d.recordStage(result.Performance, "hand", time.Since(start))
	}

	d.setState(StateRunObject)
	start := time.Now()

	objects, err := d.runObject(frame, cfg, scope)

	if err != nil {
		return err
	}

	result.Object = objects
	d.recordStage(result.Performance, "object", time.Since(start))

	return nil
}

// runConcurrent starts all pipelines without waiting for one another and
// joins them before aggregation.  No ordering is guaranteed between the
// pipelines, but all complete before the enclosing buffer scope closes.
// Wall clock attribution of a single stage is meaningless under overlap so
// per stage timings are not reported
func (d *Detector) runConcurrent(frame *image.RGBA, cfg Config, scope *Scope,
	result *Result) error {

	d.setState(StateRunAll)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	if cfg.Face.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()

			faces, err := d.runFace(frame, cfg, scope)

			if err != nil {
				fail(err)
				return
			}

			mu.Lock()
			result.Face = faces
			mu.Unlock()
		}()
	}

	if cfg.Body.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()

			bodies, err := d.runBody(frame, cfg, scope)

			if err != nil {
				fail(err)
				return
			}

			mu.Lock()
			result.Body = bodies
			mu.Unlock()
		}()
	}

	if cfg.Hand.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()

			hands, err := d.runHand(frame, cfg, scope)

			if err != nil {
				fail(err)
				return
			}

			mu.Lock()
			result.Hand = hands
			mu.Unlock()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		objects, err := d.runObject(frame, cfg, scope)

		if err != nil {
			fail(err)
			return
		}

		mu.Lock()
		result.Object = objects
		mu.Unlock()
	}()

	wg.Wait()

	return firstErr
}

// invoke runs a model session and registers the resulting buffers with the
// call's buffer accounting and scope.  Run calls on one handle are
// serialized, sessions need not support concurrent execution.  Ownership of
// the outputs transfers to the caller which must release them on every exit
// path
func (d *Detector) invoke(model *Model, input []float32, scope *Scope) (*Outputs, error) {

	model.runMu.Lock()
	outs, err := model.Session.Run(input)
	model.runMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInference, model.Capability, err)
	}

	outs.track(&d.buffers)

	if scope != nil {
		scope.Add(outs)
	}

	return outs, nil
}

// Warmup primes the backend and all enabled models by running a detect pass
// over a small synthetic frame
func (d *Detector) Warmup(overrides ...Option) (*Result, error) {

	const size = 256

	img := image.NewRGBA(image.Rect(0, 0, size, size))

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x), G: uint8(y), B: uint8((x + y) / 2), A: 255,
			})
		}
	}

	return d.Detect(img, overrides...)
}

// Close releases all loaded models.  Registered backends remain open, they
// are owned by the caller
func (d *Detector) Close() {
	d.registry.Close()
}
