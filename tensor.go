package percept

import (
	"sync"

	"github.com/x448/float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// ConvertFloat16Buffer converts a raw float16 output buffer to float32 as Go
// has no native FP16 support
func ConvertFloat16Buffer(buf []uint16) []float32 {

	out := make([]float32, len(buf))

	for i, val := range buf {
		out[i] = f16LookupTable[val]
	}

	return out
}

// Tensor is one raw output buffer produced by a model invocation, with its
// declared shape
type Tensor struct {
	// Dims is the declared tensor shape
	Dims []int
	// Data is the flattened buffer in row-major order
	Data []float32
}

// Elems returns the total number of elements declared by the shape
func (t Tensor) Elems() int {
	n := 1
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Outputs is the raw output tensor set of one model invocation.  Ownership
// transfers to the consumer which must release every buffer it does not
// retain, on every exit path.  Free is idempotent so a buffer scope can act
// as a release backstop without risking a double release
type Outputs struct {
	Tensors []Tensor

	// release hands the buffers back to the backend, may be nil for
	// backends whose buffers are plain Go memory
	release func() error

	// freed is a flag to indicate if the buffers have been released or not
	freed bool
	// mutex to lock access to the freed variable
	sync.Mutex

	tracker *BufferTracker
}

// NewOutputs wraps the given tensors into an owned output set.  release is
// invoked once on Free and may be nil
func NewOutputs(tensors []Tensor, release func() error) *Outputs {
	return &Outputs{
		Tensors: tensors,
		release: release,
	}
}

// track registers the output set with a live buffer tracker.  Used by the
// orchestrator to account for every transient buffer a detect call allocates
func (o *Outputs) track(t *BufferTracker) {
	o.Lock()
	defer o.Unlock()

	if o.tracker == nil && !o.freed {
		o.tracker = t
		t.add(len(o.Tensors))
	}
}

// Free releases the buffers holding the inference outputs.  Calling Free on
// an already freed set is a no-op
func (o *Outputs) Free() error {
	o.Lock()
	defer o.Unlock()

	if o.freed {
		// buffers already released
		return nil
	}

	o.freed = true

	if o.tracker != nil {
		o.tracker.remove(len(o.Tensors))
	}

	if o.release != nil {
		return o.release()
	}

	return nil
}

// BufferTracker counts live transient buffers so callers can verify every
// detect call returns the count to its pre call baseline
type BufferTracker struct {
	mu   sync.Mutex
	live int
}

func (b *BufferTracker) add(n int) {
	b.mu.Lock()
	b.live += n
	b.mu.Unlock()
}

func (b *BufferTracker) remove(n int) {
	b.mu.Lock()
	b.live -= n
	b.mu.Unlock()
}

// Live returns the number of currently live transient buffers
func (b *BufferTracker) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}
