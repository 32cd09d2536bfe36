package postprocess

import "sync"

// RawOutput is a single output tensor produced by a model invocation.  Data
// is the flattened buffer in row-major order and Dims its declared shape.
// Ownership of the buffer remains with the caller, the decode functions only
// read from it.
type RawOutput struct {
	Dims []int
	Data []float32
}

// Elems returns the total number of elements declared by the tensor shape
func (r RawOutput) Elems() int {
	n := 1
	for _, d := range r.Dims {
		n *= d
	}
	return n
}

// BoxRect are the pixel dimensions of the bounding box of a detected object
type BoxRect struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// Rect is a bounding box in normalized [0,1] image coordinates
type Rect struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

// Candidate defines the attributes of a single detection hypothesis emitted
// by the stride decoder.  Candidates are immutable once created, coordinate
// clamping happens before construction
type Candidate struct {
	// ID is a unique ID assigned to the detection
	ID int64
	// Stride is the grid stride the candidate was decoded from
	Stride int
	// Score is the raw class score as emitted by the model, no activation
	// is applied
	Score float32
	// Class is the index of the detected class in the label set
	Class int
	// Label is the class name corresponding to Class
	Label string
	// Center is the normalized x/y center of the grid cell that produced
	// the candidate
	Center [2]float32
	// Box is the bounding box in normalized [0,1] coordinates
	Box Rect
	// BoxPixels is the bounding box scaled to the source image dimensions
	BoxPixels BoxRect
}

// IDGenerator holds a counter for generating the next incremental ID number
type IDGenerator struct {
	id int64
	sync.Mutex
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental number
func (id *IDGenerator) GetNext() int64 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}
