package percept

import (
	"image"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/visionkit/go-percept/postprocess"
)

// Keypoint is a single named landmark position in normalized coordinates
type Keypoint struct {
	Part  string
	X     float32
	Y     float32
	Score float32
}

// FaceResult is one detected face with its attribute records
type FaceResult struct {
	ID    int64
	Score float32
	Box   postprocess.Rect
	// BoxPixels is the face box scaled to source image dimensions
	BoxPixels postprocess.BoxRect
	Keypoints []Keypoint

	// attribute records from the face sub pipeline, zero valued when the
	// corresponding model is disabled
	Age         float32
	Gender      string
	GenderScore float32
	Emotion     string
	// Embedding is the face descriptor vector used for similarity matching
	Embedding []float64
	// Tags are descriptor attributes above threshold
	Tags []string
}

// BodyResult is one detected body pose
type BodyResult struct {
	ID        int64
	Score     float32
	Box       postprocess.Rect
	Keypoints []Keypoint
	Variant   BodyVariant
}

// HandResult is one detected hand
type HandResult struct {
	ID        int64
	Score     float32
	Box       postprocess.Rect
	Keypoints []Keypoint
}

// Gesture is a derived annotation naming the source result it was derived
// from
type Gesture struct {
	// Source is the capability the gesture was derived from
	Source string
	// Index of the source result within its array
	Index int
	// Name of the matched gesture
	Name string
}

// Result is the aggregated output of one detect call.  It is immutable once
// returned
type Result struct {
	// ID uniquely identifies the detect call
	ID string
	// Timestamp of when the detection completed
	Timestamp time.Time

	Face    []FaceResult
	Body    []BodyResult
	Hand    []HandResult
	Object  []postprocess.Candidate
	Gesture []Gesture

	// Performance maps stage name to elapsed milliseconds.  Per stage
	// entries are present in sequential mode only, total is always present
	Performance map[string]float64

	// Canvas is the processed visual buffer the detections refer to
	Canvas image.Image
}

// perfWindow is the number of recent detect durations kept for statistics
const perfWindow = 64

// PerfStats keeps a rolling window of detect call durations and summarizes
// them
type PerfStats struct {
	mu      sync.Mutex
	samples []float64
}

// record adds a duration in milliseconds to the rolling window
func (p *PerfStats) record(ms float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples = append(p.samples, ms)

	if len(p.samples) > perfWindow {
		p.samples = p.samples[len(p.samples)-perfWindow:]
	}
}

// Summary reports mean, median and 95th percentile of recent detect call
// durations in milliseconds
func (p *PerfStats) Summary() (mean, median, p95 float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.samples) == 0 {
		return 0, 0, 0
	}

	mean, _ = stats.Mean(p.samples)
	median, _ = stats.Median(p.samples)
	p95, _ = stats.Percentile(p.samples, 95)

	return mean, median, p95
}

// Count returns the number of samples currently in the window
func (p *PerfStats) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}
