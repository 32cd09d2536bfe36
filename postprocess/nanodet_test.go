package postprocess

import (
	"testing"
)

// twoClassParams returns a small synthetic model configuration with a single
// stride over a 2x2 grid and two object classes
func twoClassParams() NanoDetParams {
	return NanoDetParams{
		Strides:         []int{1},
		BaseMultiple:    2,
		ScaleBox:        2.5,
		MinConfidence:   0.5,
		IoUThreshold:    0.45,
		MaxResults:      10,
		BackgroundClass: -1,
		Labels:          []string{"widget", "gadget"},
	}
}

// twoClassOutputs builds the raw output tensor set for the 2x2 grid.  Cell 0
// carries scores 0.9 and 0.8 for the two classes which decode to the same
// box, cell 3 carries a 0.6 score decoding to a distant box.  The regression
// tensor is ordered before the class tensor to exercise shape based matching
func twoClassOutputs() []RawOutput {

	// 4 cells x 8 regression features, groups of 2 per box edge.  The
	// second bucket holds the larger value so the argmax index is 1
	regs := RawOutput{
		Dims: []int{1, 4, 8},
		Data: []float32{
			0, 1, 0, 1, 0, 1, 0, 1,
			0, 0, 0, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 0,
			0, 1, 0, 1, 0, 1, 0, 1,
		},
	}

	// 4 cells x 2 class scores
	scores := RawOutput{
		Dims: []int{1, 4, 2},
		Data: []float32{
			0.9, 0.8,
			0, 0,
			0, 0,
			0.6, 0,
		},
	}

	return []RawOutput{regs, scores}
}

func TestNanoDetDecode(t *testing.T) {

	n := NewNanoDet(twoClassParams())

	candidates := n.Decode(twoClassOutputs(), 16, 160, 160)

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}

	// cell 0 class 0 comes first in insertion order
	if candidates[0].Score != 0.9 || candidates[0].Class != 0 {
		t.Errorf("first candidate got score=%f class=%d",
			candidates[0].Score, candidates[0].Class)
	}

	if candidates[1].Score != 0.8 || candidates[1].Class != 1 {
		t.Errorf("second candidate got score=%f class=%d",
			candidates[1].Score, candidates[1].Class)
	}

	if candidates[0].Label != "widget" || candidates[1].Label != "gadget" {
		t.Errorf("unexpected labels %q %q",
			candidates[0].Label, candidates[1].Label)
	}

	// candidates from the same cell decode to identical boxes
	if candidates[0].Box != candidates[1].Box {
		t.Errorf("cell 0 candidates decoded to different boxes: %v vs %v",
			candidates[0].Box, candidates[1].Box)
	}

	// offset step is scaleBox/stride * baseSize/stride/inputSize = 0.3125
	// with bucket index 1, so cell 0 (center 0.25,0.25) spans to 0.5625
	want := Rect{X1: 0, Y1: 0, X2: 0.5625, Y2: 0.5625}

	if candidates[0].Box != want {
		t.Errorf("cell 0 box got %v, want %v", candidates[0].Box, want)
	}

	// pixel boxes scale with the output shape
	if candidates[0].BoxPixels.Right != 90 || candidates[0].BoxPixels.Bottom != 90 {
		t.Errorf("unexpected pixel box %v", candidates[0].BoxPixels)
	}

	for _, c := range candidates {
		if c.ID == 0 {
			t.Error("candidate emitted without an ID")
		}
		if c.Stride != 1 {
			t.Errorf("candidate stride got %d, want 1", c.Stride)
		}
	}
}

// TestNanoDetDecodeBounds checks every decoded box stays within normalized
// coordinates even when the regression offsets overshoot the image
func TestNanoDetDecodeBounds(t *testing.T) {

	n := NewNanoDet(twoClassParams())

	// inputSize of 2 makes the offset step 2.5, far outside the image
	candidates := n.Decode(twoClassOutputs(), 2, 100, 100)

	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}

	for _, c := range candidates {
		for _, v := range []float32{c.Box.X1, c.Box.Y1, c.Box.X2, c.Box.Y2} {
			if v < 0 || v > 1 {
				t.Errorf("box coordinate %f outside [0,1]", v)
			}
		}
	}
}

// TestNanoDetDecodeNoMatch checks a stride with no matching tensors
// contributes nothing
func TestNanoDetDecodeNoMatch(t *testing.T) {

	n := NewNanoDet(twoClassParams())

	outputs := []RawOutput{
		// wrong cell count for the configured grid
		{Dims: []int{1, 9, 2}, Data: make([]float32, 18)},
	}

	candidates := n.Decode(outputs, 16, 100, 100)

	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(candidates))
	}
}

// TestNanoDetDetectObjects runs the combined decode and suppression scenario.
// The two cell 0 candidates overlap fully so the 0.8 score is suppressed by
// the 0.9, leaving the distant 0.6 in place
func TestNanoDetDetectObjects(t *testing.T) {

	n := NewNanoDet(twoClassParams())

	results := n.DetectObjects(twoClassOutputs(), 16, 160, 160)

	if len(results) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(results))
	}

	if results[0].Score != 0.9 {
		t.Errorf("first detection score got %f, want 0.9", results[0].Score)
	}

	if results[1].Score != 0.6 {
		t.Errorf("second detection score got %f, want 0.6", results[1].Score)
	}
}

// TestNanoDetBackgroundClass checks the configured background class index
// is never emitted
func TestNanoDetBackgroundClass(t *testing.T) {

	p := twoClassParams()
	p.BackgroundClass = 1
	n := NewNanoDet(p)

	candidates := n.Decode(twoClassOutputs(), 16, 160, 160)

	for _, c := range candidates {
		if c.Class == 1 {
			t.Errorf("background class candidate emitted: %+v", c)
		}
	}

	if len(candidates) != 2 {
		t.Errorf("expected 2 candidates with background excluded, got %d",
			len(candidates))
	}
}

// TestNanoDetBindOutputs checks decoding through a signature bound at load
// time matches the per call shape matching fallback, and that a bound
// signature without a stride's tensors yields nothing for that stride
func TestNanoDetBindOutputs(t *testing.T) {

	unbound := NewNanoDet(twoClassParams())
	want := unbound.Decode(twoClassOutputs(), 16, 160, 160)

	bound := NewNanoDet(twoClassParams())
	bound.BindOutputs([][]int{{1, 4, 8}, {1, 4, 2}})

	got := bound.Decode(twoClassOutputs(), 16, 160, 160)

	if len(got) != len(want) {
		t.Fatalf("bound decode got %d candidates, want %d", len(got), len(want))
	}

	for i := range got {
		if got[i].Box != want[i].Box || got[i].Score != want[i].Score ||
			got[i].Class != want[i].Class {
			t.Errorf("candidate %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}

	// a bound signature missing the stride contributes nothing, there is no
	// fallback to shape matching once a signature is bound
	empty := NewNanoDet(twoClassParams())
	empty.BindOutputs([][]int{{1, 9, 2}})

	if c := empty.Decode(twoClassOutputs(), 16, 160, 160); len(c) != 0 {
		t.Errorf("expected no candidates from unbound stride, got %d", len(c))
	}
}

func TestNanoDetDefaultParams(t *testing.T) {

	p := NanoDetDefaultParams()

	if len(p.Strides) != 3 {
		t.Errorf("expected 3 strides, got %d", len(p.Strides))
	}

	if p.BackgroundClass != 61 {
		t.Errorf("background class got %d, want 61", p.BackgroundClass)
	}

	if len(p.Labels) != 80 {
		t.Errorf("expected 80 labels, got %d", len(p.Labels))
	}
}
