package postprocess

// NanoDet defines the struct for NanoDet model inference post processing.
// The model emits one class-score tensor and one box-regression tensor per
// spatial stride, the decoder turns those into labelled bounding box
// candidates which are then reduced by Suppress
type NanoDet struct {
	// Params are the model configuration parameters
	Params NanoDetParams

	// bindings map stride to bound output tensor indices, set once by
	// BindOutputs when the model signature is known at load time
	bindings map[int]strideBinding

	idGen *IDGenerator
}

// strideBinding records which output tensor index serves which semantic role
// for one stride grid
type strideBinding struct {
	scores int
	regs   int
}

// NanoDetParams defines the struct containing the NanoDet parameters to use
// for post processing operations
type NanoDetParams struct {
	// Strides is the ordered set of grid strides the model emits outputs
	// for.  Each stride produces a grid of (stride*BaseMultiple)^2 cells
	Strides []int
	// BaseMultiple is the factor a stride is multiplied by to obtain the
	// grid edge length
	BaseMultiple int
	// ScaleBox is a fixed enlargement constant compensating for the coarse
	// discretization of the regression offsets
	ScaleBox float32
	// MinConfidence is the minimum raw score required for a grid cell and
	// class pair to be emitted as a candidate
	MinConfidence float32
	// IoUThreshold is the Non-Maximum Suppression threshold defining the
	// maximum allowed Intersection over Union between two boxes for both
	// to be kept
	IoUThreshold float32
	// MaxResults is the maximum number of detections returned after
	// suppression.  Zero or negative means unlimited
	MaxResults int
	// BackgroundClass is the class index excluded during decoding.  This is
	// tied to the label set the model was trained with, set to -1 if the
	// label set has no background class
	BackgroundClass int
	// Labels are the class names the model was trained with
	Labels []string
}

// NanoDetDefaultParams returns an instance of NanoDetParams configured with
// default values for the stock NanoDet object model featuring:
//   - Strides 1, 2 and 4 over a base grid multiple of 13
//   - Box enlargement constant of 2.5
//   - Background class at label index 61
//   - Min Confidence: 0.20
//   - IoU Threshold: 0.45
//   - Maximum results: 10
func NanoDetDefaultParams() NanoDetParams {
	return NanoDetParams{
		Strides:         []int{1, 2, 4},
		BaseMultiple:    13,
		ScaleBox:        2.5,
		MinConfidence:   0.20,
		IoUThreshold:    0.45,
		MaxResults:      10,
		BackgroundClass: 61,
		Labels:          ObjectLabels(),
	}
}

// NewNanoDet returns an instance of the NanoDet post processor
func NewNanoDet(p NanoDetParams) *NanoDet {
	return &NanoDet{
		Params: p,
		idGen:  NewIDGenerator(),
	}
}

// BindOutputs resolves the output tensor index serving each stride once from
// the declared model signature, so per call decoding addresses tensors by
// bound index instead of re-matching shapes on every inference.  Tensor
// ordering is a structural contract with the model, a changed signature
// requires rebinding
func (n *NanoDet) BindOutputs(shapes [][]int) {

	numLabels := len(n.Params.Labels)
	bindings := make(map[int]strideBinding)

	for _, stride := range n.Params.Strides {

		baseSize := stride * n.Params.BaseMultiple
		cells := baseSize * baseSize
		binding := strideBinding{scores: -1, regs: -1}

		for i, dims := range shapes {

			if len(dims) < 3 || dims[1] != cells {
				continue
			}

			last := dims[len(dims)-1]

			if last == numLabels {
				binding.scores = i
			} else if last%4 == 0 {
				binding.regs = i
			}
		}

		if binding.scores >= 0 && binding.regs >= 0 {
			bindings[stride] = binding
		}
	}

	n.bindings = bindings
}

// matchStride locates the class-score and box-regression tensors for a grid
// of the given cell count.  Matching is done by shape rather than output
// order as tensor ordering is not guaranteed stable across model variants.
// The class tensor is the one whose second dimension equals the cell count
// and whose last dimension equals the label count, the regression tensor is
// its sibling with the same leading dimensions whose last dimension differs
// from the label count and splits into four edge groups
func (n *NanoDet) matchStride(outputs []RawOutput, cells int) (scores, regs *RawOutput) {

	numLabels := len(n.Params.Labels)

	for i := range outputs {
		dims := outputs[i].Dims

		if len(dims) < 3 || dims[1] != cells {
			continue
		}

		last := dims[len(dims)-1]

		if last == numLabels {
			scores = &outputs[i]
		} else if last%4 == 0 {
			regs = &outputs[i]
		}
	}

	return scores, regs
}

// Decode converts the raw output tensor set into normalized candidate boxes
// across all strides.  inputSize is the square edge length of the model
// input tensor, outWidth and outHeight are the source image dimensions used
// to produce pixel space boxes.  A stride with no matching tensors
// contributes nothing
func (n *NanoDet) Decode(outputs []RawOutput, inputSize, outWidth, outHeight int) []Candidate {

	candidates := make([]Candidate, 0)

	for _, stride := range n.Params.Strides {

		baseSize := stride * n.Params.BaseMultiple
		cells := baseSize * baseSize

		var scores, regs *RawOutput

		if binding, ok := n.bindings[stride]; ok {
			if binding.scores < len(outputs) && binding.regs < len(outputs) {
				scores = &outputs[binding.scores]
				regs = &outputs[binding.regs]
			}
		} else if n.bindings == nil {
			// no signature bound, fall back to per call shape matching
			scores, regs = n.matchStride(outputs, cells)
		}

		if scores == nil || regs == nil {
			continue
		}

		candidates = append(candidates,
			n.decodeStride(scores, regs, stride, baseSize, inputSize,
				outWidth, outHeight)...)
	}

	return candidates
}

// decodeStride decodes a single stride grid into candidates
func (n *NanoDet) decodeStride(scores, regs *RawOutput, stride, baseSize,
	inputSize, outWidth, outHeight int) []Candidate {

	numLabels := len(n.Params.Labels)
	cells := baseSize * baseSize
	regLen := regs.Dims[len(regs.Dims)-1]
	groupLen := regLen / 4

	// each regression index encodes a discretized offset of groupLen buckets
	// per box edge.  The bucket index itself, not the feature value, is the
	// regression magnitude.  This mirrors the model's original post
	// processing and must not be replaced with the maximum value
	found := make([]Candidate, 0)

	for i := 0; i < cells; i++ {

		var offsets []int

		for j := 0; j < numLabels; j++ {

			score := scores.Data[i*numLabels+j]

			if score <= n.Params.MinConfidence || j == n.Params.BackgroundClass {
				continue
			}

			// argmax the regression groups once per cell, on first hit
			if offsets == nil {
				offsets = argMaxGroups(regs.Data[i*regLen:(i+1)*regLen], groupLen)
			}

			row := i / baseSize
			col := i % baseSize

			cx := (float32(col) + 0.5) / float32(baseSize)
			cy := (float32(row) + 0.5) / float32(baseSize)

			// offset per bucket index, normalized against the input tensor
			// size.  baseSize/stride is the constant grid multiple
			unit := float32(baseSize) / float32(stride) / float32(inputSize)
			step := n.Params.ScaleBox / float32(stride) * unit

			box := Rect{
				X1: clamp01(cx - step*float32(offsets[0])),
				Y1: clamp01(cy - step*float32(offsets[1])),
				X2: clamp01(cx + step*float32(offsets[2])),
				Y2: clamp01(cy + step*float32(offsets[3])),
			}

			found = append(found, Candidate{
				ID:     n.idGen.GetNext(),
				Stride: stride,
				Score:  score,
				Class:  j,
				Label:  n.label(j),
				Center: [2]float32{cx, cy},
				Box:    box,
				BoxPixels: BoxRect{
					Left:   int(box.X1 * float32(outWidth)),
					Top:    int(box.Y1 * float32(outHeight)),
					Right:  int(box.X2 * float32(outWidth)),
					Bottom: int(box.Y2 * float32(outHeight)),
				},
			})
		}
	}

	return found
}

// DetectObjects runs the full decode and suppression pipeline over the raw
// output tensor set and returns the final ranked detections
func (n *NanoDet) DetectObjects(outputs []RawOutput, inputSize, outWidth,
	outHeight int) []Candidate {

	candidates := n.Decode(outputs, inputSize, outWidth, outHeight)

	return Suppress(candidates, n.Params.MaxResults, n.Params.IoUThreshold)
}

func (n *NanoDet) label(class int) string {
	if class >= 0 && class < len(n.Params.Labels) {
		return n.Params.Labels[class]
	}
	return "unknown"
}
