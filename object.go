package percept

import (
	"image"
	"sync"

	"github.com/visionkit/go-percept/postprocess"
	"github.com/visionkit/go-percept/preprocess"
)

// alwaysDecode is the skip counter sentinel forcing a real decode on the
// next frame when video optimization is off
const alwaysDecode = 1 << 30

// objectPipeline wraps the stride decoder and suppressor with model
// invocation and the video frame-skip cache
type objectPipeline struct {
	// mu guards the cache against overlapping detect calls
	mu   sync.Mutex
	nano *postprocess.NanoDet

	// cache holds the last computed detections plus the skip counter.
	// Reused only while VideoOptimized is set and the counter is below
	// SkipFrames, each reuse increments the counter until a real decode
	// must occur
	cache     []postprocess.Candidate
	skipCount int

	// boundPath and boundLabels record the model path and label count the
	// decoder output binding was derived from, rebinding happens when the
	// loaded model or its label set changes
	boundPath   string
	boundLabels int
}

func newObjectPipeline() *objectPipeline {
	return &objectPipeline{
		nano: postprocess.NewNanoDet(postprocess.NanoDetDefaultParams()),
	}
}

// configure applies the per call thresholds onto the decoder parameters
func (p *objectPipeline) configure(cfg ObjectConfig) {

	p.nano.Params.MinConfidence = cfg.MinConfidence
	p.nano.Params.IoUThreshold = cfg.IoUThreshold
	p.nano.Params.MaxResults = cfg.MaxResults
	p.nano.Params.BackgroundClass = cfg.BackgroundClass

	if len(cfg.Labels) > 0 {
		p.nano.Params.Labels = cfg.Labels
	}
}

// runObject produces the final detection set for the frame, serving it from
// the frame-skip cache when video optimization allows
func (d *Detector) runObject(img *image.RGBA, cfg Config, scope *Scope) ([]postprocess.Candidate, error) {

	if !cfg.Object.Enabled {
		return []postprocess.Candidate{}, nil
	}

	model := d.registry.Acquire(CapObject)

	if model == nil {
		// model not loaded, resolve with an empty result
		return nil, nil
	}

	defer model.Release()

	p := d.object

	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg.VideoOptimized && p.skipCount < cfg.Object.SkipFrames && len(p.cache) > 0 {
		p.skipCount++
		return p.cache, nil
	}

	if cfg.VideoOptimized {
		p.skipCount = 0
	} else {
		p.skipCount = alwaysDecode
	}

	p.configure(cfg.Object)

	// bind output tensor roles once per loaded model signature
	if p.boundPath != model.Path || p.boundLabels != len(p.nano.Params.Labels) {
		p.nano.BindOutputs(model.OutputShapes)
		p.boundPath = model.Path
		p.boundLabels = len(p.nano.Params.Labels)
	}

	input := preprocess.ToTensor(img, model.InputWidth, model.InputHeight)

	outs, err := d.invoke(model, input, scope)

	if err != nil {
		return nil, err
	}

	// every raw output buffer is released before return, the decode stage
	// only returns derived candidates
	defer outs.Free()

	raw := make([]postprocess.RawOutput, len(outs.Tensors))

	for i, t := range outs.Tensors {
		raw[i] = postprocess.RawOutput{Dims: t.Dims, Data: t.Data}
	}

	results := p.nano.DetectObjects(raw, model.InputWidth,
		img.Bounds().Dx(), img.Bounds().Dy())

	p.cache = results

	return results, nil
}
