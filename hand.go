package percept

import (
	"image"

	"github.com/visionkit/go-percept/preprocess"
)

// handParts name the 21 landmarks emitted by the hand model, wrist first
// then four joints per finger from base to tip
var handParts = []string{
	"wrist",
	"thumb1", "thumb2", "thumb3", "thumb4",
	"index1", "index2", "index3", "index4",
	"middle1", "middle2", "middle3", "middle4",
	"ring1", "ring2", "ring3", "ring4",
	"pinky1", "pinky2", "pinky3", "pinky4",
}

// runHand executes the hand landmark model.  The model emits one landmark
// triple [x, y, score] per part
func (d *Detector) runHand(img *image.RGBA, cfg Config, scope *Scope) ([]HandResult, error) {

	model := d.registry.Acquire(CapHand)

	if model == nil {
		return nil, nil
	}

	defer model.Release()

	input := preprocess.ToTensor(img, model.InputWidth, model.InputHeight)

	outs, err := d.invoke(model, input, scope)

	if err != nil {
		return nil, err
	}

	defer outs.Free()

	if len(outs.Tensors) == 0 {
		return nil, nil
	}

	data := outs.Tensors[0].Data

	if len(data) < 3*len(handParts) {
		return nil, nil
	}

	keypoints := make([]Keypoint, 0, len(handParts))
	var scoreSum float32

	for i, part := range handParts {
		x := data[i*3]
		y := data[i*3+1]
		score := data[i*3+2]
		scoreSum += score

		keypoints = append(keypoints, Keypoint{
			Part:  part,
			X:     clampNorm(x),
			Y:     clampNorm(y),
			Score: score,
		})
	}

	avg := scoreSum / float32(len(handParts))

	if avg < cfg.Hand.MinConfidence {
		return nil, nil
	}

	hand := HandResult{
		ID:        d.ids.GetNext(),
		Score:     avg,
		Box:       keypointExtent(keypoints),
		Keypoints: keypoints,
	}

	return []HandResult{hand}, nil
}
