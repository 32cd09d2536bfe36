package percept

import (
	"image"

	"github.com/visionkit/go-percept/postprocess"
	"github.com/visionkit/go-percept/preprocess"
)

// moveNetParts name the 17 keypoints emitted by the MoveNet and PoseNet
// model variants, in output order
var moveNetParts = []string{
	"nose", "leftEye", "rightEye", "leftEar", "rightEar",
	"leftShoulder", "rightShoulder", "leftElbow", "rightElbow",
	"leftWrist", "rightWrist", "leftHip", "rightHip",
	"leftKnee", "rightKnee", "leftAnkle", "rightAnkle",
}

// blazePoseParts name the 33 keypoints emitted by the BlazePose variant
var blazePoseParts = []string{
	"nose", "leftEyeInside", "leftEye", "leftEyeOutside",
	"rightEyeInside", "rightEye", "rightEyeOutside",
	"leftEar", "rightEar", "mouthLeft", "mouthRight",
	"leftShoulder", "rightShoulder", "leftElbow", "rightElbow",
	"leftWrist", "rightWrist", "leftPinky", "rightPinky",
	"leftIndex", "rightIndex", "leftThumb", "rightThumb",
	"leftHip", "rightHip", "leftKnee", "rightKnee",
	"leftAnkle", "rightAnkle", "leftHeel", "rightHeel",
	"leftFoot", "rightFoot",
}

// bodyParts returns the keypoint naming for a body model variant
func bodyParts(variant BodyVariant) []string {
	if variant == BodyBlazePose {
		return blazePoseParts
	}
	return moveNetParts
}

// runBody executes the configured body pose model variant.  The model emits
// one keypoint triple [y, x, score] per body part
func (d *Detector) runBody(img *image.RGBA, cfg Config, scope *Scope) ([]BodyResult, error) {

	model := d.registry.Acquire(CapBody)

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

	parts := bodyParts(model.Variant)
	data := outs.Tensors[0].Data

	if len(data) < 3*len(parts) {
		return nil, nil
	}

	keypoints := make([]Keypoint, 0, len(parts))
	var scoreSum float32

	for i, part := range parts {
		y := data[i*3]
		x := data[i*3+1]
		score := data[i*3+2]
		scoreSum += score

		if score < cfg.Body.MinConfidence {
			continue
		}

		keypoints = append(keypoints, Keypoint{
			Part:  part,
			X:     clampNorm(x),
			Y:     clampNorm(y),
			Score: score,
		})
	}

	avg := scoreSum / float32(len(parts))

	if avg < cfg.Body.MinConfidence || len(keypoints) == 0 {
		return nil, nil
	}

	body := BodyResult{
		ID:        d.ids.GetNext(),
		Score:     avg,
		Box:       keypointExtent(keypoints),
		Keypoints: keypoints,
		Variant:   model.Variant,
	}

	return []BodyResult{body}, nil
}

// keypointExtent returns the normalized bounding box covering the given
// keypoints
func keypointExtent(keypoints []Keypoint) postprocess.Rect {

	box := postprocess.Rect{X1: 1, Y1: 1, X2: 0, Y2: 0}

	for _, kp := range keypoints {
		if kp.X < box.X1 {
			box.X1 = kp.X
		}
		if kp.Y < box.Y1 {
			box.Y1 = kp.Y
		}
		if kp.X > box.X2 {
			box.X2 = kp.X
		}
		if kp.Y > box.Y2 {
			box.Y2 = kp.Y
		}
	}

	return box
}
