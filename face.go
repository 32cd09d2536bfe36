package percept

import (
	"image"

	"gonum.org/v1/gonum/floats"

	"github.com/visionkit/go-percept/postprocess"
	"github.com/visionkit/go-percept/preprocess"
)

// facePartNames are the landmark positions the face detection model emits
// alongside each box
var facePartNames = []string{
	"rightEye", "leftEye", "nose", "mouth", "rightEar", "leftEar",
}

// emotionLabels index the emotion model output channels
var emotionLabels = []string{
	"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral",
}

// describeLabels index the attribute descriptor model output channels
var describeLabels = []string{
	"glasses", "beard", "smile", "hat",
}

// faceCropMargin enlarges the detected box before cropping for the
// attribute models
const faceCropMargin = 0.1

// runFace executes the face detection model and, for each detected face,
// the enabled attribute sub pipeline over a crop of the face region
func (d *Detector) runFace(img *image.RGBA, cfg Config, scope *Scope) ([]FaceResult, error) {

	model := d.registry.Acquire(CapFace)

	if model == nil {
		// model not loaded, resolve with an empty result
		return nil, nil
	}

	defer model.Release()

	input := preprocess.ToTensor(img, model.InputWidth, model.InputHeight)

	outs, err := d.invoke(model, input, scope)

	if err != nil {
		return nil, err
	}

	defer outs.Free()

	faces := d.decodeFaces(outs, cfg, img.Bounds().Dx(), img.Bounds().Dy())

	for i := range faces {
		if err := d.runFaceAttributes(img, cfg, scope, &faces[i]); err != nil {
			return nil, err
		}
	}

	return faces, nil
}

// decodeFaces converts the face model output into results.  The model emits
// one tensor of records [score, x1, y1, x2, y2] followed by six landmark
// coordinate pairs
func (d *Detector) decodeFaces(outs *Outputs, cfg Config, imgW, imgH int) []FaceResult {

	const recordLen = 5 + 2*6

	if len(outs.Tensors) == 0 {
		return nil
	}

	data := outs.Tensors[0].Data
	faces := make([]FaceResult, 0)

	for off := 0; off+recordLen <= len(data); off += recordLen {

		score := data[off]

		if score < cfg.Face.MinConfidence {
			continue
		}

		box := postprocess.Rect{
			X1: clampNorm(data[off+1]),
			Y1: clampNorm(data[off+2]),
			X2: clampNorm(data[off+3]),
			Y2: clampNorm(data[off+4]),
		}

		keypoints := make([]Keypoint, 0, len(facePartNames))

		for k, part := range facePartNames {
			keypoints = append(keypoints, Keypoint{
				Part:  part,
				X:     data[off+5+2*k],
				Y:     data[off+5+2*k+1],
				Score: score,
			})
		}

		faces = append(faces, FaceResult{
			ID:    d.ids.GetNext(),
			Score: score,
			Box:   box,
			BoxPixels: postprocess.BoxRect{
				Left:   int(box.X1 * float32(imgW)),
				Top:    int(box.Y1 * float32(imgH)),
				Right:  int(box.X2 * float32(imgW)),
				Bottom: int(box.Y2 * float32(imgH)),
			},
			Keypoints: keypoints,
		})

		if cfg.Face.MaxResults > 0 && len(faces) >= cfg.Face.MaxResults {
			break
		}
	}

	return faces
}

// runFaceAttributes runs each enabled attribute model over a crop of the
// face region and fills the attribute records on the result
func (d *Detector) runFaceAttributes(img *image.RGBA, cfg Config, scope *Scope,
	face *FaceResult) error {

	crop := func(model *Model) []float32 {
		region := preprocess.CropRegion(img, face.Box.X1, face.Box.Y1,
			face.Box.X2, face.Box.Y2, faceCropMargin,
			model.InputWidth, model.InputHeight)
		return preprocess.ToTensor(region, model.InputWidth, model.InputHeight)
	}

	// runSub invokes one attribute model over the face crop, holding the
	// handle reference for the duration of the run
	runSub := func(cap Capability, decode func(data []float32)) error {

		model := d.registry.Acquire(cap)

		if model == nil {
			return nil
		}

		defer model.Release()

		outs, err := d.invoke(model, crop(model), scope)

		if err != nil {
			return err
		}

		defer outs.Free()

		if len(outs.Tensors) > 0 {
			decode(outs.Tensors[0].Data)
		}

		return nil
	}

	if cfg.Face.Age.Enabled {
		err := runSub(CapAge, func(data []float32) {
			if len(data) > 0 {
				face.Age = data[0]
			}
		})

		if err != nil {
			return err
		}
	}

	if cfg.Face.Gender.Enabled {
		err := runSub(CapGender, func(data []float32) {
			if len(data) < 2 {
				return
			}

			female := data[0]
			male := data[1]

			if male >= female {
				face.Gender = "male"
				face.GenderScore = male
			} else {
				face.Gender = "female"
				face.GenderScore = female
			}
		})

		if err != nil {
			return err
		}
	}

	if cfg.Face.Emotion.Enabled {
		err := runSub(CapEmotion, func(data []float32) {
			face.Emotion = argMaxLabel(data, emotionLabels)
		})

		if err != nil {
			return err
		}
	}

	if cfg.Face.Embedding.Enabled {
		err := runSub(CapEmbedding, func(data []float32) {
			emb := make([]float64, len(data))

			for i, v := range data {
				emb[i] = float64(v)
			}

			face.Embedding = emb
		})

		if err != nil {
			return err
		}
	}

	if cfg.Face.Describe.Enabled {
		err := runSub(CapDescribe, func(data []float32) {
			for i, label := range describeLabels {
				if i < len(data) && data[i] > 0.5 {
					face.Tags = append(face.Tags, label)
				}
			}
		})

		if err != nil {
			return err
		}
	}

	return nil
}

// Similarity returns the cosine similarity of two face embedding vectors in
// the range [-1,1].  Vectors of mismatched length score zero
func Similarity(a, b []float64) float64 {

	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)

	if na == 0 || nb == 0 {
		return 0
	}

	return floats.Dot(a, b) / (na * nb)
}

// argMaxLabel returns the label whose output channel holds the largest value
func argMaxLabel(data []float32, labels []string) string {

	if len(data) == 0 || len(labels) == 0 {
		return ""
	}

	best := 0

	for i := 1; i < len(data) && i < len(labels); i++ {
		if data[i] > data[best] {
			best = i
		}
	}

	return labels[best]
}

func clampNorm(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
