package percept

// Gesture derivation is a pure pass over already computed pipeline results,
// no model is invoked.  Empty input always yields empty output.

// facingTolerance is the normalized nose offset from the eye midpoint below
// which a face counts as facing the camera
const facingTolerance = 0.02

// GesturesFromFace derives facing direction annotations from face landmarks
func GesturesFromFace(faces []FaceResult) []Gesture {

	gestures := make([]Gesture, 0)

	for i, face := range faces {

		nose, okN := findKeypoint(face.Keypoints, "nose")
		left, okL := findKeypoint(face.Keypoints, "leftEye")
		right, okR := findKeypoint(face.Keypoints, "rightEye")

		if !okN || !okL || !okR {
			continue
		}

		mid := (left.X + right.X) / 2
		offset := nose.X - mid

		name := "facing center"

		if offset > facingTolerance {
			name = "facing left"
		} else if offset < -facingTolerance {
			name = "facing right"
		}

		gestures = append(gestures, Gesture{Source: "face", Index: i, Name: name})
	}

	return gestures
}

// GesturesFromBody derives raised hand and leaning annotations from body
// keypoints
func GesturesFromBody(bodies []BodyResult) []Gesture {

	gestures := make([]Gesture, 0)

	for i, body := range bodies {

		lw, okLW := findKeypoint(body.Keypoints, "leftWrist")
		ls, okLS := findKeypoint(body.Keypoints, "leftShoulder")
		rw, okRW := findKeypoint(body.Keypoints, "rightWrist")
		rs, okRS := findKeypoint(body.Keypoints, "rightShoulder")

		// y grows downward, a wrist above its shoulder has a smaller y
		if okLW && okLS && lw.Y < ls.Y {
			gestures = append(gestures, Gesture{Source: "body", Index: i,
				Name: "raise left hand"})
		}

		if okRW && okRS && rw.Y < rs.Y {
			gestures = append(gestures, Gesture{Source: "body", Index: i,
				Name: "raise right hand"})
		}

		lh, okLH := findKeypoint(body.Keypoints, "leftHip")
		rh, okRH := findKeypoint(body.Keypoints, "rightHip")

		if okLS && okRS && okLH && okRH {
			shoulderMid := (ls.X + rs.X) / 2
			hipMid := (lh.X + rh.X) / 2

			if shoulderMid-hipMid > facingTolerance {
				gestures = append(gestures, Gesture{Source: "body", Index: i,
					Name: "leaning right"})
			} else if hipMid-shoulderMid > facingTolerance {
				gestures = append(gestures, Gesture{Source: "body", Index: i,
					Name: "leaning left"})
			}
		}
	}

	return gestures
}

// GesturesFromHand derives extended finger annotations from hand landmarks
func GesturesFromHand(hands []HandResult) []Gesture {

	fingers := []struct {
		name string
		base string
		tip  string
	}{
		{"thumb", "thumb1", "thumb4"},
		{"index", "index1", "index4"},
		{"middle", "middle1", "middle4"},
		{"ring", "ring1", "ring4"},
		{"pinky", "pinky1", "pinky4"},
	}

	gestures := make([]Gesture, 0)

	for i, hand := range hands {
		for _, f := range fingers {

			base, okB := findKeypoint(hand.Keypoints, f.base)
			tip, okT := findKeypoint(hand.Keypoints, f.tip)

			if okB && okT && tip.Y < base.Y {
				gestures = append(gestures, Gesture{Source: "hand", Index: i,
					Name: f.name + " up"})
			}
		}
	}

	return gestures
}

func findKeypoint(keypoints []Keypoint, part string) (Keypoint, bool) {

	for _, kp := range keypoints {
		if kp.Part == part {
			return kp, true
		}
	}

	return Keypoint{}, false
}
