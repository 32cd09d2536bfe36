package preprocess

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestResizerLetterBoxParams(t *testing.T) {

	tests := []struct {
		srcW, srcH   int
		destW, destH int
		scale        float32
		xPad, yPad   int
	}{
		// wide source pads top and bottom
		{1920, 1080, 640, 640, 640.0 / 1920.0, 0, 140},
		// tall source pads left and right
		{1080, 1920, 640, 640, 640.0 / 1920.0, 140, 0},
		// matching aspect needs no padding
		{1280, 1280, 640, 640, 0.5, 0, 0},
	}

	for _, tt := range tests {

		r := NewResizer(tt.srcW, tt.srcH, tt.destW, tt.destH)

		if r.ScaleFactor() != tt.scale {
			t.Errorf("%dx%d: got scale %f, want %f", tt.srcW, tt.srcH,
				r.ScaleFactor(), tt.scale)
		}

		if r.XPad() != tt.xPad || r.YPad() != tt.yPad {
			t.Errorf("%dx%d: got pad (%d,%d), want (%d,%d)", tt.srcW, tt.srcH,
				r.XPad(), r.YPad(), tt.xPad, tt.yPad)
		}

		r.Close()
	}
}

func TestResizerLetterBoxResize(t *testing.T) {

	src := gocv.NewMatWithSize(90, 160, gocv.MatTypeCV8UC3)
	defer src.Close()

	r := NewResizer(160, 90, 64, 64)
	defer r.Close()

	dest := gocv.NewMat()
	defer dest.Close()

	r.LetterBoxResize(src, &dest, color.RGBA{})

	if dest.Cols() != 64 || dest.Rows() != 64 {
		t.Errorf("got output %dx%d, want 64x64", dest.Cols(), dest.Rows())
	}
}

func TestMatToImage(t *testing.T) {

	src := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer src.Close()

	img, err := MatToImage(src)

	if err != nil {
		t.Fatalf("error converting mat: %v", err)
	}

	want := image.Rect(0, 0, 64, 48)

	if img.Bounds() != want {
		t.Errorf("got bounds %v, want %v", img.Bounds(), want)
	}
}
