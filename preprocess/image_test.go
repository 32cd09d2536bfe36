package preprocess

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	return img
}

func TestNormalize(t *testing.T) {

	if Normalize(nil) != nil {
		t.Error("nil input should normalize to nil")
	}

	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))

	if Normalize(empty) != nil {
		t.Error("empty input should normalize to nil")
	}

	src := solidImage(4, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	if got := Normalize(src); got != src {
		t.Error("RGBA input should pass through unchanged")
	}

	// non RGBA input is converted
	gray := image.NewGray(image.Rect(0, 0, 4, 4))

	if got := Normalize(gray); got == nil {
		t.Error("gray input should convert to RGBA")
	}
}

func TestToTensor(t *testing.T) {

	src := solidImage(8, 8, color.RGBA{R: 255, G: 0, B: 127, A: 255})

	buf := ToTensor(src, 4, 4)

	if len(buf) != 3*4*4 {
		t.Fatalf("buffer length got %d, want %d", len(buf), 3*4*4)
	}

	channelSize := 4 * 4

	// planar layout: full red channel, empty green, mid blue
	if buf[0] != 1.0 {
		t.Errorf("red channel got %f, want 1.0", buf[0])
	}

	if buf[channelSize] != 0.0 {
		t.Errorf("green channel got %f, want 0.0", buf[channelSize])
	}

	b := buf[2*channelSize]

	if b < 0.45 || b > 0.55 {
		t.Errorf("blue channel got %f, want around 0.5", b)
	}
}

func TestCropRegion(t *testing.T) {

	src := solidImage(100, 100, color.RGBA{R: 50, G: 50, B: 50, A: 255})

	crop := CropRegion(src, 0.25, 0.25, 0.75, 0.75, 0, 32, 32)

	b := crop.Bounds()

	if b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("crop dimensions got %dx%d, want 32x32", b.Dx(), b.Dy())
	}

	// margins beyond the image edge clamp rather than fail
	crop = CropRegion(src, 0.9, 0.9, 1.0, 1.0, 0.5, 16, 16)

	if crop.Bounds().Dx() != 16 {
		t.Errorf("clamped crop width got %d, want 16", crop.Bounds().Dx())
	}

	// degenerate region returns a blank canvas of the requested size
	crop = CropRegion(src, 0.5, 0.5, 0.5, 0.5, 0, 8, 8)

	if crop.Bounds().Dx() != 8 || crop.Bounds().Dy() != 8 {
		t.Errorf("degenerate crop got %v", crop.Bounds())
	}
}
