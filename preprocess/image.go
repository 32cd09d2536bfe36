package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Normalize validates the input and converts it into an RGBA buffer shared
// by all capability pipelines.  It returns nil when the input carries no
// usable pixels
func Normalize(img image.Image) *image.RGBA {

	if img == nil {
		return nil
	}

	b := img.Bounds()

	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return rgba
}

// ToTensor scales the image to width x height and lays the pixels out as a
// planar NCHW float32 buffer with values normalized to [0,1]
func ToTensor(img image.Image, width, height int) []float32 {

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	channelSize := width * height
	buffer := make([]float32, 3*channelSize)

	for y := 0; y < height; y++ {
		offset := y * width
		for x := 0; x < width; x++ {
			i := offset + x
			p := scaled.PixOffset(x, y)
			buffer[i] = float32(scaled.Pix[p]) / 255.0
			buffer[channelSize+i] = float32(scaled.Pix[p+1]) / 255.0
			buffer[channelSize*2+i] = float32(scaled.Pix[p+2]) / 255.0
		}
	}

	return buffer
}

// CropRegion extracts the normalized box region from the source image,
// enlarged by margin on every side, and scales it to width x height.  Used
// to hand face crops to the attribute models
func CropRegion(img image.Image, x1, y1, x2, y2 float32, margin float32,
	width, height int) image.Image {

	b := img.Bounds()
	w := float32(b.Dx())
	h := float32(b.Dy())

	left := int((x1 - margin) * w)
	top := int((y1 - margin) * h)
	right := int((x2 + margin) * w)
	bottom := int((y2 + margin) * h)

	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	if right > b.Dx() {
		right = b.Dx()
	}
	if bottom > b.Dy() {
		bottom = b.Dy()
	}

	if right <= left || bottom <= top {
		return imaging.New(width, height, image.Transparent.C)
	}

	crop := imaging.Crop(img, image.Rect(left, top, right, bottom))

	return imaging.Resize(crop, width, height, imaging.Linear)
}
