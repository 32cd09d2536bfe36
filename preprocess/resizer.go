// Package preprocess converts caller supplied pixel buffers into the
// normalized tensors the perception models expect.  Still images arrive as
// image.Image, video frames as gocv.Mat.
package preprocess

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Resizer scales video frames to a model input size whilst maintaining the
// source aspect ratio, padding the remainder with a letterbox border
type Resizer struct {
	// source frame dimensions
	srcWidth  int
	srcHeight int
	// model input dimensions to scale to
	destWidth  int
	destHeight int
	// tempMat is reused between frames during the resize process
	tempMat gocv.Mat
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions before padding
	resizeW int
	resizeH int
}

// NewResizer returns a resizer scaling frames of the given source dimensions
// to the model input tensor dimensions
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	r.preCalc()

	return r
}

// Close frees memory allocated during the resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// preCalc the scaling factors for source and destination Mats
func (r *Resizer) preCalc() {

	r.resizeW = r.destWidth
	r.resizeH = r.destHeight

	scaleW := float32(r.destWidth) / float32(r.srcWidth)
	scaleH := float32(r.destHeight) / float32(r.srcHeight)
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.resizeH = int(float32(r.srcHeight) * r.scale)
	} else {
		r.resizeW = int(float32(r.srcWidth) * r.scale)
	}

	r.yPad = (r.destHeight - r.resizeH) / 2
	r.xPad = (r.destWidth - r.resizeW) / 2
}

// LetterBoxResize resizes the source frame to the model input dimensions
// whilst maintaining the image aspect.  Color is used for the letterbox
// padding
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.yPad, r.destHeight-r.resizeH-r.yPad,
		r.xPad, r.destWidth-r.resizeW-r.xPad, gocv.BorderConstant, color)
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}

// MatToImage converts a BGR video frame into an image.RGBA for the
// orchestrator's image based pipeline entry point
func MatToImage(src gocv.Mat) (*image.RGBA, error) {

	rgb := gocv.NewMat()
	defer rgb.Close()

	gocv.CvtColor(src, &rgb, gocv.ColorBGRToRGBA)

	img, err := rgb.ToImage()

	if err != nil {
		return nil, err
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}

	b := img.Bounds()
	rgba := image.NewRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}

	return rgba, nil
}
