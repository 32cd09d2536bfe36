// Package ort provides a compute backend running model sessions on ONNX
// Runtime via the onnxruntime_go bindings.
package ort

import (
	"fmt"

	onnx "github.com/yalue/onnxruntime_go"

	percept "github.com/visionkit/go-percept"
)

// Backend creates ONNX Runtime sessions.  Register it with a Detector under
// the name used in configuration
type Backend struct {
	name string
}

// NewBackend initializes the ONNX Runtime environment and returns a backend
// registered under the given configuration name.  libraryPath locates the
// onnxruntime shared library, pass an empty string to use the default
// search path
func NewBackend(name, libraryPath string) (*Backend, error) {

	if libraryPath != "" {
		onnx.SetSharedLibraryPath(libraryPath)
	}

	if !onnx.IsInitialized() {
		if err := onnx.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("error initializing onnxruntime: %w", err)
		}
	}

	return &Backend{name: name}, nil
}

// Name identifies the backend in configuration
func (b *Backend) Name() string {
	return b.name
}

// Close destroys the ONNX Runtime environment.  All sessions must be closed
// first
func (b *Backend) Close() error {
	return onnx.DestroyEnvironment()
}

// Open loads the model at the given path and binds its input and output
// tensors from the declared signature
func (b *Backend) Open(modelPath string) (percept.Session, error) {

	inputInfo, outputInfo, err := onnx.GetInputOutputInfo(modelPath)

	if err != nil {
		return nil, fmt.Errorf("error reading model signature: %w", err)
	}

	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", modelPath)
	}

	inputShape := concreteShape(inputInfo[0].Dimensions)
	width, height := spatialDims(inputShape)

	inputTensor, err := onnx.NewEmptyTensor[float32](onnx.NewShape(inputShape...))

	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	inputNames := []string{inputInfo[0].Name}
	outputNames := make([]string, len(outputInfo))
	outputValues := make([]onnx.Value, len(outputInfo))
	outputTensors := make([]*onnx.Tensor[float32], len(outputInfo))
	outputShapes := make([][]int, len(outputInfo))

	for i, info := range outputInfo {
		outputNames[i] = info.Name

		shape := concreteShape(info.Dimensions)
		outputShapes[i] = shapeInts(shape)

		t, err := onnx.NewEmptyTensor[float32](onnx.NewShape(shape...))

		if err != nil {
			_ = inputTensor.Destroy()
			return nil, fmt.Errorf("error creating output tensor %d: %w", i, err)
		}

		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := onnx.NewAdvancedSession(modelPath, inputNames, outputNames,
		[]onnx.Value{inputTensor}, outputValues, nil)

	if err != nil {
		_ = inputTensor.Destroy()
		for _, t := range outputTensors {
			_ = t.Destroy()
		}
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &Session{
		session:      session,
		input:        inputTensor,
		outputs:      outputTensors,
		width:        width,
		height:       height,
		outputShapes: outputShapes,
	}, nil
}

// Session wraps one ONNX Runtime advanced session with its pre-allocated
// input and output tensors
type Session struct {
	session *onnx.AdvancedSession
	input   *onnx.Tensor[float32]
	outputs []*onnx.Tensor[float32]

	width        int
	height       int
	outputShapes [][]int
}

// InputShape returns the spatial dimensions declared by the model input
func (s *Session) InputShape() (int, int) {
	return s.width, s.height
}

// OutputShapes returns the declared shape of every output tensor
func (s *Session) OutputShapes() [][]int {
	return s.outputShapes
}

// Run copies the input buffer into the session input tensor, executes the
// graph and returns the output buffers.  Output data is copied out of the
// runtime owned tensors so the returned set is plain Go memory
func (s *Session) Run(input []float32) (*percept.Outputs, error) {

	dst := s.input.GetData()

	if len(input) != len(dst) {
		return nil, fmt.Errorf("input length %d does not match tensor size %d",
			len(input), len(dst))
	}

	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("error running session: %w", err)
	}

	tensors := make([]percept.Tensor, len(s.outputs))

	for i, o := range s.outputs {
		src := o.GetData()
		data := make([]float32, len(src))
		copy(data, src)

		tensors[i] = percept.Tensor{
			Dims: shapeInts(o.GetShape()),
			Data: data,
		}
	}

	return percept.NewOutputs(tensors, nil), nil
}

// Close destroys the session and its tensors
func (s *Session) Close() error {

	if s.session != nil {
		s.session.Destroy()
	}

	if s.input != nil {
		_ = s.input.Destroy()
	}

	for _, t := range s.outputs {
		_ = t.Destroy()
	}

	return nil
}

// concreteShape replaces dynamic dimensions with 1 so empty tensors can be
// pre-allocated
func concreteShape(dims onnx.Shape) []int64 {

	shape := make([]int64, len(dims))

	for i, d := range dims {
		if d <= 0 {
			shape[i] = 1
		} else {
			shape[i] = d
		}
	}

	return shape
}

// spatialDims derives the model input width and height from a 4 dimensional
// shape in either NCHW or NHWC layout
func spatialDims(shape []int64) (width, height int) {

	if len(shape) != 4 {
		return 0, 0
	}

	if shape[1] == 3 || shape[1] == 1 {
		// NCHW
		return int(shape[3]), int(shape[2])
	}

	// NHWC
	return int(shape[2]), int(shape[1])
}

// shapeInts converts an int64 shape to plain ints
func shapeInts(dims []int64) []int {

	out := make([]int, len(dims))

	for i, d := range dims {
		out[i] = int(d)
	}

	return out
}
