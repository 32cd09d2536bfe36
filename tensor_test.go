package percept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertFloat16Buffer(t *testing.T) {

	// 0x3C00 is 1.0, 0xC000 is -2.0 and 0x0000 is 0.0 in IEEE half precision
	out := ConvertFloat16Buffer([]uint16{0x3C00, 0xC000, 0x0000})

	require.Len(t, out, 3)
	assert.Equal(t, float32(1.0), out[0])
	assert.Equal(t, float32(-2.0), out[1])
	assert.Equal(t, float32(0.0), out[2])
}

func TestTensorElems(t *testing.T) {

	tensor := Tensor{Dims: []int{1, 13, 13, 4}}
	assert.Equal(t, 676, tensor.Elems())

	assert.Equal(t, 1, Tensor{}.Elems())
}

func TestOutputsFreeIdempotent(t *testing.T) {

	released := 0

	outs := NewOutputs([]Tensor{{Dims: []int{1}, Data: []float32{1}}},
		func() error {
			released++
			return nil
		})

	require.NoError(t, outs.Free())
	require.NoError(t, outs.Free())

	assert.Equal(t, 1, released)
}

func TestOutputsTracking(t *testing.T) {

	var tracker BufferTracker

	outs := NewOutputs([]Tensor{
		{Dims: []int{1}, Data: []float32{1}},
		{Dims: []int{1}, Data: []float32{2}},
	}, nil)

	outs.track(&tracker)
	assert.Equal(t, 2, tracker.Live())

	// re-tracking the same set does not double count
	outs.track(&tracker)
	assert.Equal(t, 2, tracker.Live())

	require.NoError(t, outs.Free())
	assert.Equal(t, 0, tracker.Live())

	// repeated free never drives the count negative
	require.NoError(t, outs.Free())
	assert.Equal(t, 0, tracker.Live())
}

func TestScopeReleasesAll(t *testing.T) {

	var tracker BufferTracker

	scope := newScope()

	first := NewOutputs([]Tensor{{Dims: []int{1}, Data: []float32{1}}}, nil)
	second := NewOutputs([]Tensor{{Dims: []int{1}, Data: []float32{2}}}, nil)

	first.track(&tracker)
	second.track(&tracker)

	scope.Add(first)
	scope.Add(second)
	scope.Add(nil)

	// an eager release before scope close must not double release
	require.NoError(t, first.Free())

	scope.Close()

	assert.Equal(t, 0, tracker.Live())
}
