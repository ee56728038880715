package ugoira

import (
	"bytes"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-g-everett/ugoiratx/apng"
)

func contractPanic(t *testing.T, f func()) *ContractViolation {
	t.Helper()
	var got interface{}
	func() {
		defer func() { got = recover() }()
		f()
	}()
	require.NotNil(t, got, "expected a panic")
	cv, ok := got.(*ContractViolation)
	require.True(t, ok, "panic value %#v is not a *ContractViolation", got)
	return cv
}

func TestAPNGEncoderStates(t *testing.T) {
	e := NewAPNGEncoder(EncoderOptions{})
	assert.Equal(t, StateEmpty, e.State())

	cv := contractPanic(t, func() { _, _ = e.Finalize() })
	assert.Equal(t, "Finalize", cv.Op)
	assert.Equal(t, StateEmpty, cv.State)

	require.NoError(t, e.AddFrame(solidFrame(2, 2, frameColour(0)), 40))
	assert.Equal(t, StateAccumulating, e.State())
	require.NoError(t, e.AddFrame(solidFrame(2, 2, frameColour(1)), 40))
	assert.Equal(t, 2, e.Len())

	out, err := e.Finalize()
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, StateFinalized, e.State())

	cv = contractPanic(t, func() { _ = e.AddFrame(solidFrame(2, 2, frameColour(2)), 40) })
	assert.Equal(t, "AddFrame", cv.Op)
	assert.Equal(t, StateFinalized, cv.State)

	cv = contractPanic(t, func() { _, _ = e.Finalize() })
	assert.Equal(t, "Finalize", cv.Op)
	assert.Contains(t, cv.Error(), "finalized")
}

func TestAPNGEncoderDelayIsExact(t *testing.T) {
	e := NewAPNGEncoder(EncoderOptions{})
	for _, ms := range []uint32{40, 1, 0, 65535, 70000} {
		require.NoError(t, e.AddFrame(solidFrame(1, 1, frameColour(0)), ms))
	}
	out, err := e.Finalize()
	require.NoError(t, err)

	a, err := apng.DecodeAll(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, a.Frames, 5)

	want := []struct {
		num, den uint16
		d        time.Duration
	}{
		{40, 1000, 40 * time.Millisecond},
		{1, 1000, time.Millisecond},
		{0, 1000, 0},
		{65535, 1000, 65535 * time.Millisecond},
		{70, 1, 70 * time.Second},
	}
	for i, w := range want {
		c := a.Frames[i].Control
		assert.Equal(t, w.num, c.DelayNum, "frame %d", i)
		assert.Equal(t, w.den, c.DelayDen, "frame %d", i)
		assert.Equal(t, w.d, c.Delay(), "frame %d", i)
	}
}

func TestFrameDelayRange(t *testing.T) {
	_, _, err := frameDelay(65537)
	assert.ErrorIs(t, err, ErrDelayRange)

	num, den, err := frameDelay(131070)
	require.NoError(t, err)
	assert.Equal(t, uint16(13107), num)
	assert.Equal(t, uint16(100), den)

	e := NewAPNGEncoder(EncoderOptions{})
	assert.ErrorIs(t, e.AddFrame(solidFrame(1, 1, frameColour(0)), 65537), ErrDelayRange)
	assert.Equal(t, StateEmpty, e.State())
}

func TestAPNGEncoderResamplesToCanvas(t *testing.T) {
	e := NewAPNGEncoder(EncoderOptions{Plays: 3})
	require.NoError(t, e.AddFrame(solidFrame(4, 4, frameColour(0)), 10))
	blue := color.NRGBA{B: 255, A: 255}
	require.NoError(t, e.AddFrame(solidFrame(8, 8, blue), 10))

	out, err := e.Finalize()
	require.NoError(t, err)
	a, err := apng.DecodeAll(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, uint32(3), a.NumPlays)
	require.Len(t, a.Frames, 2)
	assert.Equal(t, image.Rect(0, 0, 4, 4), a.Frames[1].Image.Bounds())
	assert.Equal(t, blue, color.NRGBAModel.Convert(a.Frames[1].Image.At(2, 2)))
}

func TestAPNGEncoderMatte(t *testing.T) {
	white := colorful.Color{R: 1, G: 1, B: 1}
	e := NewAPNGEncoder(EncoderOptions{Matte: &white})

	require.NoError(t, e.AddFrame(image.NewNRGBA(image.Rect(0, 0, 2, 2)), 10))
	out, err := e.Finalize()
	require.NoError(t, err)

	a, err := apng.DecodeAll(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, color.NRGBAModel.Convert(a.Frames[0].Image.At(1, 1)))
}

func TestAPNGEncoderEmptyFrame(t *testing.T) {
	e := NewAPNGEncoder(EncoderOptions{})
	err := e.AddFrame(image.NewNRGBA(image.Rectangle{}), 10)
	assert.ErrorIs(t, err, ErrEncode)
	assert.Equal(t, StateEmpty, e.State())
}
