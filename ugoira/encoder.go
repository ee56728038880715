package ugoira

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/matt-g-everett/ugoiratx/apng"
)

// delayDen is the denominator frame delays are stored with: milliseconds as
// a fraction of a second.
const delayDen = 1000

// EncoderState is where an AnimationEncoder is in its lifecycle.
type EncoderState int

const (
	StateEmpty EncoderState = iota
	StateAccumulating
	StateFinalized
)

func (s EncoderState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateFinalized:
		return "finalized"
	}
	return fmt.Sprintf("EncoderState(%d)", int(s))
}

// AnimationEncoder accumulates timed frames into one animated image.
// Finalize with no frames, or either method after Finalize, panics with a
// *ContractViolation.
type AnimationEncoder interface {
	AddFrame(m image.Image, delayMs uint32) error
	Finalize() ([]byte, error)
}

// EncoderOptions tune the APNG output.
type EncoderOptions struct {
	Compression apng.CompressionLevel
	Plays       uint32          // 0 loops forever
	Matte       *colorful.Color // flatten alpha onto this colour when set
}

// APNGEncoder compresses each frame as it arrives so that only the running
// compressed stream is kept, never the decoded frames.
type APNGEncoder struct {
	opts   EncoderOptions
	state  EncoderState
	canvas image.Rectangle
	frames []apng.Frame
}

// NewAPNGEncoder returns an encoder in the Empty state.
func NewAPNGEncoder(opts EncoderOptions) *APNGEncoder {
	return &APNGEncoder{opts: opts}
}

// State reports the lifecycle state.
func (e *APNGEncoder) State() EncoderState {
	return e.state
}

// Len is the number of frames added so far.
func (e *APNGEncoder) Len() int {
	return len(e.frames)
}

// AddFrame appends m shown for delayMs milliseconds. The first frame fixes
// the canvas size; later frames of another size are resampled to it.
func (e *APNGEncoder) AddFrame(m image.Image, delayMs uint32) error {
	if e.state == StateFinalized {
		panic(&ContractViolation{Op: "AddFrame", State: e.state})
	}

	num, den, err := frameDelay(delayMs)
	if err != nil {
		return err
	}

	if e.state == StateEmpty {
		b := m.Bounds()
		if b.Empty() {
			return fmt.Errorf("%w: empty frame", ErrEncode)
		}
		e.canvas = image.Rect(0, 0, b.Dx(), b.Dy())
	}

	data, err := apng.CompressFrame(e.prepare(m), e.opts.Compression)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	e.frames = append(e.frames, apng.Frame{
		Control: apng.FrameControl{
			Width:     uint32(e.canvas.Dx()),
			Height:    uint32(e.canvas.Dy()),
			DelayNum:  num,
			DelayDen:  den,
			DisposeOp: apng.DisposeOpNone,
			BlendOp:   apng.BlendOpSource,
		},
		Data: data,
	})
	e.state = StateAccumulating
	return nil
}

// Finalize lays out the accumulated frames as one APNG.
func (e *APNGEncoder) Finalize() ([]byte, error) {
	if e.state != StateAccumulating {
		panic(&ContractViolation{Op: "Finalize", State: e.state})
	}
	e.state = StateFinalized

	var buf bytes.Buffer
	err := apng.Encode(&buf, apng.Header{
		Width:    uint32(e.canvas.Dx()),
		Height:   uint32(e.canvas.Dy()),
		NumPlays: e.opts.Plays,
	}, e.frames)
	e.frames = nil
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// prepare fits m to the canvas and applies the matte.
func (e *APNGEncoder) prepare(m image.Image) *image.NRGBA {
	b := m.Bounds()
	n, ok := m.(*image.NRGBA)
	fits := ok && b == e.canvas
	if fits && e.opts.Matte == nil {
		return n
	}

	out := image.NewNRGBA(e.canvas)
	op := draw.Src
	if e.opts.Matte != nil {
		r, g, bl := e.opts.Matte.Clamped().RGB255()
		draw.Draw(out, e.canvas, image.NewUniform(color.NRGBA{R: r, G: g, B: bl, A: 0xff}), image.Point{}, draw.Src)
		op = draw.Over
	}
	if b.Dx() == e.canvas.Dx() && b.Dy() == e.canvas.Dy() {
		draw.Draw(out, e.canvas, m, b.Min, op)
	} else {
		draw.CatmullRom.Scale(out, e.canvas, m, b, op, nil)
	}
	return out
}

// frameDelay expresses ms as an exact fraction of a second with uint16
// terms: ms/1000 when it fits, otherwise the reduced fraction.
func frameDelay(ms uint32) (uint16, uint16, error) {
	if ms <= 0xffff {
		return uint16(ms), delayDen, nil
	}
	g := gcd(ms, delayDen)
	num, den := ms/g, uint32(delayDen)/g
	if num > 0xffff {
		return 0, 0, fmt.Errorf("%w: %dms", ErrDelayRange, ms)
	}
	return uint16(num), uint16(den), nil
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
