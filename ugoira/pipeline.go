package ugoira

import (
	"context"
	"errors"
	"fmt"
)

// Artifact is a finished animation.
type Artifact struct {
	Data     []byte
	Filename string
	Frames   int
}

// Driver runs archives through extract, decode and encode one frame at a
// time. A Driver holds no per-run state and may serve concurrent runs; each
// run gets its own archive handle and encoder.
type Driver struct {
	Open       func(raw []byte) (ArchiveReader, error)
	Decoder    FrameDecoder
	NewEncoder func() AnimationEncoder
}

// NewDriver returns a Driver reading zip archives and writing APNG.
func NewDriver(opts EncoderOptions) *Driver {
	return &Driver{
		Open: func(raw []byte) (ArchiveReader, error) {
			return OpenArchive(raw)
		},
		Decoder: ImageDecoder{},
		NewEncoder: func() AnimationEncoder {
			return NewAPNGEncoder(opts)
		},
	}
}

type decodeResult struct {
	frame *DecodedFrame
	err   error
}

// Run assembles the frames of m, in order, from the archive in raw. sink is
// told about every completed frame and never after a failure. Any failure
// is a *StageError and no partial artifact is returned. ctx is checked
// between steps; an in-flight decode is abandoned when ctx is done.
func (d *Driver) Run(ctx context.Context, raw []byte, m Manifest, sink ProgressSink) (*Artifact, error) {
	n := m.Len()
	if n == 0 {
		return nil, stageErr(StageEmptyManifest, -1, 0, ErrEmptyManifest)
	}
	if sink == nil {
		sink = discardProgress{}
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(-1, n, err)
	}

	ar, err := d.Open(raw)
	if err != nil {
		if !errors.Is(err, ErrArchiveCorrupt) {
			err = fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
		}
		return nil, stageErr(StageArchiveOpen, -1, n, err)
	}
	defer ar.Close()

	enc := d.NewEncoder()
	for i, fd := range m.Frames {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(i, n, err)
		}

		data, err := ar.Extract(fd.File)
		if err != nil {
			return nil, stageErr(StageExtract, i, n, err)
		}

		frame, err := d.decode(ctx, data, m.MimeType)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, cancelled(i, n, ctxErr)
			}
			if !errors.Is(err, ErrDecode) {
				err = fmt.Errorf("%w: %v", ErrDecode, err)
			}
			return nil, stageErr(StageDecode, i, n, err)
		}

		if err := enc.AddFrame(frame.Pixels, fd.Delay); err != nil {
			return nil, stageErr(StageEncode, i, n, err)
		}

		sink.Progress(Progress{Frame: i + 1, Total: n, Fraction: float64(i+1) / float64(n)})
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(n, n, err)
	}
	out, err := enc.Finalize()
	if err != nil {
		return nil, stageErr(StageFinalize, -1, n, err)
	}
	return &Artifact{Data: out, Filename: m.SuggestedFilename(), Frames: n}, nil
}

// decode runs the decoder on its own goroutine so a cancelled run does not
// wait for it.
func (d *Driver) decode(ctx context.Context, data []byte, mimeType string) (*DecodedFrame, error) {
	ch := make(chan decodeResult, 1)
	go func() {
		f, err := d.Decoder.Decode(data, mimeType)
		if err == nil && (f == nil || f.Pixels == nil) {
			err = fmt.Errorf("%w: decoder returned no pixels", ErrDecode)
		}
		ch <- decodeResult{frame: f, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.frame, r.err
	}
}

func cancelled(frame, total int, err error) *StageError {
	if frame >= total {
		frame = -1
	}
	return stageErr(StageCancelled, frame, total, fmt.Errorf("%w: %w", ErrCancelled, err))
}
