package apng

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"time"
)

// ErrFormat is returned when the stream is not a well-formed APNG.
var ErrFormat = errors.New("apng: invalid format")

// DecodedFrame is one frame read back from an APNG stream.
type DecodedFrame struct {
	Control FrameControl
	Image   image.Image
}

// Delay is the frame's display time. A zero denominator means 1/100 s, as
// per the APNG spec.
func (c FrameControl) Delay() time.Duration {
	den := time.Duration(c.DelayDen)
	if den == 0 {
		den = 100
	}
	return time.Duration(c.DelayNum) * time.Second / den
}

// Animation is a decoded APNG stream.
type Animation struct {
	Width    int
	Height   int
	NumPlays uint32
	Frames   []DecodedFrame
}

type pendingFrame struct {
	control FrameControl
	data    bytes.Buffer
}

// DecodeAll reads every frame of an APNG stream. Frames are returned as
// stored (regions of the canvas), without applying dispose or blend ops.
func DecodeAll(r io.Reader) (*Animation, error) {
	br := bufio.NewReader(r)
	sig := make([]byte, len(pngHeader))
	if _, err := io.ReadFull(br, sig); err != nil || string(sig) != pngHeader {
		return nil, fmt.Errorf("%w: missing PNG signature", ErrFormat)
	}

	var (
		ihdr      []byte
		preamble  [][2][]byte // PLTE/tRNS chunks that every frame needs
		numFrames uint32
		haveACTL  bool
		frames    []*pendingFrame
		cur       *pendingFrame
		a         Animation
	)

	for {
		name, data, err := readChunk(br)
		if err != nil {
			return nil, err
		}
		switch name {
		case "IHDR":
			if len(data) != 13 {
				return nil, fmt.Errorf("%w: bad IHDR length %d", ErrFormat, len(data))
			}
			ihdr = data
			a.Width = int(binary.BigEndian.Uint32(data[0:4]))
			a.Height = int(binary.BigEndian.Uint32(data[4:8]))
		case "PLTE", "tRNS":
			preamble = append(preamble, [2][]byte{[]byte(name), data})
		case "acTL":
			if len(data) != 8 {
				return nil, fmt.Errorf("%w: bad acTL length %d", ErrFormat, len(data))
			}
			numFrames = binary.BigEndian.Uint32(data[0:4])
			a.NumPlays = binary.BigEndian.Uint32(data[4:8])
			haveACTL = true
		case "fcTL":
			if len(data) != 26 {
				return nil, fmt.Errorf("%w: bad fcTL length %d", ErrFormat, len(data))
			}
			cur = &pendingFrame{control: unmarshalFrameControl(data)}
			frames = append(frames, cur)
		case "IDAT":
			// An IDAT without a preceding fcTL is a default image that is
			// not part of the animation.
			if cur != nil {
				cur.data.Write(data)
			}
		case "fdAT":
			if cur == nil || len(data) < 4 {
				return nil, fmt.Errorf("%w: fdAT before fcTL", ErrFormat)
			}
			cur.data.Write(data[4:])
		case "IEND":
			if ihdr == nil || !haveACTL {
				return nil, fmt.Errorf("%w: not an animated PNG", ErrFormat)
			}
			if uint32(len(frames)) != numFrames {
				return nil, fmt.Errorf("%w: acTL declares %d frames, found %d", ErrFormat, numFrames, len(frames))
			}
			for i, f := range frames {
				m, err := decodeFrame(ihdr, preamble, f)
				if err != nil {
					return nil, fmt.Errorf("apng: frame %d: %w", i, err)
				}
				a.Frames = append(a.Frames, DecodedFrame{Control: f.control, Image: m})
			}
			return &a, nil
		}
	}
}

// decodeFrame rebuilds a standalone PNG for one frame and hands it to
// image/png.
func decodeFrame(ihdr []byte, preamble [][2][]byte, f *pendingFrame) (image.Image, error) {
	hdr := make([]byte, len(ihdr))
	copy(hdr, ihdr)
	binary.BigEndian.PutUint32(hdr[0:4], f.control.Width)
	binary.BigEndian.PutUint32(hdr[4:8], f.control.Height)

	var buf bytes.Buffer
	buf.WriteString(pngHeader)
	if err := writeChunk(&buf, "IHDR", hdr); err != nil {
		return nil, err
	}
	for _, c := range preamble {
		if err := writeChunk(&buf, string(c[0]), c[1]); err != nil {
			return nil, err
		}
	}
	if err := writeChunk(&buf, "IDAT", f.data.Bytes()); err != nil {
		return nil, err
	}
	if err := writeChunk(&buf, "IEND", nil); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}

func readChunk(r io.Reader) (string, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", nil, fmt.Errorf("%w: truncated chunk header: %v", ErrFormat, err)
	}
	n := binary.BigEndian.Uint32(header[0:4])
	if n > 0x7fffffff {
		return "", nil, fmt.Errorf("%w: chunk length %d", ErrFormat, n)
	}
	// The declared length is untrusted; grow with the input instead.
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, int64(n)); err != nil {
		return "", nil, fmt.Errorf("%w: truncated %s chunk: %v", ErrFormat, header[4:8], err)
	}
	data := body.Bytes()
	var footer [4]byte
	if _, err := io.ReadFull(r, footer[:]); err != nil {
		return "", nil, fmt.Errorf("%w: truncated %s checksum: %v", ErrFormat, header[4:8], err)
	}

	crc := crc32.NewIEEE()
	crc.Write(header[4:8])
	crc.Write(data)
	if crc.Sum32() != binary.BigEndian.Uint32(footer[:]) {
		return "", nil, fmt.Errorf("%w: %s checksum mismatch", ErrFormat, header[4:8])
	}
	return string(header[4:8]), data, nil
}

func unmarshalFrameControl(b []byte) FrameControl {
	return FrameControl{
		SequenceNumber: binary.BigEndian.Uint32(b[0:4]),
		Width:          binary.BigEndian.Uint32(b[4:8]),
		Height:         binary.BigEndian.Uint32(b[8:12]),
		XOffset:        binary.BigEndian.Uint32(b[12:16]),
		YOffset:        binary.BigEndian.Uint32(b[16:20]),
		DelayNum:       binary.BigEndian.Uint16(b[20:22]),
		DelayDen:       binary.BigEndian.Uint16(b[22:24]),
		DisposeOp:      DisposeOp(b[24]),
		BlendOp:        BlendOp(b[25]),
	}
}
