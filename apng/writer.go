package apng

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"io"

	"github.com/klauspost/compress/zlib"
)

const pngHeader = "\x89PNG\r\n\x1a\n"

// Colour type and bit depth of everything this package writes.
const (
	colorTypeTrueColorAlpha = 6
	bitDepth8               = 8
	bytesPerPixel           = 4
)

// CompressionLevel trades compression speed for image size.
type CompressionLevel int

const (
	DefaultCompression CompressionLevel = 0
	NoCompression      CompressionLevel = -1
	BestSpeed          CompressionLevel = -2
	BestCompression    CompressionLevel = -3
)

func (l CompressionLevel) zlib() int {
	switch l {
	case NoCompression:
		return zlib.NoCompression
	case BestSpeed:
		return zlib.BestSpeed
	case BestCompression:
		return zlib.BestCompression
	default:
		return zlib.DefaultCompression
	}
}

// ParseCompressionLevel maps a config name onto a CompressionLevel.
func ParseCompressionLevel(s string) (CompressionLevel, error) {
	switch s {
	case "", "default":
		return DefaultCompression, nil
	case "none":
		return NoCompression, nil
	case "speed", "best-speed":
		return BestSpeed, nil
	case "size", "best-compression":
		return BestCompression, nil
	}
	return DefaultCompression, fmt.Errorf("apng: unknown compression level %q", s)
}

// DisposeOp is the dispose operator, as per the APNG spec.
type DisposeOp uint8

const (
	DisposeOpNone       DisposeOp = 0
	DisposeOpBackground DisposeOp = 1
	DisposeOpPrevious   DisposeOp = 2
)

// BlendOp is the blend operator, as per the APNG spec.
type BlendOp uint8

const (
	BlendOpSource BlendOp = 0
	BlendOpOver   BlendOp = 1
)

// FrameControl mirrors the fcTL chunk. The sequence number is assigned by
// Encode and ignored on input.
type FrameControl struct {
	SequenceNumber uint32
	Width          uint32
	Height         uint32
	XOffset        uint32
	YOffset        uint32
	DelayNum       uint16
	DelayDen       uint16
	DisposeOp      DisposeOp
	BlendOp        BlendOp
}

// Frame is one compressed frame ready to be laid out by Encode.
type Frame struct {
	Control FrameControl
	Data    []byte
}

// Header describes the whole animation.
type Header struct {
	Width    uint32
	Height   uint32
	NumPlays uint32 // 0 loops forever
}

var errNoFrames = errors.New("apng: no frames to encode")

// Encode writes a complete APNG stream holding frames in order.
func Encode(w io.Writer, h Header, frames []Frame) error {
	if len(frames) == 0 {
		return errNoFrames
	}
	bw := bufio.NewWriter(w)
	if _, err := io.WriteString(bw, pngHeader); err != nil {
		return err
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], h.Width)
	binary.BigEndian.PutUint32(ihdr[4:8], h.Height)
	ihdr[8] = bitDepth8
	ihdr[9] = colorTypeTrueColorAlpha
	if err := writeChunk(bw, "IHDR", ihdr); err != nil {
		return err
	}

	actl := make([]byte, 8)
	binary.BigEndian.PutUint32(actl[0:4], uint32(len(frames)))
	binary.BigEndian.PutUint32(actl[4:8], h.NumPlays)
	if err := writeChunk(bw, "acTL", actl); err != nil {
		return err
	}

	var seq uint32
	for i, f := range frames {
		c := f.Control
		if c.XOffset+c.Width > h.Width || c.YOffset+c.Height > h.Height {
			return fmt.Errorf("apng: frame %d (%dx%d+%d+%d) outside %dx%d canvas",
				i, c.Width, c.Height, c.XOffset, c.YOffset, h.Width, h.Height)
		}
		c.SequenceNumber = seq
		seq++
		if err := writeChunk(bw, "fcTL", c.marshal()); err != nil {
			return err
		}

		if i == 0 {
			if err := writeChunk(bw, "IDAT", f.Data); err != nil {
				return err
			}
			continue
		}
		fdat := make([]byte, 4+len(f.Data))
		binary.BigEndian.PutUint32(fdat[0:4], seq)
		seq++
		copy(fdat[4:], f.Data)
		if err := writeChunk(bw, "fdAT", fdat); err != nil {
			return err
		}
	}

	if err := writeChunk(bw, "IEND", nil); err != nil {
		return err
	}
	return bw.Flush()
}

func (c *FrameControl) marshal() []byte {
	b := make([]byte, 26)
	binary.BigEndian.PutUint32(b[0:4], c.SequenceNumber)
	binary.BigEndian.PutUint32(b[4:8], c.Width)
	binary.BigEndian.PutUint32(b[8:12], c.Height)
	binary.BigEndian.PutUint32(b[12:16], c.XOffset)
	binary.BigEndian.PutUint32(b[16:20], c.YOffset)
	binary.BigEndian.PutUint16(b[20:22], c.DelayNum)
	binary.BigEndian.PutUint16(b[22:24], c.DelayDen)
	b[24] = byte(c.DisposeOp)
	b[25] = byte(c.BlendOp)
	return b
}

func writeChunk(w io.Writer, name string, b []byte) error {
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(b)))
	copy(header[4:8], name)

	crc := crc32.NewIEEE()
	crc.Write(header[4:8])
	crc.Write(b)
	var footer [4]byte
	binary.BigEndian.PutUint32(footer[:], crc.Sum32())

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.Write(footer[:])
	return err
}

// CompressFrame filters and zlib-compresses m into the payload of one
// IDAT/fdAT sequence.
func CompressFrame(m *image.NRGBA, cl CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	z, err := zlib.NewWriterLevel(&buf, cl.zlib())
	if err != nil {
		return nil, err
	}
	if err := writeRows(z, m, cl != NoCompression); err != nil {
		return nil, err
	}
	if err := z.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(w io.Writer, m *image.NRGBA, applyFilter bool) error {
	b := m.Bounds()
	rowLen := 1 + bytesPerPixel*b.Dx()

	// cr[0] is the unfiltered row; cr[ft] holds the row under filter ft.
	var cr [nFilter][]uint8
	for i := range cr {
		cr[i] = make([]uint8, rowLen)
		cr[i][0] = uint8(i)
	}
	pr := make([]uint8, rowLen)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		offset := m.PixOffset(b.Min.X, y)
		copy(cr[0][1:], m.Pix[offset:offset+bytesPerPixel*b.Dx()])

		f := ftNone
		if applyFilter {
			f = filterRow(&cr, pr, bytesPerPixel)
		}
		if _, err := w.Write(cr[f]); err != nil {
			return err
		}

		// The current row for y is the previous row for y+1.
		pr, cr[0] = cr[0], pr
	}
	return nil
}
