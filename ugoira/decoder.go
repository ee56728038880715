package ugoira

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// DecodedFrame is one frame's pixels. Width and Height come from the image
// itself, never from metadata.
type DecodedFrame struct {
	Pixels *image.NRGBA
	Width  int
	Height int
}

// FrameDecoder turns one encoded still into pixels.
type FrameDecoder interface {
	Decode(data []byte, mimeType string) (*DecodedFrame, error)
}

type decodeFunc func(io.Reader) (image.Image, error)

var codecs = map[string]decodeFunc{
	"image/jpeg": jpeg.Decode,
	"image/jpg":  jpeg.Decode,
	"image/png":  png.Decode,
	"image/gif":  gif.Decode,
	"image/webp": webp.Decode,
	"image/bmp":  bmp.Decode,
	"image/tiff": tiff.Decode,
}

// ImageDecoder decodes the still formats frames are shipped in. A declared
// MIME type pins the codec; an empty one falls back to sniffing across every
// format registered with package image, which the imports above cover.
type ImageDecoder struct{}

// Decode implements FrameDecoder.
func (ImageDecoder) Decode(data []byte, mimeType string) (*DecodedFrame, error) {
	var (
		m   image.Image
		err error
	)
	mimeType = normaliseMime(mimeType)
	if mimeType == "" {
		m, _, err = image.Decode(bytes.NewReader(data))
	} else {
		dec, ok := codecs[mimeType]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported type %q", ErrDecode, mimeType)
		}
		m, err = dec(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := m.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return &DecodedFrame{Pixels: toNRGBA(m), Width: b.Dx(), Height: b.Dy()}, nil
}

func normaliseMime(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// toNRGBA returns m as a non-premultiplied image anchored at the origin,
// reusing m's pixels when it already is one.
func toNRGBA(m image.Image) *image.NRGBA {
	b := m.Bounds()
	if n, ok := m.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), m, b.Min, draw.Src)
	return out
}
