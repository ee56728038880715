package ugoira

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

func solidFrame(w, h int, c color.NRGBA) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i+0] = c.R
		m.Pix[i+1] = c.G
		m.Pix[i+2] = c.B
		m.Pix[i+3] = c.A
	}
	return m
}

func pngBytes(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return buf.Bytes()
}

// frameColour gives frame i a colour distinct from its neighbours.
func frameColour(i int) color.NRGBA {
	return color.NRGBA{R: uint8(40 * i), G: uint8(255 - 30*i), B: 90, A: 255}
}

func buildZip(t *testing.T, entries map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// fixture builds an archive of n 4x3 PNG frames named 000000.png... with
// delays 40, 80, 120, ...
func fixture(t *testing.T, n int) ([]byte, Manifest) {
	t.Helper()
	entries := make(map[string][]byte, n)
	var order []string
	m := Manifest{MimeType: "image/png", ID: "44298467", Title: "test", Variant: "Apng"}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%06d.png", i)
		entries[name] = pngBytes(t, solidFrame(4, 3, frameColour(i)))
		order = append(order, name)
		m.Frames = append(m.Frames, FrameDescriptor{File: name, Delay: uint32(40 * (i + 1))})
	}
	return buildZip(t, entries, order), m
}

type recordingSink struct {
	reports []Progress
}

func (s *recordingSink) Progress(p Progress) {
	s.reports = append(s.reports, p)
}
