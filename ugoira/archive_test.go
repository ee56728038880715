package ugoira

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenArchive(t *testing.T) {
	raw := buildZip(t, map[string][]byte{
		"frames/":           nil,
		"frames/000000.jpg": []byte("zero"),
		"000001.jpg":        []byte("one"),
	}, []string{"frames/", "frames/000000.jpg", "000001.jpg"})

	a, err := OpenArchive(raw)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"frames/000000.jpg", "000001.jpg"}, a.Names())

	t.Run("extract is repeatable and order free", func(t *testing.T) {
		one, err := a.Extract("000001.jpg")
		require.NoError(t, err)
		zero, err := a.Extract("frames/000000.jpg")
		require.NoError(t, err)
		again, err := a.Extract("000001.jpg")
		require.NoError(t, err)

		assert.Equal(t, "one", string(one))
		assert.Equal(t, "zero", string(zero))
		assert.Equal(t, one, again)

		// Callers get their own copy.
		one[0] = 'X'
		fresh, err := a.Extract("000001.jpg")
		require.NoError(t, err)
		assert.Equal(t, "one", string(fresh))
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := a.Extract("000002.jpg")
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})

	t.Run("directories are not entries", func(t *testing.T) {
		_, err := a.Extract("frames/")
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestOpenArchiveCorrupt(t *testing.T) {
	for name, raw := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("this is not a zip file at all"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := OpenArchive(raw)
			assert.ErrorIs(t, err, ErrArchiveCorrupt)
		})
	}
}

func TestArchiveClose(t *testing.T) {
	raw := buildZip(t, map[string][]byte{"a.png": []byte("a")}, []string{"a.png"})
	a, err := OpenArchive(raw)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	_, err = a.Extract("a.png")
	assert.ErrorIs(t, err, ErrArchiveClosed)
	assert.Empty(t, a.Names())
}

func TestExtractInflationLimit(t *testing.T) {
	raw := buildZip(t, map[string][]byte{
		"bomb.png":  bytes.Repeat([]byte{0}, 4096),
		"edge.png":  bytes.Repeat([]byte{1}, 1024),
		"small.png": []byte("small"),
	}, []string{"bomb.png", "edge.png", "small.png"})

	a, err := OpenArchive(raw)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, int64(DefaultMaxEntrySize), a.MaxEntrySize)

	a.MaxEntrySize = 1024
	_, err = a.Extract("bomb.png")
	assert.ErrorIs(t, err, ErrArchiveCorrupt)

	edge, err := a.Extract("edge.png")
	require.NoError(t, err)
	assert.Len(t, edge, 1024)

	small, err := a.Extract("small.png")
	require.NoError(t, err)
	assert.Equal(t, "small", string(small))
}
