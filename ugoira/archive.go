package ugoira

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
)

// maxPrealloc bounds the buffer sized from an entry's declared length.
const maxPrealloc = 16 << 20

// DefaultMaxEntrySize is the largest a single frame may inflate to.
const DefaultMaxEntrySize = 64 << 20

// ArchiveReader hands out the bytes of named entries. Extract is read-only
// and may be called in any order, any number of times.
type ArchiveReader interface {
	Extract(name string) ([]byte, error)
	Close() error
}

// Archive is a zip bundle held in memory. Entries that inflate past
// MaxEntrySize are treated as corrupt.
type Archive struct {
	MaxEntrySize int64

	mu      sync.RWMutex
	entries map[string]*zip.File
	names   []string
	closed  bool
}

// OpenArchive reads the central directory of a zip held in raw.
func OpenArchive(raw []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}

	a := &Archive{
		MaxEntrySize: DefaultMaxEntrySize,
		entries:      make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if _, dup := a.entries[f.Name]; dup {
			continue
		}
		a.entries[f.Name] = f
		a.names = append(a.names, f.Name)
	}
	return a, nil
}

// Names lists the file entries in archive order.
func (a *Archive) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Extract returns a fresh copy of the named entry's contents.
func (a *Archive) Extract(name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrArchiveClosed
	}
	f, ok := a.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrArchiveCorrupt, name, err)
	}
	defer rc.Close()

	limit := a.MaxEntrySize
	if limit <= 0 {
		limit = DefaultMaxEntrySize
	}
	size := f.UncompressedSize64
	if size > maxPrealloc {
		size = maxPrealloc
	}
	if size > uint64(limit) {
		size = uint64(limit)
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	n, err := io.Copy(buf, io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrArchiveCorrupt, name, err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: %q inflates past %d bytes", ErrArchiveCorrupt, name, limit)
	}
	return buf.Bytes(), nil
}

// Close drops the archive's reference to the raw bytes.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.entries = nil
	a.names = nil
	return nil
}
