package ugoira

import (
	"encoding/json"
	"fmt"

	"github.com/matt-g-everett/ugoiratx/util"
)

// FrameDescriptor names one archive entry and how long it is shown.
type FrameDescriptor struct {
	File  string `json:"file" yaml:"file"`
	Delay uint32 `json:"delay" yaml:"delay"` // milliseconds
}

// Manifest is the ordered frame list for one run. Frame order is display
// order and must not be changed.
type Manifest struct {
	MimeType string            `json:"mime_type" yaml:"mimeType"`
	Frames   []FrameDescriptor `json:"frames" yaml:"frames"`

	// Naming metadata for the suggested filename.
	ID      string `json:"illustId,omitempty" yaml:"id"`
	Title   string `json:"illustTitle,omitempty" yaml:"title"`
	Variant string `json:"variant,omitempty" yaml:"variant"`
}

// PageMetadata is the animation metadata embedded in an illustration page.
// Src is the archive URL; OriginalSrc, when present, is the full size one.
type PageMetadata struct {
	Src         string            `json:"src"`
	OriginalSrc string            `json:"originalSrc"`
	MimeType    string            `json:"mime_type"`
	Frames      []FrameDescriptor `json:"frames"`
}

// ParseMetadata decodes page metadata JSON.
func ParseMetadata(b []byte) (*PageMetadata, error) {
	var m PageMetadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse animation metadata: %w", err)
	}
	return &m, nil
}

// Manifest builds the run manifest for this metadata. The frame slice is
// copied so later edits to the metadata are not seen by the run.
func (p *PageMetadata) Manifest(id, title, variant string) Manifest {
	frames := make([]FrameDescriptor, len(p.Frames))
	copy(frames, p.Frames)
	return Manifest{
		MimeType: p.MimeType,
		Frames:   frames,
		ID:       id,
		Title:    title,
		Variant:  variant,
	}
}

// Len is the number of frames.
func (m Manifest) Len() int {
	return len(m.Frames)
}

// SuggestedFilename is "<id>_<title><variant>.png" with characters that are
// unsafe in filenames dropped from the title.
func (m Manifest) SuggestedFilename() string {
	return util.SuggestedFilename(m.ID, m.Title, m.Variant, ".png")
}
