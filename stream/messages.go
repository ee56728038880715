package stream

import (
	"github.com/matt-g-everett/ugoiratx/ugoira"
)

// Job message types.
const (
	JobStart  = "start"
	JobCancel = "cancel"
)

// Result statuses.
const (
	StatusDone   = "done"
	StatusError  = "error"
	StatusQueued = "queued"
)

// JobMessage asks for an animation to be built, or cancels one.
type JobMessage struct {
	Type     string              `json:"type"`
	ID       string              `json:"id"`
	IllustID string              `json:"illustId"`
	Title    string              `json:"illustTitle"`
	Variant  string              `json:"variant"`
	HQ       bool                `json:"hq"`
	Data     ugoira.PageMetadata `json:"data"`
}

// Source is the archive URL for the requested quality.
func (j *JobMessage) Source() string {
	if j.HQ && j.Data.OriginalSrc != "" {
		return j.Data.OriginalSrc
	}
	return j.Data.Src
}

// Manifest builds the pipeline manifest. Without an explicit variant the
// filename gets "Apng" or "ApngHQ".
func (j *JobMessage) Manifest() ugoira.Manifest {
	variant := j.Variant
	if variant == "" {
		variant = "Apng"
		if j.HQ {
			variant = "ApngHQ"
		}
	}
	return j.Data.Manifest(j.IllustID, j.Title, variant)
}

// ProgressMessage is published after each completed frame.
type ProgressMessage struct {
	ID       string  `json:"id"`
	Frame    int     `json:"frame"`
	Total    int     `json:"total"`
	Progress float64 `json:"progress"`
}

// ResultMessage reports how a job ended.
type ResultMessage struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	Bytes    int    `json:"bytes,omitempty"`
	Frames   int    `json:"frames,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Frame    *int   `json:"frame,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
