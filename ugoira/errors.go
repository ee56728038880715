package ugoira

import (
	"errors"
	"fmt"
)

var (
	ErrArchiveCorrupt = errors.New("archive is corrupt")
	ErrArchiveClosed  = errors.New("archive is closed")
	ErrEntryNotFound  = errors.New("entry not found in archive")
	ErrDecode         = errors.New("frame could not be decoded")
	ErrEncode         = errors.New("frame could not be encoded")
	ErrDelayRange     = errors.New("frame delay cannot be represented")
	ErrEmptyManifest  = errors.New("manifest has no frames")
	ErrCancelled      = errors.New("run cancelled")
)

// Stage labels a point in a pipeline run where a failure happened.
type Stage string

const (
	StageEmptyManifest Stage = "empty-manifest"
	StageArchiveOpen   Stage = "archive-open"
	StageExtract       Stage = "extract"
	StageDecode        Stage = "decode"
	StageEncode        Stage = "encode"
	StageFinalize      Stage = "finalize"
	StageCancelled     Stage = "cancelled"
)

func (s Stage) verb() string {
	switch s {
	case StageExtract:
		return "extracting"
	case StageDecode:
		return "decoding"
	case StageEncode:
		return "encoding"
	case StageFinalize:
		return "finalizing"
	case StageArchiveOpen:
		return "opening archive"
	default:
		return string(s)
	}
}

// StageError is the failure outcome of a run. Frame is the zero-based index
// of the failing frame, or -1 when the failure is not tied to one; the
// strings it produces count frames from one.
type StageError struct {
	Stage Stage
	Frame int
	Total int
	Err   error
}

func (e *StageError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s frame %d of %d: %v", e.Stage, e.Frame+1, e.Total, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Message is the user-facing summary, e.g. "failed decoding frame 7 of 40".
func (e *StageError) Message() string {
	switch {
	case e.Stage == StageEmptyManifest:
		return "nothing to encode: the animation has no frames"
	case e.Stage == StageCancelled && e.Frame >= 0:
		return fmt.Sprintf("cancelled before frame %d of %d", e.Frame+1, e.Total)
	case e.Stage == StageCancelled:
		return "cancelled"
	case e.Frame < 0:
		return fmt.Sprintf("failed %s", e.Stage.verb())
	}
	return fmt.Sprintf("failed %s frame %d of %d", e.Stage.verb(), e.Frame+1, e.Total)
}

// ContractViolation is the panic value raised when an AnimationEncoder is
// driven out of order. It marks a programming error and is never returned.
type ContractViolation struct {
	Op    string
	State EncoderState
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("ugoira: %s called in %s state", e.Op, e.State)
}

func stageErr(stage Stage, frame, total int, err error) *StageError {
	return &StageError{Stage: stage, Frame: frame, Total: total, Err: err}
}
