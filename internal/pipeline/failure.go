package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/article"
)

// Steps a run can fail in.
const (
	StepExtraction     = "extraction"
	StepClassification = "classification"
	StepPlanning       = "planning"
	StepGeneration     = "generation"
	StepAssembly       = "assembly"
)

// Failure ends a run. Stage is the last stage reached before the failing
// step; Err keeps the cause so errors.Is matches the package sentinels.
type Failure struct {
	Stage  Stage  `json:"stage"`
	Step   string `json:"step"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s failed: %s", f.Step, f.Reason)
	if errors.Is(f.Err, article.ErrPlanningParse) {
		msg += "; try again or choose a different provider"
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

func newFailure(stage Stage, step string, err error) *Failure {
	return &Failure{Stage: stage, Step: step, Reason: reasonFor(err), Err: err}
}

// reasonFor renders a user-facing reason for err.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, archive.ErrSizeExceeded):
		return "the archive is larger than the upload limit"
	case errors.Is(err, archive.ErrUnsupportedFormat):
		return "unsupported archive format; upload a .zip, .tar.gz or .tgz file"
	case errors.Is(err, archive.ErrUnsafeArchive):
		return "the archive contains paths that escape the extraction directory"
	case errors.Is(err, article.ErrPlanningParse):
		return "the model did not return a usable article outline"
	case errors.Is(err, context.DeadlineExceeded):
		return "the run timed out"
	case errors.Is(err, context.Canceled):
		return "the run was cancelled"
	default:
		return err.Error()
	}
}
