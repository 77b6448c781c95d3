package transcription

import (
	"errors"
	"fmt"
)

var (
	// ErrTranscriptionFailed wraps every error returned by Transcribe
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrAnalysis reports an internal invariant violation such as a bad frame size
	ErrAnalysis = errors.New("analysis error")
)

// AnalysisError names the pipeline stage that rejected its input
type AnalysisError struct {
	Stage string
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *AnalysisError) Unwrap() []error {
	return []error{ErrAnalysis, e.Cause}
}

func analysisError(stage string, cause error) error {
	return &AnalysisError{Stage: stage, Cause: cause}
}
