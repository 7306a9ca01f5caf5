package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind tags a failure with its place in the pipeline error taxonomy.
type Kind string

const (
	KindInvalid    Kind = "invalid_input"
	KindFetch      Kind = "fetch_error"
	KindExtraction Kind = "extraction_error"
	KindPublish    Kind = "publish_error"
	KindOcr        Kind = "ocr_error"
	KindDescribe   Kind = "describe_error"
)

// PipelineError is the alternate outcome of a pipeline run. Stage names the
// state the task was in when the failure happened.
type PipelineError struct {
	Stage   string `json:"stage"`
	Kind    Kind   `json:"kind"`
	Op      string `json:"-"`
	Message string `json:"error"`
	Err     error  `json:"-"`

	// Partial holds whatever was computed before the failure. It is typed
	// as any to keep this package free of model imports.
	Partial any `json:"partial,omitempty"`
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WithPartial attaches a partial result and returns the same error.
func (e *PipelineError) WithPartial(partial any) *PipelineError {
	e.Partial = partial
	return e
}

func newError(kind Kind, stage, op string, err error, message string) *PipelineError {
	return &PipelineError{
		Stage:   stage,
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func Invalid(op string, err error, message string) *PipelineError {
	return newError(KindInvalid, "created", op, err, message)
}

func Fetch(op string, err error, message string) *PipelineError {
	return newError(KindFetch, "fetching", op, err, message)
}

func Extraction(op string, err error, message string) *PipelineError {
	return newError(KindExtraction, "sampling", op, err, message)
}

func Publish(op string, err error, message string) *PipelineError {
	return newError(KindPublish, "publishing", op, err, message)
}

func Ocr(op string, err error, message string) *PipelineError {
	return newError(KindOcr, "extracting_text", op, err, message)
}

func Describe(op string, err error, message string) *PipelineError {
	return newError(KindDescribe, "describing", op, err, message)
}

// As finds the first PipelineError in err's chain.
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return ""
}

func StageOf(err error) string {
	if pe, ok := As(err); ok {
		return pe.Stage
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
