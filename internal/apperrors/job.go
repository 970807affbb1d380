package apperrors

import "errors"

// JobKind is the error taxonomy the orchestrator emits and that an HTTP layer
// would translate into status codes. It is distinct from Kind,
// which classifies provider-call failures (transient/rate-limit/auth/...);
// a JobError typically wraps a provider Error as its Cause.
type JobKind string

const (
	InvalidInput         JobKind = "invalid_input"
	ProviderNotAvailable JobKind = "provider_not_available"
	VoiceNotFound        JobKind = "voice_not_found"
	TranscriptionFailed  JobKind = "transcription_failed"
	TranslationFailed    JobKind = "translation_failed"
	SynthesisFailed      JobKind = "synthesis_failed"
	MuxingFailed         JobKind = "muxing_failed"
	BudgetExceeded       JobKind = "budget_exceeded"
	Cancelled            JobKind = "cancelled"
	Timeout              JobKind = "timeout"
	MissingPrerequisite  JobKind = "missing_prerequisite"
)

// httpStatus is the status code an HTTP surface would map each JobKind to.
var httpStatus = map[JobKind]int{
	InvalidInput:         400,
	ProviderNotAvailable: 503,
	VoiceNotFound:        400,
	TranscriptionFailed:  502,
	TranslationFailed:    502,
	SynthesisFailed:      502,
	MuxingFailed:         502,
	BudgetExceeded:       402,
	Cancelled:            499,
	Timeout:              504,
	MissingPrerequisite:  400,
}

// HTTPStatus returns the status code an HTTP layer should report for kind.
// Unknown kinds map to 500.
func HTTPStatus(kind JobKind) int {
	if code, ok := httpStatus[kind]; ok {
		return code
	}
	return 500
}

// JobError is the error type returned from a job stage: a kind, a
// human-readable message, the stage that produced it (if any), and the
// underlying cause.
type JobError struct {
	Kind    JobKind
	Message string
	Stage   string
	Cause   error
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewJobError constructs a JobError. stage may be empty for errors raised
// before any stage begins (e.g. budget gate, input validation).
func NewJobError(kind JobKind, stage, message string, cause error) *JobError {
	return &JobError{Kind: kind, Message: message, Stage: stage, Cause: cause}
}

// JobKindOf extracts the JobKind from err, if it (or something it wraps) is
// a *JobError.
func JobKindOf(err error) (JobKind, bool) {
	var je *JobError
	if !errors.As(err, &je) {
		return "", false
	}
	return je.Kind, true
}

// StageOf extracts the failing stage name from err, if available.
func StageOf(err error) string {
	var je *JobError
	if errors.As(err, &je) {
		return je.Stage
	}
	return ""
}
