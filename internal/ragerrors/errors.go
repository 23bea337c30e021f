// Package ragerrors classifies the ways a retrieval-augmented question answering session
// can fail to produce an answer, so callers can branch on Kind instead of parsing strings.
package ragerrors

import (
	"errors"
	"fmt"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// Kind is the closed set of error classifications a session can surface, mirroring the
// NoAnswerClassification/ErrorClassification split in the domain response types plus the
// retrieval-layer failures that never reach the point of building a response at all.
type Kind string

const (
	KindInvalidReference            Kind = "INVALID_REFERENCE"
	KindNotFollowingInstructions    Kind = "NOT_FOLLOWING_INSTRUCTIONS"
	KindCallForMoreDocumentsFailed  Kind = "CALL_FOR_MORE_DOCUMENTS_FAILED"
	KindNoData                      Kind = "NO_DATA"
	KindNoRelevantData              Kind = "NO_RELEVANT_DATA"
	KindQuestionNotRelevant         Kind = "QUESTION_NOT_RELEVANT"
	KindUnableToAnswer              Kind = "UNABLE_TO_ANSWER"
	KindWorkflowNotImplemented      Kind = "WORKFLOW_NOT_IMPLEMENTED"
	KindStuck                       Kind = "STUCK"
	KindGeneric                     Kind = "ERROR"
)

// RAGError is the error type every package in this module returns for classified
// failures. It carries enough structure for the orchestrator to turn it into the matching
// domain.ErrorResponse/domain.NoAnswerResponse without re-parsing an error string.
type RAGError struct {
	Err       error
	Kind      Kind
	Message   string
	Details   map[string]any
	Retriable bool
}

func (e *RAGError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *RAGError) Unwrap() error { return e.Err }

func (e *RAGError) Is(target error) bool {
	if e.Err == nil {
		return e == target
	}
	return errors.Is(e.Err, target)
}

// New creates a classified error carrying no underlying cause.
func New(kind Kind, message string) error {
	return &RAGError{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &RAGError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification and message to an existing error.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	if ragErr, ok := err.(*RAGError); ok {
		return &RAGError{
			Err:       ragErr.Err,
			Kind:      kind,
			Message:   message + ": " + ragErr.Error(),
			Details:   ragErr.Details,
			Retriable: ragErr.Retriable,
		}
	}
	return &RAGError{Err: err, Kind: kind, Message: message + ": " + err.Error()}
}

// WithDetails merges structured context into a classified error; a plain error is first
// wrapped in a KindGeneric RAGError.
func WithDetails(err error, details map[string]any) error {
	if err == nil {
		return nil
	}
	if ragErr, ok := err.(*RAGError); ok {
		if ragErr.Details == nil {
			ragErr.Details = details
		} else {
			for k, v := range details {
				ragErr.Details[k] = v
			}
		}
		return ragErr
	}
	return &RAGError{Err: err, Kind: KindGeneric, Details: details}
}

// WithRetriable marks whether the failure is worth retrying against a fallback provider.
func WithRetriable(err error, retriable bool) error {
	if err == nil {
		return nil
	}
	if ragErr, ok := err.(*RAGError); ok {
		ragErr.Retriable = retriable
		return ragErr
	}
	return &RAGError{Err: err, Kind: KindGeneric, Retriable: retriable}
}

// KindOf extracts the Kind of a classified error, returning KindGeneric for anything else.
func KindOf(err error) Kind {
	var ragErr *RAGError
	if errors.As(err, &ragErr) {
		return ragErr.Kind
	}
	return KindGeneric
}

// IsRetriable reports whether a classified error should trigger a provider failover.
func IsRetriable(err error) bool {
	var ragErr *RAGError
	if errors.As(err, &ragErr) {
		return ragErr.Retriable
	}
	return false
}

// Builder wraps errbuilder-go's fluent API for the configuration/provider-parsing call
// sites that need typed error codes rather than the Kind taxonomy above (mirrors the
// construction pattern used by the provider layer for request validation failures).
func Builder() *errbuilder.ErrBuilder {
	return errbuilder.New()
}

// InvalidArgument builds an errbuilder-go invalid-argument error carrying details, the
// same shape used for provider configuration validation.
func InvalidArgument(msg string, details map[string]error) error {
	b := errbuilder.New().WithMsg(msg).WithCode(errbuilder.CodeInvalidArgument)
	if len(details) > 0 {
		b = b.WithDetails(errbuilder.NewErrDetails(errbuilder.ErrorMap(details)))
	}
	return b
}
