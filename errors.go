package loom

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a run-time or configuration failure so callers can
// branch on it with errors.As instead of matching error strings, per
// spec.md §6/§7's exit-condition list.
type ErrorKind string

const (
	KindNone ErrorKind = ""

	// Configuration errors — raised before scheduling starts, nothing runs.
	KindUnsupportedVersion ErrorKind = "UnsupportedVersion"
	KindUnknownNodeType    ErrorKind = "UnknownNodeType"
	KindEmptyWorkflow      ErrorKind = "EmptyWorkflow"
	KindCycleDetected      ErrorKind = "CycleDetected"
	KindSchemaMismatch     ErrorKind = "SchemaMismatch"
	KindDuplicateNodeID    ErrorKind = "DuplicateNodeID"
	KindUnknownDependency  ErrorKind = "UnknownDependency"
	KindInvalidWhitelist   ErrorKind = "InvalidWhitelist"
	KindConditionExpressionTooComplex ErrorKind = "ConditionExpressionTooComplex"

	// Node-level runtime errors — captured into that node's result.
	KindUnresolvedPlaceholder ErrorKind = "UnresolvedPlaceholder"
	KindToolInvocationFailed  ErrorKind = "ToolInvocationFailed"
	KindToolNotAllowed        ErrorKind = "ToolNotAllowed"
	KindAgentCycle            ErrorKind = "AgentCycle"
	KindInvalidParams         ErrorKind = "InvalidParams"

	// Run-level errors — cancel all in-flight tasks, partial result returned.
	KindDepthCeilingExceeded ErrorKind = "DepthCeilingExceeded"
	KindTokenCeilingExceeded ErrorKind = "TokenCeilingExceeded"
	KindTimeout              ErrorKind = "Timeout"
	KindCancelled            ErrorKind = "Cancelled"

	// Upstream errors.
	KindUpstreamFailed     ErrorKind = "UpstreamFailed"
	KindCancelledUpstream  ErrorKind = "CancelledUpstream"
	KindServiceUnavailable ErrorKind = "ServiceUnavailable"
)

// ClassifiedError pairs an ErrorKind with the underlying cause. It is the
// type every package in this module wraps its terminal errors in.
type ClassifiedError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewError builds a ClassifiedError, mirroring the teacher's
// errors.go convention of package-level sentinel construction
// (ErrDependencyNotSet) generalised to carry a classification tag.
func NewError(kind ErrorKind, msg string, cause error) error {
	return &ClassifiedError{Kind: kind, Msg: msg, Err: cause}
}

// Classify extracts the ErrorKind from err, walking the Unwrap chain. It
// returns KindNone if err is nil or carries no classification.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNone
}

// ErrServiceNotFound is returned by ServiceLocator.Get for an unregistered
// key, mirroring the teacher's ErrDependencyNotSet.
var ErrServiceNotFound = errors.New("required service was not registered")
