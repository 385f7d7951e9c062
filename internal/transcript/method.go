package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAllMethodsExhausted is matched by the error returned when every method failed.
	ErrAllMethodsExhausted = errors.New("all transcript methods exhausted")
	// ErrMethodTimeout marks a method that did not return within its time budget.
	ErrMethodTimeout = errors.New("transcript method timed out")
	// ErrEmptyTranscript marks a method that returned without error but with no segments.
	ErrEmptyTranscript = errors.New("transcript method returned no segments")
	// ErrMethodPanic marks a method that panicked.
	ErrMethodPanic = errors.New("transcript method panicked")
)

// Method is one independent strategy for obtaining a transcript.
type Method interface {
	Name() string
	Fetch(ctx context.Context, videoID string) (Transcript, error)
}

// MethodFunc adapts a function to the Method interface.
type MethodFunc struct {
	MethodName string
	Func       func(ctx context.Context, videoID string) (Transcript, error)
}

func (f MethodFunc) Name() string { return f.MethodName }

func (f MethodFunc) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	return f.Func(ctx, videoID)
}

// OutcomeKind classifies a single method attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmpty
	OutcomeFailed
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the result of one attempt: success with data, empty, or failure with a reason.
type Outcome struct {
	Method     string
	Kind       OutcomeKind
	Transcript Transcript
	Err        error
	Elapsed    time.Duration
}

// OK reports whether the attempt produced a usable transcript.
func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

// MethodFailure records why one method did not yield a transcript.
type MethodFailure struct {
	Method string
	Kind   OutcomeKind
	Err    error
}

func (f MethodFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Method, f.Err)
}

func (f MethodFailure) Unwrap() error { return f.Err }

// ExhaustedError is returned when no method produced a transcript.
type ExhaustedError struct {
	VideoID  string
	Failures []MethodFailure
}

func (e *ExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, f.Error())
	}
	return fmt.Sprintf("no transcript for %s after %d methods: %s", e.VideoID, len(e.Failures), strings.Join(reasons, "; "))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllMethodsExhausted
}

// Registry holds the ordered set of retrieval methods.
type Registry struct {
	methods []Method
}

// NewRegistry creates a registry of the given methods, skipping nils.
func NewRegistry(methods ...Method) *Registry {
	r := &Registry{}
	for _, m := range methods {
		if m != nil {
			r.methods = append(r.methods, m)
		}
	}
	return r
}

// Methods returns a copy of the registered methods in registration order.
func (r *Registry) Methods() []Method {
	out := make([]Method, len(r.methods))
	copy(out, r.methods)
	return out
}

// Names lists the registered method names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.methods))
	for i, m := range r.methods {
		names[i] = m.Name()
	}
	return names
}

// Len returns the number of registered methods.
func (r *Registry) Len() int { return len(r.methods) }
