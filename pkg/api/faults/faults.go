// Package faults defines the wire-level fault type and the classifier
// that maps the orchestration collaborator's domain errors onto it.
package faults

import (
	"errors"
	"fmt"
	"net/http"

	coreerrs "servergate/pkg/errors"
)

// Fault is a client-visible failure. Explanation is the short, specific
// reason shown to the caller; internal diagnostic detail never rides on it.
type Fault struct {
	// Status is the wire status code.
	Status int
	// Explanation is the user-visible reason.
	Explanation string
	// RetryAfter, when non-nil, asks the client to retry after the given
	// number of seconds. Used by the quota outcomes.
	RetryAfter *int
}

// Error returns the error message.
func (f *Fault) Error() string {
	if f.Explanation == "" {
		return fmt.Sprintf("request failed with status %d", f.Status)
	}

	return f.Explanation
}

// BadRequest builds a bad-request fault.
func BadRequest(format string, args ...any) *Fault {
	return &Fault{Status: http.StatusBadRequest, Explanation: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found fault.
func NotFound(format string, args ...any) *Fault {
	return &Fault{Status: http.StatusNotFound, Explanation: fmt.Sprintf(format, args...)}
}

// Conflict builds a conflict fault.
func Conflict(format string, args ...any) *Fault {
	return &Fault{Status: http.StatusConflict, Explanation: fmt.Sprintf(format, args...)}
}

// TooLarge builds a request-entity-too-large fault with a retry hint.
func TooLarge(format string, args ...any) *Fault {
	zero := 0

	return &Fault{
		Status:      http.StatusRequestEntityTooLarge,
		Explanation: fmt.Sprintf(format, args...),
		RetryAfter:  &zero,
	}
}

// Unprocessable builds an unprocessable-entity fault for empty or
// entity-less bodies.
func Unprocessable() *Fault {
	return &Fault{Status: http.StatusUnprocessableEntity, Explanation: "Unable to process the contained instructions"}
}

// Classify maps a domain error raised by the orchestration collaborator
// to a wire fault. It is total over the kinds in pkg/errors; anything it
// does not recognize is returned unchanged, never masked.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}

	switch {
	case coreerrs.IsQuota(err):
		return TooLarge("%s", quotaExplanation(err))
	case coreerrs.IsNotFound(err):
		return NotFound("%s", err.Error())
	case coreerrs.IsBusy(err):
		return Conflict("%s", err.Error())
	case errors.Is(err, coreerrs.ErrCannotResizeToSameSize):
		return BadRequest("Resize requires a change in size.")
	case errors.Is(err, coreerrs.ErrCannotResizeToSmallerSize):
		return BadRequest("Resizing to a smaller size is not supported.")
	}

	var remote coreerrs.RemoteError
	if errors.As(err, &remote) {
		return BadRequest("%s: %s", remote.Type, remote.Message)
	}

	return err
}

func quotaExplanation(err error) string {
	switch {
	case errors.Is(err, coreerrs.ErrInjectedFileLimitExceeded):
		return "Personality file limit exceeded"
	case errors.Is(err, coreerrs.ErrInjectedFilePathLimitExceeded):
		return "Personality file path too long"
	case errors.Is(err, coreerrs.ErrInjectedFileContentLimitExceeded):
		return "Personality file content too long"
	case errors.Is(err, coreerrs.ErrInstanceLimitExceeded):
		return "Instance quotas have been exceeded"
	default:
		return "Image metadata limit exceeded"
	}
}
