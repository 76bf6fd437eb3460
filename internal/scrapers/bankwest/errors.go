package bankwest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionExpired is returned when the bank answers with its login page,
	// the only way forward is to log in again and create a new Session.
	ErrSessionExpired = errors.New("bankwest: session expired")
	// ErrExportFailed is matched by every *ExportFailedError.
	ErrExportFailed = errors.New("bankwest: export failed")
	// ErrUnexpectedPage is matched by every *UnexpectedPageError.
	ErrUnexpectedPage = errors.New("bankwest: unexpected page")
	// ErrNoMatch is what a Matcher wraps when a page is not of its shape.
	ErrNoMatch = errors.New("page does not match")
)

type ExportFailure int

const (
	// ExportFailureRejected means the search form came back instead of an
	// export, the account or dates were not accepted.
	ExportFailureRejected ExportFailure = iota
	// ExportFailureUnknown means the bank showed its "export failed for an
	// unknown reason" banner.
	ExportFailureUnknown
)

func (f ExportFailure) String() string {
	switch f {
	case ExportFailureRejected:
		return "parameters rejected"
	case ExportFailureUnknown:
		return "unknown reason"
	}
	return "unknown failure"
}

type ExportFailedError struct {
	Reason ExportFailure
	// Messages are the validation messages shown on the page, if any.
	Messages []string
}

func (e *ExportFailedError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: %s", ErrExportFailed.Error(), e.Reason)
	}
	return fmt.Sprintf(
		"%s: %s: %s",
		ErrExportFailed.Error(),
		e.Reason,
		strings.Join(e.Messages, "; "),
	)
}

func (e *ExportFailedError) Is(target error) bool {
	return target == ErrExportFailed
}

// UnexpectedPageError means none of the shapes a step accepts matched the
// page it got back.
type UnexpectedPageError struct {
	Url      string
	Status   int
	Accepted []Shape
	// Misses holds the reason each accepted shape did not match.
	Misses []string
}

func (e *UnexpectedPageError) Error() string {
	names := make([]string, len(e.Accepted))
	for i, s := range e.Accepted {
		names[i] = s.String()
	}
	return fmt.Sprintf(
		"%s: %s (status %d) is none of [%s]: %s",
		ErrUnexpectedPage.Error(),
		e.Url,
		e.Status,
		strings.Join(names, ", "),
		strings.Join(e.Misses, "; "),
	)
}

func (e *UnexpectedPageError) Is(target error) bool {
	return target == ErrUnexpectedPage
}
