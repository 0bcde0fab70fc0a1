package allocation

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSemesterNotFound  = fmt.Errorf("semester %w", ErrNotFound)
	ErrNoCurrentSemester = fmt.Errorf("current semester %w", ErrNotFound)
	ErrContentNotFound   = fmt.Errorf("content %w", ErrNotFound)

	ErrInvalidLimit      = errors.New("total mark limit must be positive")
	ErrInvalidCandidate  = errors.New("candidate marks must be positive")
	ErrTooManyMarks      = fmt.Errorf("marks must be at most %d", MaxMarks)
	ErrBudgetExceeded    = errors.New("semester mark budget exceeded")
	ErrValidationTimeout = errors.New("validation request timed out")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Remote operations
const (
	OpFetchSummary  = "fetch semester allocation"
	OpValidateMarks = "validate mark allocation"
)

// TransportError is a failed call to the remote allocation API.
// It never means the candidate exceeds the limit: the outcome is unknown.
type TransportError struct {
	Op       string
	Semester SemesterSelector
	Err      error
}

func NewTransportError(op string, sel SemesterSelector, err error) error {
	return &TransportError{Op: op, Semester: sel, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Semester, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call was abandoned because it took too long.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, ErrValidationTimeout)
}

// IsTransportError reports whether err is (or wraps) a *TransportError.
func IsTransportError(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}

// InvariantViolation reports a summary whose scalar totals disagree with its contents.
// Budget arithmetic always uses AllocatedSum.
type InvariantViolation struct {
	SemesterID        string
	ReportedAllocated int
	ReportedRemaining int
	AllocatedSum      int
	TotalLimit        int
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf(
		"semester %s: reported %d allocated / %d remaining, contents sum to %d of %d",
		e.SemesterID, e.ReportedAllocated, e.ReportedRemaining, e.AllocatedSum, e.TotalLimit,
	)
}
