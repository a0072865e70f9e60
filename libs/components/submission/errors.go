package submission

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed wraps a *form.ValidationError.
	ErrValidationFailed = errors.New("submission: validation failed")
	// ErrEncryptionFailed wraps an *envelope.EncryptionError.
	ErrEncryptionFailed = errors.New("submission: encryption failed")
	// ErrPersistenceFailed reports that the initial save did not happen.
	ErrPersistenceFailed = errors.New("submission: persistence failed")
	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = errors.New("submission: invalid status transition")
	// ErrDeliveryFailed describes an exhausted webhook delivery. Process
	// records it on the submission instead of returning it.
	ErrDeliveryFailed = errors.New("submission: webhook delivery failed")
	// ErrNoWebhook is returned when redelivery is requested for a schema
	// without a webhook URL.
	ErrNoWebhook = errors.New("submission: schema has no webhook configured")
	// ErrSubmissionNotFound is returned by stores for unknown ids.
	ErrSubmissionNotFound = errors.New("submission: not found")
)

// TransitionError reports a rejected status change. The submission is left
// untouched.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("submission: cannot move from %s to %s", e.From, e.To)
}

// Is reports whether target is ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
