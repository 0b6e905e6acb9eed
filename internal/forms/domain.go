package forms

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrSubmissionNotFound indicates the reference matches no submission.
	ErrSubmissionNotFound = errors.New("forms: submission not found")
	// ErrUnknownKind indicates an unrecognised form kind.
	ErrUnknownKind = errors.New("forms: unknown form kind")
	// ErrUnknownStatus indicates an unrecognised status value.
	ErrUnknownStatus = errors.New("forms: unknown status")
	// ErrInvalidTransition indicates a status change outside the pipeline
	// order.
	ErrInvalidTransition = errors.New("forms: invalid status transition")
	// ErrStaleStatus indicates the submission changed under the caller.
	ErrStaleStatus = errors.New("forms: submission status changed concurrently")
)

// Kind enumerates the supported intake form types.
type Kind string

const (
	KindStandard    Kind = "standard"
	KindInspection  Kind = "inspection"
	KindTransfer    Kind = "transfer"
	KindCoverLetter Kind = "coverletter"
)

// ParseKind validates a raw kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindStandard, KindInspection, KindTransfer, KindCoverLetter:
		return Kind(raw), nil
	}
	return "", ErrUnknownKind
}

// Status tracks a submission through the review pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusDone:
		return Status(raw), nil
	}
	return "", ErrUnknownStatus
}

// CanTransitionTo reports whether next is the immediate pipeline successor.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusDone
	}
	return false
}

// Submission is one submitted intake form.
type Submission struct {
	ID        int64
	Reference string
	Kind      Kind
	Email     string
	Name      string
	Payload   json.RawMessage
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}
