package forms

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/formgate/formgate/internal/shared"
	"github.com/formgate/formgate/jobs"
)

// FollowUpScheduler schedules a reminder for a submission after a delay.
type FollowUpScheduler interface {
	EnqueueFormFollowUp(ctx context.Context, payload jobs.FormFollowUpPayload, delay time.Duration) (*asynq.TaskInfo, error)
}

// Service handles the form intake flow.
type Service struct {
	repo          RepositoryPort
	scheduler     FollowUpScheduler
	followUpDelay time.Duration
	logger        *slog.Logger
}

// NewService builds a Service instance. scheduler may be nil, in which
// case no reminders are queued.
func NewService(logger *slog.Logger, repo RepositoryPort, scheduler FollowUpScheduler, followUpDelay time.Duration) *Service {
	return &Service{repo: repo, scheduler: scheduler, followUpDelay: followUpDelay, logger: logger}
}

// SubmitInput carries a new submission.
type SubmitInput struct {
	Kind    string
	Email   string
	Name    string
	Payload json.RawMessage
}

// Submit stores the submission under a fresh reference and queues the
// follow-up reminder. A scheduling failure does not fail the intake.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Submission, error) {
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return Submission{}, err
	}
	payload := in.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	sub := Submission{
		Reference: uuid.NewString(),
		Kind:      kind,
		Email:     in.Email,
		Name:      in.Name,
		Payload:   payload,
		Status:    StatusPending,
	}
	created, err := s.repo.Insert(ctx, sub)
	if err != nil {
		return Submission{}, err
	}

	if s.scheduler != nil {
		followUp := jobs.FormFollowUpPayload{
			Reference: created.Reference,
			Email:     created.Email,
			Kind:      string(created.Kind),
		}
		if _, err := s.scheduler.EnqueueFormFollowUp(ctx, followUp, s.followUpDelay); err != nil {
			s.logger.Warn("schedule follow-up", slog.String("reference", created.Reference), slog.Any("error", err))
		}
	}
	return created, nil
}

// Get fetches one submission by reference.
func (s *Service) Get(ctx context.Context, reference string) (*Submission, error) {
	return s.repo.GetByReference(ctx, reference)
}

// List returns one page of submissions plus pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]Submission, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	subs, total, err := s.repo.List(ctx, filter, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if subs == nil {
		subs = []Submission{}
	}
	return subs, shared.NewPagination(page, perPage, total), nil
}

// UpdateStatus advances a submission one step along the pipeline.
func (s *Service) UpdateStatus(ctx context.Context, reference string, next Status) (*Submission, error) {
	current, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}
	if err := s.repo.UpdateStatus(ctx, reference, current.Status, next); err != nil {
		return nil, err
	}
	return s.repo.GetByReference(ctx, reference)
}

// SubmissionStatus implements the worker's status lookup.
func (s *Service) SubmissionStatus(ctx context.Context, reference string) (string, error) {
	sub, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return "", err
	}
	return string(sub.Status), nil
}
