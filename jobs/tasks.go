package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/formgate/formgate/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeFormFollowUp is the task type for form follow-up reminders.
	TaskTypeFormFollowUp = "form:followup"
)

// FormFollowUpPayload identifies the submission a reminder refers to.
type FormFollowUpPayload struct {
	Reference string `json:"reference"`
	Email     string `json:"email"`
	Kind      string `json:"kind"`
}

// NewFormFollowUpTask constructs an Asynq task.
func NewFormFollowUpTask(payload FormFollowUpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeFormFollowUp, data), nil
}

// StatusProvider reports the current status of a submission without
// coupling the worker to the forms package.
type StatusProvider interface {
	SubmissionStatus(ctx context.Context, reference string) (string, error)
}

// FollowUpHandler processes TaskTypeFormFollowUp tasks. Submissions that
// already reached a terminal status are skipped silently.
type FollowUpHandler struct {
	Forms   StatusProvider
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Handle implements the asynq handler contract.
func (h *FollowUpHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload FormFollowUpPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.Metrics.ObserveJob(TaskTypeFormFollowUp, "error")
		return asynq.SkipRetry
	}

	status, err := h.Forms.SubmissionStatus(ctx, payload.Reference)
	if err != nil {
		h.Logger.Error("follow-up lookup", slog.String("reference", payload.Reference), slog.Any("error", err))
		h.Metrics.ObserveJob(TaskTypeFormFollowUp, "error")
		return err
	}
	if status == "done" {
		h.Metrics.ObserveJob(TaskTypeFormFollowUp, "skipped")
		return nil
	}

	// Reminder delivery goes through the notification channel once one
	// exists; until then the reminder is logged for the ops review queue.
	h.Logger.Info("form follow-up due",
		slog.String("reference", payload.Reference),
		slog.String("email", payload.Email),
		slog.String("kind", payload.Kind),
		slog.String("status", status),
	)
	h.Metrics.ObserveJob(TaskTypeFormFollowUp, "success")
	return nil
}
