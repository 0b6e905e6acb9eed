package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgate/formgate/internal/observability"
)

type stubStatusProvider struct {
	statuses map[string]string
}

func (s *stubStatusProvider) SubmissionStatus(ctx context.Context, reference string) (string, error) {
	status, ok := s.statuses[reference]
	if !ok {
		return "", errors.New("submission not found")
	}
	return status, nil
}

func newFollowUpHandler(statuses map[string]string) *FollowUpHandler {
	return &FollowUpHandler{
		Forms:   &stubStatusProvider{statuses: statuses},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetrics(),
	}
}

func TestFollowUpHandlerRemindsPendingSubmission(t *testing.T) {
	handler := newFollowUpHandler(map[string]string{"ref-1": "pending"})

	task, err := NewFormFollowUpTask(FormFollowUpPayload{Reference: "ref-1", Email: "a@test.local", Kind: "standard"})
	require.NoError(t, err)

	assert.NoError(t, handler.Handle(context.Background(), task))
}

func TestFollowUpHandlerSkipsCompletedSubmission(t *testing.T) {
	handler := newFollowUpHandler(map[string]string{"ref-1": "done"})

	task, err := NewFormFollowUpTask(FormFollowUpPayload{Reference: "ref-1"})
	require.NoError(t, err)

	assert.NoError(t, handler.Handle(context.Background(), task))
}

func TestFollowUpHandlerPropagatesLookupErrors(t *testing.T) {
	handler := newFollowUpHandler(map[string]string{})

	task, err := NewFormFollowUpTask(FormFollowUpPayload{Reference: "missing"})
	require.NoError(t, err)

	assert.Error(t, handler.Handle(context.Background(), task))
}

func TestFollowUpHandlerSkipsMalformedPayload(t *testing.T) {
	handler := newFollowUpHandler(map[string]string{})

	err := handler.Handle(context.Background(), asynq.NewTask(TaskTypeFormFollowUp, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
