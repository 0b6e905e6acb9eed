package forms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgate/formgate/jobs"
)

type mockRepo struct {
	byReference map[string]*Submission
	ordered     []string
	nextID      int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{byReference: map[string]*Submission{}}
}

func (m *mockRepo) Insert(ctx context.Context, sub Submission) (Submission, error) {
	m.nextID++
	sub.ID = m.nextID
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	copied := sub
	m.byReference[sub.Reference] = &copied
	m.ordered = append(m.ordered, sub.Reference)
	return sub, nil
}

func (m *mockRepo) GetByReference(ctx context.Context, reference string) (*Submission, error) {
	sub, ok := m.byReference[reference]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (m *mockRepo) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Submission, int, error) {
	var matched []Submission
	// Newest first, mirroring the SQL ordering.
	for i := len(m.ordered) - 1; i >= 0; i-- {
		sub := m.byReference[m.ordered[i]]
		if filter.Kind != "" && sub.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		matched = append(matched, *sub)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, reference string, from, to Status) error {
	sub, ok := m.byReference[reference]
	if !ok {
		return ErrSubmissionNotFound
	}
	if sub.Status != from {
		return ErrStaleStatus
	}
	sub.Status = to
	sub.UpdatedAt = time.Now()
	return nil
}

type stubScheduler struct {
	scheduled []jobs.FormFollowUpPayload
	delays    []time.Duration
	err       error
}

func (s *stubScheduler) EnqueueFormFollowUp(ctx context.Context, payload jobs.FormFollowUpPayload, delay time.Duration) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.scheduled = append(s.scheduled, payload)
	s.delays = append(s.delays, delay)
	return &asynq.TaskInfo{}, nil
}

func newTestService(repo RepositoryPort, scheduler FollowUpScheduler) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, scheduler, 24*time.Hour)
}

func TestSubmitCreatesReferenceAndSchedulesFollowUp(t *testing.T) {
	repo := newMockRepo()
	scheduler := &stubScheduler{}
	svc := newTestService(repo, scheduler)

	created, err := svc.Submit(context.Background(), SubmitInput{
		Kind:    "inspection",
		Email:   "visitor@test.local",
		Name:    "Visitor",
		Payload: json.RawMessage(`{"site":"warehouse-3"}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Reference)
	assert.Equal(t, StatusPending, created.Status)

	require.Len(t, scheduler.scheduled, 1)
	assert.Equal(t, created.Reference, scheduler.scheduled[0].Reference)
	assert.Equal(t, "inspection", scheduler.scheduled[0].Kind)
	assert.Equal(t, 24*time.Hour, scheduler.delays[0])
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	svc := newTestService(newMockRepo(), &stubScheduler{})

	_, err := svc.Submit(context.Background(), SubmitInput{Kind: "petition", Email: "a@test.local", Name: "A"})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestSubmitSurvivesSchedulerFailure(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &stubScheduler{err: errors.New("queue down")})

	created, err := svc.Submit(context.Background(), SubmitInput{Kind: "standard", Email: "a@test.local", Name: "A"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Reference)
}

func TestUpdateStatusFollowsPipeline(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Submit(context.Background(), SubmitInput{Kind: "standard", Email: "a@test.local", Name: "A"})
	require.NoError(t, err)

	processing, err := svc.UpdateStatus(context.Background(), created.Reference, StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, processing.Status)

	done, err := svc.UpdateStatus(context.Background(), created.Reference, StatusDone)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)
}

func TestUpdateStatusRejectsSkippingSteps(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Submit(context.Background(), SubmitInput{Kind: "standard", Email: "a@test.local", Name: "A"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), created.Reference, StatusDone)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), created.Reference, StatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatusUnknownReference(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)

	_, err := svc.UpdateStatus(context.Background(), "missing", StatusProcessing)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(context.Background(), SubmitInput{Kind: "transfer", Email: "a@test.local", Name: "A"})
		require.NoError(t, err)
	}
	_, err := svc.Submit(context.Background(), SubmitInput{Kind: "standard", Email: "a@test.local", Name: "A"})
	require.NoError(t, err)

	subs, pagination, err := svc.List(context.Background(), ListFilter{Kind: KindTransfer}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.Equal(t, 3, pagination.Total)
	assert.Equal(t, 2, pagination.TotalPages)

	all, pagination, err := svc.List(context.Background(), ListFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, 4, pagination.Total)
}

func TestSubmissionStatusForWorker(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Submit(context.Background(), SubmitInput{Kind: "coverletter", Email: "a@test.local", Name: "A"})
	require.NoError(t, err)

	status, err := svc.SubmissionStatus(context.Background(), created.Reference)
	require.NoError(t, err)
	assert.Equal(t, "pending", status)

	_, err = svc.SubmissionStatus(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
