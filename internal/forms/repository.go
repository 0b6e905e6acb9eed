package forms

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilter narrows listings; zero values mean no filter.
type ListFilter struct {
	Kind   Kind
	Status Status
}

// RepositoryPort defines persistence for submissions.
type RepositoryPort interface {
	Insert(ctx context.Context, sub Submission) (Submission, error)
	GetByReference(ctx context.Context, reference string) (*Submission, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]Submission, int, error)
	UpdateStatus(ctx context.Context, reference string, from, to Status) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const submissionColumns = `id, reference, kind, email, name, payload, status, created_at, updated_at`

func scanSubmission(row pgx.Row) (Submission, error) {
	var (
		sub       Submission
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&sub.ID, &sub.Reference, &sub.Kind, &sub.Email, &sub.Name, &sub.Payload, &sub.Status, &createdAt, &updatedAt)
	if err != nil {
		return Submission{}, err
	}
	sub.CreatedAt = createdAt.Time
	sub.UpdatedAt = updatedAt.Time
	return sub, nil
}

// Insert persists a new submission.
func (r *Repository) Insert(ctx context.Context, sub Submission) (Submission, error) {
	const query = `
		INSERT INTO form_submissions (reference, kind, email, name, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + submissionColumns

	return scanSubmission(r.pool.QueryRow(ctx, query,
		sub.Reference, sub.Kind, sub.Email, sub.Name, sub.Payload, sub.Status))
}

// GetByReference fetches one submission.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM form_submissions WHERE reference = $1`
	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// List returns one page of submissions newest first, plus the total count
// under the same filter.
func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Submission, int, error) {
	where := ""
	args := []interface{}{}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	countQuery := `SELECT COUNT(*) FROM form_submissions WHERE true` + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(args, limit, offset)
	listQuery := fmt.Sprintf(`SELECT %s FROM form_submissions WHERE true%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		submissionColumns, where, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// UpdateStatus advances a submission, guarded against concurrent moves by
// matching the expected current status.
func (r *Repository) UpdateStatus(ctx context.Context, reference string, from, to Status) error {
	const query = `
		UPDATE form_submissions
		SET status = $3, updated_at = now()
		WHERE reference = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query, reference, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
