package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formgate/formgate/internal/platform/db"
)

// Reader exposes the snapshot reads the engine needs to build a role tree
// and resolve actors.
type Reader interface {
	// ListRoles returns every role record, active and soft-deleted.
	ListRoles(ctx context.Context) ([]Role, error)
	// CountActiveAssignments maps role code to the number of active users
	// holding it.
	CountActiveAssignments(ctx context.Context) (map[string]int, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

// TxRepository is the write surface available inside a transaction.
type TxRepository interface {
	Reader
	InsertRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, code string, patch RolePatch) error
	DeactivateRole(ctx context.Context, code string) error
	AddUserRole(ctx context.Context, userID int64, roleCode string) error
	RemoveUserRole(ctx context.Context, userID int64, roleCode string) error
	ReplaceUserRoles(ctx context.Context, userID int64, roleCodes []string) error
}

// Repository provides persistence for the engine. Every mutation runs
// through WithTx so validation and writes observe one consistent state.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const roleColumns = `id, code, display_name, description, level, COALESCE(parent_code, ''), color, icon, is_active, created_at, updated_at`

const roleColumnsJoined = `r.id, r.code, r.display_name, r.description, r.level, COALESCE(r.parent_code, ''), r.color, r.icon, r.is_active, r.created_at, r.updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Code, &role.DisplayName, &role.Description, &role.Level,
		&role.ParentCode, &role.Color, &role.Icon, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY level, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *repository) CountActiveAssignments(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ur.role_code, COUNT(*)
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE u.is_active
		GROUP BY ur.role_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, email, is_active FROM users WHERE email = $1`, email)
	return r.scanUserWithRoles(ctx, row)
}

func (r *repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, email, is_active FROM users WHERE id = $1`, id)
	return r.scanUserWithRoles(ctx, row)
}

func (r *repository) scanUserWithRoles(ctx context.Context, row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+roleColumnsJoined+`
		FROM user_roles ur
		JOIN roles r ON r.code = ur.role_code
		WHERE ur.user_id = $1
		ORDER BY r.level, r.code`, u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		u.Roles = append(u.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) InsertRole(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO roles (code, display_name, description, level, parent_code, color, icon, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, TRUE)
		RETURNING `+roleColumns,
		role.Code, role.DisplayName, role.Description, role.Level, role.ParentCode, role.Color, role.Icon)
	created, err := scanRole(row)
	if err != nil {
		return Role{}, mapUniqueViolation(err)
	}
	return created, nil
}

func (r *repository) UpdateRole(ctx context.Context, code string, patch RolePatch) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{code}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Level != nil {
		add("level", *patch.Level)
	}
	if patch.ParentCode != nil {
		args = append(args, *patch.ParentCode)
		sets = append(sets, fmt.Sprintf("parent_code = NULLIF($%d, '')", len(args)))
	}
	if patch.Color != nil {
		add("color", *patch.Color)
	}
	if patch.Icon != nil {
		add("icon", *patch.Icon)
	}
	tag, err := r.db.Exec(ctx, `UPDATE roles SET `+strings.Join(sets, ", ")+` WHERE code = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *repository) DeactivateRole(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET is_active = FALSE, updated_at = NOW() WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *repository) AddUserRole(ctx context.Context, userID int64, roleCode string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO user_roles (user_id, role_code) VALUES ($1, $2)`, userID, roleCode)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyAssigned
		}
		return err
	}
	return nil
}

func (r *repository) RemoveUserRole(ctx context.Context, userID int64, roleCode string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_code = $2`, userID, roleCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAssigned
	}
	return nil
}

func (r *repository) ReplaceUserRoles(ctx context.Context, userID int64, roleCodes []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, code := range roleCodes {
		if _, err := r.db.Exec(ctx, `INSERT INTO user_roles (user_id, role_code) VALUES ($1, $2)`, userID, code); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapUniqueViolation(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

var _ Repository = (*repository)(nil)
var _ TxRepository = (*repository)(nil)
