// Package users provides a PostgreSQL-backed repository for user records.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/simpleauth/internal/common"
	"github.com/dmitrijs2005/simpleauth/internal/dbx"
	"github.com/dmitrijs2005/simpleauth/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, username, email, first_name, last_name, password_hash, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var updated sql.NullTime
	err := row.Scan(&user.ID, &user.UserName, &user.Email, &user.FirstName,
		&user.LastName, &user.PasswordHash, &user.CreatedAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if updated.Valid {
		user.UpdatedAt = updated.Time
	}
	return user, nil
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		user := &models.User{}
		var updated sql.NullTime
		if err := rows.Scan(&user.ID, &user.UserName, &user.Email, &user.FirstName,
			&user.LastName, &user.PasswordHash, &user.CreatedAt, &updated); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if updated.Valid {
			user.UpdatedAt = updated.Time
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Create inserts a new user row. A duplicate username or email maps to
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Email, user.FirstName, user.LastName, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByID returns a user by id, excluding soft-deleted rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE id = $1 AND NOT is_deleted
	`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByUserName returns a user by username (case-insensitive).
func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE lower(username) = lower($1) AND NOT is_deleted
	`
	return scanUser(r.db.QueryRowContext(ctx, query, userName))
}

// GetByEmail returns a user by email (case-insensitive).
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE lower(email) = lower($1) AND NOT is_deleted
	`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetAll returns all live users ordered by creation time.
func (r *PostgresRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE NOT is_deleted
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanUsers(rows)
}

// Search returns live users whose first or last name contains term.
func (r *PostgresRepository) Search(ctx context.Context, term string) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE (first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%')
		  AND NOT is_deleted
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, term)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanUsers(rows)
}

// Update changes the mutable profile fields of a user and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING ` + userColumns + `
	`
	return scanUser(r.db.QueryRowContext(ctx, query, user.ID, user.FirstName, user.LastName))
}

// SoftDelete marks the user deleted. Deleting an absent or already deleted
// user is not an error.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET is_deleted = TRUE, deleted_at = now()
		WHERE id = $1 AND NOT is_deleted
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
