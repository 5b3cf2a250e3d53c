// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-portal/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

const userColumns = `id::text, nick, password_hash, department, role, avatar_url, account_id, created_at`

// UserRepository handles the user directory.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Nick,
		&user.PasswordHash,
		&user.Department,
		&user.Role,
		&user.AvatarURL,
		&user.AccountID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user. The caller provides the id.
// Returns ErrNickTaken if the nick is already registered.
func (r *UserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	query := `
		INSERT INTO users (id, nick, password_hash, department, role, avatar_url, account_id, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + userColumns

	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, query,
		u.ID, u.Nick, u.PasswordHash, u.Department, u.Role, u.AvatarURL, u.AccountID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrNickTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by id.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = $1`
	return r.getOne(ctx, query, id)
}

// GetByNick retrieves a user by exact nick.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByNick(ctx context.Context, nick string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE nick = $1`
	return r.getOne(ctx, query, nick)
}

// GetByAccountID retrieves the first user linked to a game account.
// Returns ErrUserNotFound if no user is linked.
func (r *UserRepository) GetByAccountID(ctx context.Context, accountID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE account_id = $1 ORDER BY created_at LIMIT 1`
	return r.getOne(ctx, query, accountID)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns every user ordered by nick.
func (r *UserRepository) List(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY nick`

	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateRole sets a user's role.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role string) error {
	const query = `UPDATE users SET role = $2 WHERE id::text = $1`

	result, err := conn(ctx, r.pool).Exec(ctx, query, id, role)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
