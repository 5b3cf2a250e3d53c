package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-portal/internal/model"
)

// PersonalFileRepository handles read access to personal_files.
type PersonalFileRepository struct {
	pool *pgxpool.Pool
}

// NewPersonalFileRepository creates a new PersonalFileRepository instance.
func NewPersonalFileRepository(pool *pgxpool.Pool) *PersonalFileRepository {
	return &PersonalFileRepository{pool: pool}
}

// List returns every personal file ordered by forum nick.
func (r *PersonalFileRepository) List(ctx context.Context) ([]*model.PersonalFile, error) {
	const query = `
		SELECT id, forum_nick, forum_dept, account_number, rank
		FROM personal_files
		ORDER BY forum_nick, id
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal files: %w", err)
	}
	defer rows.Close()

	var files []*model.PersonalFile
	for rows.Next() {
		var f model.PersonalFile
		if err := rows.Scan(&f.ID, &f.ForumNick, &f.ForumDept, &f.AccountNumber, &f.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan personal file: %w", err)
		}
		files = append(files, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating personal files: %w", err)
	}

	return files, nil
}

// GetByID returns one personal file, or ErrPersonalFileNotFound.
func (r *PersonalFileRepository) GetByID(ctx context.Context, id string) (*model.PersonalFile, error) {
	const query = `
		SELECT id, forum_nick, forum_dept, account_number, rank
		FROM personal_files
		WHERE id = $1
	`

	var f model.PersonalFile
	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&f.ID, &f.ForumNick, &f.ForumDept, &f.AccountNumber, &f.Rank)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonalFileNotFound
		}
		return nil, fmt.Errorf("failed to get personal file: %w", err)
	}
	return &f, nil
}

// Create inserts a personal file.
func (r *PersonalFileRepository) Create(ctx context.Context, f *model.PersonalFile) error {
	const query = `
		INSERT INTO personal_files (id, forum_nick, forum_dept, account_number, rank)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := conn(ctx, r.pool).Exec(ctx, query, f.ID, f.ForumNick, f.ForumDept, f.AccountNumber, f.Rank); err != nil {
		return fmt.Errorf("failed to create personal file: %w", err)
	}
	return nil
}
