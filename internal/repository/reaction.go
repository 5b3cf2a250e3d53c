package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-portal/internal/model"
)

// ReactionRepository handles page_reactions and the page_reaction_counts view.
type ReactionRepository struct {
	pool *pgxpool.Pool
}

// NewReactionRepository creates a new ReactionRepository instance.
func NewReactionRepository(pool *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{pool: pool}
}

// Upsert inserts or replaces the reaction keyed by (page, user_key).
func (r *ReactionRepository) Upsert(ctx context.Context, rc *model.Reaction) error {
	const query = `
		INSERT INTO page_reactions (page, user_key, reaction, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (page, user_key)
		DO UPDATE SET reaction = EXCLUDED.reaction, updated_at = EXCLUDED.updated_at
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query, rc.Page, rc.UserKey, rc.Reaction, rc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert reaction: %w", err)
	}
	return nil
}

// Delete removes the reaction for (page, user_key). Deleting a missing row is not an error.
func (r *ReactionRepository) Delete(ctx context.Context, page, userKey string) error {
	const query = `DELETE FROM page_reactions WHERE page = $1 AND user_key = $2`

	if _, err := conn(ctx, r.pool).Exec(ctx, query, page, userKey); err != nil {
		return fmt.Errorf("failed to delete reaction: %w", err)
	}
	return nil
}

// Get returns the reaction for (page, user_key), or ErrReactionNotFound.
func (r *ReactionRepository) Get(ctx context.Context, page, userKey string) (*model.Reaction, error) {
	const query = `
		SELECT page, user_key, reaction, updated_at
		FROM page_reactions
		WHERE page = $1 AND user_key = $2
	`

	var rc model.Reaction
	err := conn(ctx, r.pool).QueryRow(ctx, query, page, userKey).Scan(
		&rc.Page,
		&rc.UserKey,
		&rc.Reaction,
		&rc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReactionNotFound
		}
		return nil, fmt.Errorf("failed to get reaction: %w", err)
	}
	return &rc, nil
}

// Counts returns per-reaction totals for a page.
func (r *ReactionRepository) Counts(ctx context.Context, page string) ([]*model.ReactionCount, error) {
	const query = `
		SELECT reaction, cnt
		FROM page_reaction_counts
		WHERE page = $1
		ORDER BY cnt DESC, reaction
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query, page)
	if err != nil {
		return nil, fmt.Errorf("failed to get reaction counts: %w", err)
	}
	defer rows.Close()

	var counts []*model.ReactionCount
	for rows.Next() {
		var c model.ReactionCount
		if err := rows.Scan(&c.Reaction, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan reaction count: %w", err)
		}
		counts = append(counts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reaction counts: %w", err)
	}

	return counts, nil
}
