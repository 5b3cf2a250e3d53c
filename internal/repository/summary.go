package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"community-portal/internal/model"
)

// SummaryRepository handles the append-only leader_weekly_summary table.
type SummaryRepository struct {
	pool *pgxpool.Pool
}

// NewSummaryRepository creates a new SummaryRepository instance.
func NewSummaryRepository(pool *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{pool: pool}
}

// Insert appends one closed week.
func (r *SummaryRepository) Insert(ctx context.Context, s *model.WeeklySummary) error {
	const query = `
		INSERT INTO leader_weekly_summary (
			week_start, week_end,
			nick_1, dept_1, ash_1,
			nick_2, dept_2, ash_2,
			nick_3, dept_3, ash_3,
			total_ash
		)
		VALUES ($1::date, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		s.WeekStart, s.WeekEnd,
		s.Nick1, s.Dept1, s.Ash1,
		s.Nick2, s.Dept2, s.Ash2,
		s.Nick3, s.Dept3, s.Ash3,
		s.TotalAsh,
	)
	if err != nil {
		return fmt.Errorf("failed to insert weekly summary: %w", err)
	}
	return nil
}

// Latest returns up to limit summaries, newest week first.
func (r *SummaryRepository) Latest(ctx context.Context, limit int) ([]*model.WeeklySummary, error) {
	const query = `
		SELECT
			to_char(week_start, 'YYYY-MM-DD'), to_char(week_end, 'YYYY-MM-DD'),
			nick_1, dept_1, ash_1,
			nick_2, dept_2, ash_2,
			nick_3, dept_3, ash_3,
			total_ash
		FROM leader_weekly_summary
		ORDER BY week_start DESC, id DESC
		LIMIT $1
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*model.WeeklySummary
	for rows.Next() {
		var s model.WeeklySummary
		err := rows.Scan(
			&s.WeekStart, &s.WeekEnd,
			&s.Nick1, &s.Dept1, &s.Ash1,
			&s.Nick2, &s.Dept2, &s.Ash2,
			&s.Nick3, &s.Dept3, &s.Ash3,
			&s.TotalAsh,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weekly summary: %w", err)
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weekly summaries: %w", err)
	}

	return summaries, nil
}
