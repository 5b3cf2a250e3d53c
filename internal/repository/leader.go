package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-portal/internal/model"
)

// rolloverLockID is the advisory lock key held while a rollover transaction runs.
const rolloverLockID int64 = 0x6c656164657273 // "leaders"

const leaderColumns = `id, nick, account_id, avatar_url, department,
	COALESCE(points_day, 0), COALESCE(points_week, 0), updated_at`

// LeaderRepository handles the leaderinfo table.
type LeaderRepository struct {
	pool *pgxpool.Pool
}

// NewLeaderRepository creates a new LeaderRepository instance.
func NewLeaderRepository(pool *pgxpool.Pool) *LeaderRepository {
	return &LeaderRepository{pool: pool}
}

func scanLeader(row pgx.Row) (*model.Leader, error) {
	var l model.Leader
	err := row.Scan(
		&l.ID,
		&l.Nick,
		&l.AccountID,
		&l.AvatarURL,
		&l.Department,
		&l.PointsDay,
		&l.PointsWeek,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLeaders(rows pgx.Rows) ([]*model.Leader, error) {
	defer rows.Close()

	var leaders []*model.Leader
	for rows.Next() {
		l, err := scanLeader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leader: %w", err)
		}
		leaders = append(leaders, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaders: %w", err)
	}

	return leaders, nil
}

// Create inserts a leader row.
func (r *LeaderRepository) Create(ctx context.Context, l *model.Leader) error {
	const query = `
		INSERT INTO leaderinfo (id, nick, account_id, avatar_url, department, points_day, points_week, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		l.ID, l.Nick, l.AccountID, l.AvatarURL, l.Department, l.PointsDay, l.PointsWeek)
	if err != nil {
		return fmt.Errorf("failed to create leader: %w", err)
	}
	return nil
}

// List returns every leader ordered by id.
// Inside a transaction the rows are locked until commit.
func (r *LeaderRepository) List(ctx context.Context) ([]*model.Leader, error) {
	query := `SELECT ` + leaderColumns + ` FROM leaderinfo ORDER BY id`
	if _, inTx := ctx.Value(txKey{}).(pgx.Tx); inTx {
		query += ` FOR UPDATE`
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaders: %w", err)
	}
	return collectLeaders(rows)
}

// TopByDay returns the leaders with the most daily points.
func (r *LeaderRepository) TopByDay(ctx context.Context, limit int) ([]*model.Leader, error) {
	query := `SELECT ` + leaderColumns + `
		FROM leaderinfo
		ORDER BY COALESCE(points_day, 0) DESC, id
		LIMIT $1`

	rows, err := conn(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top leaders: %w", err)
	}
	return collectLeaders(rows)
}

// ByDepartments returns the leaders whose department is in depts, ordered by id.
func (r *LeaderRepository) ByDepartments(ctx context.Context, depts []string) ([]*model.Leader, error) {
	query := `SELECT ` + leaderColumns + `
		FROM leaderinfo
		WHERE department = ANY($1)
		ORDER BY id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, depts)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaders by departments: %w", err)
	}
	return collectLeaders(rows)
}

// GetByNick returns the leader whose trimmed nick equals nick.
// Returns ErrLeaderNotFound if there is none.
func (r *LeaderRepository) GetByNick(ctx context.Context, nick string) (*model.Leader, error) {
	query := `SELECT ` + leaderColumns + `
		FROM leaderinfo
		WHERE TRIM(nick) = $1
		ORDER BY id
		LIMIT 1`

	l, err := scanLeader(conn(ctx, r.pool).QueryRow(ctx, query, nick))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaderNotFound
		}
		return nil, fmt.Errorf("failed to get leader: %w", err)
	}
	return l, nil
}

// UpdatePoints writes both counters for every update in a single batch.
// Returns ErrLeaderNotFound if any id no longer exists.
func (r *LeaderRepository) UpdatePoints(ctx context.Context, updates []model.PointUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	const query = `
		UPDATE leaderinfo
		SET points_day = $2, points_week = $3, updated_at = NOW()
		WHERE id = $1
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.ID, u.PointsDay, u.PointsWeek)
	}

	results := conn(ctx, r.pool).SendBatch(ctx, batch)
	defer results.Close()

	for _, u := range updates {
		tag, err := results.Exec()
		if err != nil {
			if isOutOfRange(err) {
				return fmt.Errorf("failed to update points for %s: %w", u.ID, ErrPointsOutOfRange)
			}
			return fmt.Errorf("failed to update points for %s: %w", u.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("failed to update points for %s: %w", u.ID, ErrLeaderNotFound)
		}
	}

	return results.Close()
}

// ResetWeek sets points_week to zero for every leader.
func (r *LeaderRepository) ResetWeek(ctx context.Context) error {
	const query = `UPDATE leaderinfo SET points_week = 0, updated_at = NOW()`

	if _, err := conn(ctx, r.pool).Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to reset weekly points: %w", err)
	}
	return nil
}

// UpdateProfile updates nick, account id and, when set, the avatar of one leader.
// Returns ErrLeaderNotFound if the id does not exist.
func (r *LeaderRepository) UpdateProfile(ctx context.Context, id string, p model.LeaderProfile) error {
	const query = `
		UPDATE leaderinfo
		SET nick = $2, account_id = $3, avatar_url = COALESCE($4, avatar_url), updated_at = NOW()
		WHERE id = $1
	`

	result, err := conn(ctx, r.pool).Exec(ctx, query, id, p.Nick, p.AccountID, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("failed to update leader: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLeaderNotFound
	}

	return nil
}

// AddDayPoints adds amount to the daily counter of the leader with the given nick.
// Returns the updated leader, ErrLeaderNotFound, or ErrPointsOutOfRange when the
// result would be negative or overflow.
func (r *LeaderRepository) AddDayPoints(ctx context.Context, nick string, amount int64) (*model.Leader, error) {
	query := `
		UPDATE leaderinfo
		SET points_day = COALESCE(points_day, 0) + $2, updated_at = NOW()
		WHERE id = (SELECT id FROM leaderinfo WHERE TRIM(nick) = $1 ORDER BY id LIMIT 1)
		RETURNING ` + leaderColumns

	l, err := scanLeader(conn(ctx, r.pool).QueryRow(ctx, query, nick, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaderNotFound
		}
		if isOutOfRange(err) {
			return nil, ErrPointsOutOfRange
		}
		return nil, fmt.Errorf("failed to add daily points: %w", err)
	}
	return l, nil
}

// SetDayPoints sets the daily counter of the leader with the given nick to an exact value.
// Returns the updated leader, or ErrLeaderNotFound.
func (r *LeaderRepository) SetDayPoints(ctx context.Context, nick string, points int64) (*model.Leader, error) {
	query := `
		UPDATE leaderinfo
		SET points_day = $2, updated_at = NOW()
		WHERE id = (SELECT id FROM leaderinfo WHERE TRIM(nick) = $1 ORDER BY id LIMIT 1)
		RETURNING ` + leaderColumns

	l, err := scanLeader(conn(ctx, r.pool).QueryRow(ctx, query, nick, points))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaderNotFound
		}
		if isOutOfRange(err) {
			return nil, ErrPointsOutOfRange
		}
		return nil, fmt.Errorf("failed to set daily points: %w", err)
	}
	return l, nil
}

// LockRollover takes the transaction-scoped advisory lock that serializes rollovers.
// It must be called inside TxManager.WithinTx.
func (r *LeaderRepository) LockRollover(ctx context.Context) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); !ok {
		return ErrNoTransaction
	}

	if _, err := conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, rolloverLockID); err != nil {
		return fmt.Errorf("failed to acquire rollover lock: %w", err)
	}
	return nil
}
