package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrLeaderNotFound       = errors.New("leader not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNickTaken            = errors.New("nick already registered")
	ErrReactionNotFound     = errors.New("reaction not found")
	ErrPersonalFileNotFound = errors.New("personal file not found")
	ErrNoTransaction        = errors.New("operation requires a transaction")
	ErrPointsOutOfRange     = errors.New("points out of range")
)

// PostgreSQL SQLSTATEs for values a counter column cannot hold.
const (
	numericOutOfRange = "22003"
	checkViolation    = "23514"
)

// isOutOfRange reports whether err is a rejected counter value (bigint overflow or
// the non-negative CHECK constraint).
func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == numericOutOfRange || pgErr.Code == checkViolation
}
