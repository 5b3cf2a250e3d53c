package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"community-portal/internal/model"
	"community-portal/internal/pkg/lock"
)

// Limits for the leaderboard queries.
const (
	DefaultDayLimit  = 3
	MaxDayLimit      = 10
	DefaultWeekLimit = 8
	MaxWeekLimit     = 30
)

// DayPointsField is the only counter that can be adjusted by hand.
const DayPointsField = "points_day"

// ashLockTimeout bounds how long a manual adjustment waits for a running rollover.
const ashLockTimeout = 10 * time.Second

// MaxAshAmount is the largest amount a single adjustment may add.
const MaxAshAmount = math.MaxInt32

// ashHolder names manual adjustments on the rollover key.
const ashHolder = "ash/set"

// BulkRow is one profile update of the bulk endpoint.
type BulkRow struct {
	ID           string
	Nick         string
	AccountID    string
	AvatarBase64 string
}

// LeaderboardService serves the leaderboard projections and leader edits.
type LeaderboardService struct {
	leaders   LeaderStore
	summaries SummaryStore
	keyLock   *lock.KeyLock
}

// NewLeaderboardService creates a new LeaderboardService instance.
// keyLock should be the one shared with RolloverService.
func NewLeaderboardService(leaders LeaderStore, summaries SummaryStore, keyLock *lock.KeyLock) *LeaderboardService {
	if keyLock == nil {
		keyLock = lock.NewKeyLock()
	}
	return &LeaderboardService{
		leaders:   leaders,
		summaries: summaries,
		keyLock:   keyLock,
	}
}

// ClampLimit returns def for non-positive requests and caps the rest at ceiling.
func ClampLimit(requested, def, ceiling int) int {
	if requested < 1 {
		return def
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

// TopByDay returns up to limit leaders by daily points, highest first.
func (s *LeaderboardService) TopByDay(ctx context.Context, limit int) ([]model.DayEntry, error) {
	limit = ClampLimit(limit, DefaultDayLimit, MaxDayLimit)

	leaders, err := s.leaders.TopByDay(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]model.DayEntry, 0, len(leaders))
	for _, l := range leaders {
		entries = append(entries, model.NewDayEntry(l))
	}
	return entries, nil
}

// TopByWeek returns up to limit closed weeks, newest first.
func (s *LeaderboardService) TopByWeek(ctx context.Context, limit int) ([]*model.WeeklySummary, error) {
	limit = ClampLimit(limit, DefaultWeekLimit, MaxWeekLimit)

	summaries, err := s.summaries.Latest(ctx, limit)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []*model.WeeklySummary{}
	}
	return summaries, nil
}

// ParseDepartments splits a comma separated list, trimming blanks and dropping empty names.
func ParseDepartments(raw string) []string {
	depts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if d := strings.TrimSpace(part); d != "" {
			depts = append(depts, d)
		}
	}
	return depts
}

// ByDepartments returns one entry per requested department in the caller's order.
// The first leader (by id) of a department wins; departments without one get a
// placeholder with empty nick and account.
func (s *LeaderboardService) ByDepartments(ctx context.Context, depts []string) ([]model.DepartmentEntry, error) {
	entries := make([]model.DepartmentEntry, 0, len(depts))
	if len(depts) == 0 {
		return entries, nil
	}

	leaders, err := s.leaders.ByDepartments(ctx, depts)
	if err != nil {
		return nil, err
	}

	first := make(map[string]*model.Leader, len(leaders))
	for _, l := range leaders {
		if _, seen := first[l.Department]; !seen {
			first[l.Department] = l
		}
	}

	for _, d := range depts {
		l, ok := first[d]
		if !ok {
			entries = append(entries, model.DepartmentEntry{Department: d})
			continue
		}
		id := l.ID
		entries = append(entries, model.DepartmentEntry{
			ID:         &id,
			Department: l.Department,
			Nick:       l.Nick,
			AccountID:  l.AccountID,
			AvatarURL:  l.AvatarURL,
		})
	}

	return entries, nil
}

// BulkUpdate applies profile rows in order. Every row is validated before the
// first write; a failing write stops the run and earlier rows stay applied.
func (s *LeaderboardService) BulkUpdate(ctx context.Context, rows []BulkRow) error {
	for _, r := range rows {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Nick) == "" || strings.TrimSpace(r.AccountID) == "" {
			return ErrInvalidBulkRow
		}
	}

	for i, r := range rows {
		profile := model.LeaderProfile{
			Nick:      strings.TrimSpace(r.Nick),
			AccountID: strings.TrimSpace(r.AccountID),
		}
		if r.AvatarBase64 != "" {
			avatar := r.AvatarBase64
			profile.AvatarURL = &avatar
		}

		if err := s.leaders.UpdateProfile(ctx, r.ID, profile); err != nil {
			log.Warn().
				Err(err).
				Int("row", i).
				Str("leader_id", r.ID).
				Msg("Bulk leader update stopped")
			return err
		}
	}

	log.Info().Int("rows", len(rows)).Msg("Bulk leader update applied")
	return nil
}

// AshChange is a parsed manual adjustment of the daily counter.
type AshChange struct {
	Reset  bool
	Amount int64
}

// ParseAsh accepts "x"/"X" (reset) or an integer amount in [0, MaxAshAmount].
// Integral decimal forms such as "5.0" are accepted.
func ParseAsh(raw string) (AshChange, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "x") {
		return AshChange{Reset: true}, nil
	}
	if raw == "" {
		return AshChange{}, ErrInvalidAsh
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 0 || n > MaxAshAmount {
			return AshChange{}, ErrInvalidAsh
		}
		return AshChange{Amount: n}, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > MaxAshAmount {
		return AshChange{}, ErrInvalidAsh
	}
	return AshChange{Amount: int64(f)}, nil
}

// SetAsh adjusts the daily points of the leader with the given nick.
// It waits for a rollover running in this process to finish first.
func (s *LeaderboardService) SetAsh(ctx context.Context, nick, ash, field string) (*model.Leader, error) {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return nil, ErrMissingNick
	}
	if field != DayPointsField {
		return nil, ErrInvalidField
	}

	change, err := ParseAsh(ash)
	if err != nil {
		return nil, err
	}

	var leader *model.Leader
	err = s.keyLock.WithLock(ctx, RolloverLockKey, ashHolder, ashLockTimeout, func() error {
		var err error
		if change.Reset {
			leader, err = s.leaders.SetDayPoints(ctx, nick, 0)
		} else {
			leader, err = s.leaders.AddDayPoints(ctx, nick, change.Amount)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set ash for %s: %w", nick, err)
	}

	log.Info().
		Str("nick", nick).
		Bool("reset", change.Reset).
		Int64("amount", change.Amount).
		Int64("points_day", leader.PointsDay).
		Msg("Daily points adjusted")

	return leader, nil
}
