package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"community-portal/internal/model"
	"community-portal/internal/pkg/lock"
	"community-portal/internal/pkg/metrics"
)

// RolloverLockKey is the KeyLock key held for the duration of a rollover.
// Manual adjustments of the daily counter hold it too.
const RolloverLockKey = "leaders:rollover"

// rolloverHolder names rollovers on the rollover key.
const rolloverHolder = "rollover"

// rolloverLockWait bounds how long a rollover waits for a manual adjustment to finish.
const rolloverLockWait = 2 * time.Second

// PodiumSize is the number of ranked positions stored per closed week.
const PodiumSize = 3

const dateLayout = "2006-01-02"

// RolloverResult describes a completed rollover.
type RolloverResult struct {
	Leaders    int                  `json:"leaders"`
	ClosedWeek bool                 `json:"closed_week"`
	Summary    *model.WeeklySummary `json:"summary,omitempty"`
}

// RolloverService advances the scoring period by one day and optionally closes the week.
type RolloverService struct {
	leaders   LeaderStore
	summaries SummaryStore
	tx        Transactor
	keyLock   *lock.KeyLock
	notifier  WeekNotifier
	metrics   *metrics.Metrics
	now       func() time.Time
	lockWait  time.Duration
}

// NewRolloverService creates a new RolloverService instance.
// notifier and m may be nil; now defaults to time.Now.
func NewRolloverService(
	leaders LeaderStore,
	summaries SummaryStore,
	tx Transactor,
	keyLock *lock.KeyLock,
	notifier WeekNotifier,
	m *metrics.Metrics,
	now func() time.Time,
) *RolloverService {
	if keyLock == nil {
		keyLock = lock.NewKeyLock()
	}
	if now == nil {
		now = time.Now
	}
	return &RolloverService{
		leaders:   leaders,
		summaries: summaries,
		tx:        tx,
		keyLock:   keyLock,
		notifier:  notifier,
		metrics:   m,
		now:       now,
		lockWait:  rolloverLockWait,
	}
}

// Perform folds every leader's daily points into the weekly total and zeroes the
// daily counter. With closeWeek it then snapshots the podium into a weekly summary
// and zeroes the weekly counters.
//
// All steps share one transaction: on error nothing is applied.
// Returns ErrRolloverInProgress if another rollover is running in this process,
// or lock.ErrLockTimeout if a manual adjustment keeps the key past lockWait.
func (s *RolloverService) Perform(ctx context.Context, closeWeek bool) (*RolloverResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.keyLock.Unlock(RolloverLockKey)

	start := time.Now()
	result := &RolloverResult{ClosedWeek: closeWeek}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.leaders.LockRollover(ctx); err != nil {
			return err
		}

		leaders, err := s.leaders.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to read leaders: %w", err)
		}
		result.Leaders = len(leaders)

		if err := s.leaders.UpdatePoints(ctx, FoldDaily(leaders)); err != nil {
			return fmt.Errorf("failed to fold daily points: %w", err)
		}

		if !closeWeek {
			return nil
		}

		// Re-read so the snapshot reflects the writes above.
		leaders, err = s.leaders.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to re-read leaders: %w", err)
		}

		summary := BuildWeeklySummary(leaders, s.now())
		if err := s.summaries.Insert(ctx, summary); err != nil {
			return fmt.Errorf("failed to archive week: %w", err)
		}

		if err := s.leaders.ResetWeek(ctx); err != nil {
			return fmt.Errorf("failed to reset weekly points: %w", err)
		}

		result.Summary = summary
		return nil
	})

	s.metrics.ObserveRollover(closeWeek, err)

	if err != nil {
		log.Error().
			Err(err).
			Bool("close_week", closeWeek).
			Msg("Rollover failed")
		return nil, err
	}

	log.Info().
		Int("leaders", result.Leaders).
		Bool("close_week", closeWeek).
		Dur("took", time.Since(start)).
		Msg("Rollover completed")

	if result.Summary != nil && s.notifier != nil {
		if err := s.notifier.WeekClosed(ctx, result.Summary); err != nil {
			log.Warn().
				Err(err).
				Str("week_start", result.Summary.WeekStart).
				Msg("Failed to announce closed week")
		}
	}

	return result, nil
}

// acquire takes the rollover key. A running rollover is reported at once; a
// manual adjustment is waited for.
func (s *RolloverService) acquire(ctx context.Context) error {
	if s.keyLock.TryLock(RolloverLockKey, rolloverHolder) {
		return nil
	}
	if s.keyLock.Holder(RolloverLockKey) == rolloverHolder {
		return ErrRolloverInProgress
	}

	err := s.keyLock.Lock(ctx, RolloverLockKey, rolloverHolder, s.lockWait)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrLockTimeout) && s.keyLock.Holder(RolloverLockKey) == rolloverHolder:
		return ErrRolloverInProgress
	default:
		return fmt.Errorf("failed to start rollover: %w", err)
	}
}

// FoldDaily returns, for every leader, points_week + points_day as the new weekly
// total and zero as the new daily total. Sums saturate at math.MaxInt64.
func FoldDaily(leaders []*model.Leader) []model.PointUpdate {
	updates := make([]model.PointUpdate, 0, len(leaders))
	for _, l := range leaders {
		updates = append(updates, model.PointUpdate{
			ID:         l.ID,
			PointsDay:  0,
			PointsWeek: addPoints(l.PointsWeek, l.PointsDay),
		})
	}
	return updates
}

// RankWeekly orders leaders by weekly points, highest first, ties by ascending id.
// The input slice is not modified.
func RankWeekly(leaders []*model.Leader) []*model.Leader {
	ranked := make([]*model.Leader, len(leaders))
	copy(ranked, leaders)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].PointsWeek != ranked[j].PointsWeek {
			return ranked[i].PointsWeek > ranked[j].PointsWeek
		}
		return ranked[i].ID < ranked[j].ID
	})

	return ranked
}

// WeekRange returns the Monday..Sunday range of the week that ended before the
// most recent Monday (today included) in UTC.
func WeekRange(now time.Time) (start, end time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	sinceMonday := (int(today.Weekday()) + 6) % 7
	lastMonday := today.AddDate(0, 0, -sinceMonday)

	start = lastMonday.AddDate(0, 0, -7)
	end = start.AddDate(0, 0, 6)
	return start, end
}

// BuildWeeklySummary snapshots the podium and the total weekly points of leaders.
// Missing podium positions stay empty with zero points.
func BuildWeeklySummary(leaders []*model.Leader, now time.Time) *model.WeeklySummary {
	start, end := WeekRange(now)

	summary := &model.WeeklySummary{
		WeekStart: start.Format(dateLayout),
		WeekEnd:   end.Format(dateLayout),
	}

	for i, l := range RankWeekly(leaders) {
		if i >= PodiumSize {
			break
		}
		summary.SetPlace(i+1, model.RankedEntry{
			Nick:       strings.TrimSpace(l.Nick),
			Department: l.Department,
			Points:     nonNegative(l.PointsWeek),
		})
	}

	for _, l := range leaders {
		summary.TotalAsh = addPoints(summary.TotalAsh, l.PointsWeek)
	}

	return summary
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// addPoints sums two counters, treating negatives as zero and saturating at math.MaxInt64.
func addPoints(a, b int64) int64 {
	a, b = nonNegative(a), nonNegative(b)
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
