package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"community-portal/internal/model"
	"community-portal/internal/pkg/lock"
	"community-portal/internal/repository"
	"community-portal/internal/repository/memory"
)

func newLeaderboard(store *memory.Store, kl *lock.KeyLock) *LeaderboardService {
	return NewLeaderboardService(store.Leaders(), store.Summaries(), kl)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultDayLimit, ClampLimit(0, DefaultDayLimit, MaxDayLimit))
	assert.Equal(t, DefaultDayLimit, ClampLimit(-4, DefaultDayLimit, MaxDayLimit))
	assert.Equal(t, 7, ClampLimit(7, DefaultDayLimit, MaxDayLimit))
	assert.Equal(t, MaxDayLimit, ClampLimit(500, DefaultDayLimit, MaxDayLimit))
	assert.Equal(t, MaxWeekLimit, ClampLimit(31, DefaultWeekLimit, MaxWeekLimit))
}

func TestTopByDay(t *testing.T) {
	store := memory.NewStore()
	store.SeedLeaders(
		model.Leader{ID: "1", Nick: " One_A ", PointsDay: 5},
		model.Leader{ID: "2", Nick: "Two_B", PointsDay: 1},
		model.Leader{ID: "3", Nick: "Three_C", PointsDay: 9},
		model.Leader{ID: "4", Nick: "Four_D", PointsDay: 3},
	)
	svc := newLeaderboard(store, nil)

	entries, err := svc.TopByDay(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	points := []int64{entries[0].Points, entries[1].Points, entries[2].Points}
	assert.Equal(t, []int64{9, 5, 3}, points)
	assert.Equal(t, "One_A", entries[1].Nick)
}

func TestTopByDayProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := memory.NewStore()
		leaders := drawLeaders(t)
		for _, l := range leaders {
			store.SeedLeaders(*l)
		}
		limit := rapid.IntRange(-2, 40).Draw(t, "limit")

		entries, err := newLeaderboard(store, nil).TopByDay(context.Background(), limit)
		if err != nil {
			t.Fatalf("TopByDay failed: %v", err)
		}

		want := min(ClampLimit(limit, DefaultDayLimit, MaxDayLimit), len(leaders))
		if len(entries) != want {
			t.Fatalf("expected %d entries, got %d", want, len(entries))
		}
		for i := 1; i < len(entries); i++ {
			if entries[i-1].Points < entries[i].Points {
				t.Fatalf("entries not sorted: %d before %d", entries[i-1].Points, entries[i].Points)
			}
		}
	})
}

func TestTopByWeek(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newLeaderboard(store, nil)

	weeks, err := svc.TopByWeek(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, weeks)
	assert.Empty(t, weeks)

	for _, start := range []string{"2024-04-29", "2024-05-06", "2024-04-22"} {
		require.NoError(t, store.Summaries().Insert(ctx, &model.WeeklySummary{WeekStart: start}))
	}

	weeks, err = svc.TopByWeek(ctx, 2)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, "2024-05-06", weeks[0].WeekStart)
	assert.Equal(t, "2024-04-29", weeks[1].WeekStart)
}

func TestParseDepartments(t *testing.T) {
	assert.Equal(t, []string{"X", "Y"}, ParseDepartments(" X , ,Y,"))
	assert.Empty(t, ParseDepartments(""))
	assert.NotNil(t, ParseDepartments(""))
}

func TestByDepartments(t *testing.T) {
	store := memory.NewStore()
	avatar := "data:image/png;base64,AAA"
	store.SeedLeaders(
		model.Leader{ID: "2", Nick: "Second_X", AccountID: "acc2", Department: "X"},
		model.Leader{ID: "1", Nick: "First_X", AccountID: "acc1", Department: "X", AvatarURL: &avatar},
	)
	svc := newLeaderboard(store, nil)

	entries, err := svc.ByDepartments(context.Background(), []string{"Y", "X"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, model.DepartmentEntry{Department: "Y"}, entries[0])

	require.NotNil(t, entries[1].ID)
	assert.Equal(t, "1", *entries[1].ID)
	assert.Equal(t, "First_X", entries[1].Nick)
	assert.Equal(t, "acc1", entries[1].AccountID)
	assert.Equal(t, &avatar, entries[1].AvatarURL)
}

func TestByDepartments_Empty(t *testing.T) {
	entries, err := newLeaderboard(memory.NewStore(), nil).ByDepartments(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestBulkUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	old := "old"
	store.SeedLeaders(
		model.Leader{ID: "1", Nick: "Old_One", AccountID: "a1", AvatarURL: &old},
		model.Leader{ID: "2", Nick: "Old_Two", AccountID: "a2", AvatarURL: &old},
	)
	svc := newLeaderboard(store, nil)

	err := svc.BulkUpdate(ctx, []BulkRow{
		{ID: "1", Nick: " New_One ", AccountID: "b1"},
		{ID: "2", Nick: "New_Two", AccountID: "b2", AvatarBase64: "new"},
	})
	require.NoError(t, err)

	one, _ := store.Leader("1")
	two, _ := store.Leader("2")
	assert.Equal(t, "New_One", one.Nick)
	assert.Equal(t, "b1", one.AccountID)
	assert.Equal(t, "old", *one.AvatarURL, "empty avatar keeps the stored one")
	assert.Equal(t, "new", *two.AvatarURL)
}

func TestBulkUpdate_ValidatesBeforeWriting(t *testing.T) {
	store := memory.NewStore()
	store.SeedLeaders(model.Leader{ID: "1", Nick: "Old_One", AccountID: "a1"})
	svc := newLeaderboard(store, nil)

	err := svc.BulkUpdate(context.Background(), []BulkRow{
		{ID: "1", Nick: "New_One", AccountID: "b1"},
		{ID: "2", Nick: "", AccountID: "b2"},
	})
	assert.ErrorIs(t, err, ErrInvalidBulkRow)

	one, _ := store.Leader("1")
	assert.Equal(t, "Old_One", one.Nick)
}

func TestBulkUpdate_UnknownID(t *testing.T) {
	store := memory.NewStore()
	err := newLeaderboard(store, nil).BulkUpdate(context.Background(), []BulkRow{
		{ID: "404", Nick: "No_One", AccountID: "x"},
	})
	assert.ErrorIs(t, err, repository.ErrLeaderNotFound)
}

func TestParseAsh(t *testing.T) {
	tests := []struct {
		in      string
		want    AshChange
		wantErr bool
	}{
		{"x", AshChange{Reset: true}, false},
		{" X ", AshChange{Reset: true}, false},
		{"5", AshChange{Amount: 5}, false},
		{"0", AshChange{Amount: 0}, false},
		{"12.0", AshChange{Amount: 12}, false},
		{"-1", AshChange{}, true},
		{"1.5", AshChange{}, true},
		{"abc", AshChange{}, true},
		{"", AshChange{}, true},
		{"NaN", AshChange{}, true},
		{"2147483647", AshChange{Amount: MaxAshAmount}, false},
		{"2147483648", AshChange{}, true},
		{"9223372036854775807", AshChange{}, true},
		{"99999999999999999999", AshChange{}, true},
		{"2147483648.0", AshChange{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAsh(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAsh)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetAsh(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedLeaders(model.Leader{ID: "1", Nick: "Anna_Petrova ", PointsDay: 42})
	svc := newLeaderboard(store, nil)

	l, err := svc.SetAsh(ctx, "Anna_Petrova", "5", DayPointsField)
	require.NoError(t, err)
	assert.Equal(t, int64(47), l.PointsDay)

	l, err = svc.SetAsh(ctx, " Anna_Petrova", "x", DayPointsField)
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.PointsDay)

	_, err = svc.SetAsh(ctx, "Anna_Petrova", "-1", DayPointsField)
	assert.ErrorIs(t, err, ErrInvalidAsh)

	_, err = svc.SetAsh(ctx, "Anna_Petrova", "5", "points_week")
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = svc.SetAsh(ctx, "  ", "5", DayPointsField)
	assert.ErrorIs(t, err, ErrMissingNick)

	_, err = svc.SetAsh(ctx, "Nobody_Here", "5", DayPointsField)
	assert.ErrorIs(t, err, repository.ErrLeaderNotFound)

	stored, _ := store.Leader("1")
	assert.Equal(t, int64(0), stored.PointsDay)
}

func TestSetAsh_RejectsOverflow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedLeaders(
		model.Leader{ID: "1", Nick: "Anna_Petrova", PointsDay: 42},
		model.Leader{ID: "2", Nick: "Boris_Ivanov", PointsDay: math.MaxInt64 - 3},
	)
	svc := newLeaderboard(store, nil)

	_, err := svc.SetAsh(ctx, "Anna_Petrova", "9223372036854775807", DayPointsField)
	assert.ErrorIs(t, err, ErrInvalidAsh)
	a, _ := store.Leader("1")
	assert.Equal(t, int64(42), a.PointsDay)

	_, err = svc.SetAsh(ctx, "Boris_Ivanov", "5", DayPointsField)
	assert.ErrorIs(t, err, repository.ErrPointsOutOfRange)
	b, _ := store.Leader("2")
	assert.Equal(t, int64(math.MaxInt64-3), b.PointsDay)

	l, err := svc.SetAsh(ctx, "Boris_Ivanov", "3", DayPointsField)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), l.PointsDay)
}

func TestSetAsh_WaitsForRollover(t *testing.T) {
	store := memory.NewStore()
	store.SeedLeaders(model.Leader{ID: "1", Nick: "Anna_Petrova", PointsDay: 1})
	kl := lock.NewKeyLock()
	svc := newLeaderboard(store, kl)

	require.True(t, kl.TryLock(RolloverLockKey, rolloverHolder))
	done := make(chan error, 1)
	go func() {
		_, err := svc.SetAsh(context.Background(), "Anna_Petrova", "2", DayPointsField)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("SetAsh finished while the rollover key was held")
	case <-time.After(50 * time.Millisecond):
	}

	kl.Unlock(RolloverLockKey)
	require.NoError(t, <-done)

	l, _ := store.Leader("1")
	assert.Equal(t, int64(3), l.PointsDay)
}

func TestSetAsh_ContextCancelled(t *testing.T) {
	store := memory.NewStore()
	store.SeedLeaders(model.Leader{ID: "1", Nick: "Anna_Petrova"})
	kl := lock.NewKeyLock()
	svc := newLeaderboard(store, kl)

	require.True(t, kl.TryLock(RolloverLockKey, rolloverHolder))
	defer kl.Unlock(RolloverLockKey)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.SetAsh(ctx, "Anna_Petrova", "2", DayPointsField)
	assert.Error(t, err)
}
