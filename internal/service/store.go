// Package service provides business logic implementations.
package service

import (
	"context"

	"community-portal/internal/model"
)

// LeaderStore is the leaderinfo table as the services need it.
// Implemented by repository.LeaderRepository and memory.Store.
type LeaderStore interface {
	List(ctx context.Context) ([]*model.Leader, error)
	TopByDay(ctx context.Context, limit int) ([]*model.Leader, error)
	ByDepartments(ctx context.Context, depts []string) ([]*model.Leader, error)
	GetByNick(ctx context.Context, nick string) (*model.Leader, error)
	UpdatePoints(ctx context.Context, updates []model.PointUpdate) error
	ResetWeek(ctx context.Context) error
	UpdateProfile(ctx context.Context, id string, p model.LeaderProfile) error
	AddDayPoints(ctx context.Context, nick string, amount int64) (*model.Leader, error)
	SetDayPoints(ctx context.Context, nick string, points int64) (*model.Leader, error)
	LockRollover(ctx context.Context) error
}

// SummaryStore is the append-only weekly summary table.
type SummaryStore interface {
	Insert(ctx context.Context, s *model.WeeklySummary) error
	Latest(ctx context.Context, limit int) ([]*model.WeeklySummary, error)
}

// ReactionStore keeps one reaction per (page, user_key).
type ReactionStore interface {
	Upsert(ctx context.Context, r *model.Reaction) error
	Delete(ctx context.Context, page, userKey string) error
	Get(ctx context.Context, page, userKey string) (*model.Reaction, error)
	Counts(ctx context.Context, page string) ([]*model.ReactionCount, error)
}

// UserStore is the user directory.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByNick(ctx context.Context, nick string) (*model.User, error)
	GetByAccountID(ctx context.Context, accountID string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	UpdateRole(ctx context.Context, id string, role string) error
}

// PersonalFileStore is read access to personnel records.
type PersonalFileStore interface {
	List(ctx context.Context) ([]*model.PersonalFile, error)
	GetByID(ctx context.Context, id string) (*model.PersonalFile, error)
}

// Transactor runs fn atomically. Stores called with the ctx passed to fn join the unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WeekNotifier is told about every closed week.
type WeekNotifier interface {
	WeekClosed(ctx context.Context, s *model.WeeklySummary) error
}
