// Package memory provides an in-process implementation of every store the
// services use. It backs database.driver "memory" and the handler tests.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"community-portal/internal/model"
	"community-portal/internal/repository"
)

type txKey struct{}

type reactionKey struct {
	page    string
	userKey string
}

type snapshot struct {
	leaders   map[string]model.Leader
	summaries []model.WeeklySummary
	reactions map[reactionKey]model.Reaction
	users     map[string]model.User
}

// Store keeps all tables in maps guarded by one mutex.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	leaders   map[string]model.Leader
	summaries []model.WeeklySummary
	reactions map[reactionKey]model.Reaction
	users     map[string]model.User
	files     map[string]model.PersonalFile

	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		leaders:   make(map[string]model.Leader),
		reactions: make(map[reactionKey]model.Reaction),
		users:     make(map[string]model.User),
		files:     make(map[string]model.PersonalFile),
		now:       time.Now,
	}
}

// Leaders returns the leaderinfo view of the store.
func (s *Store) Leaders() *Leaders { return &Leaders{s: s} }

// Summaries returns the weekly summary view of the store.
func (s *Store) Summaries() *Summaries { return &Summaries{s: s} }

// Reactions returns the page reactions view of the store.
func (s *Store) Reactions() *Reactions { return &Reactions{s: s} }

// Users returns the user directory view of the store.
func (s *Store) Users() *Users { return &Users{s: s} }

// PersonalFiles returns the personnel records view of the store.
func (s *Store) PersonalFiles() *PersonalFiles { return &PersonalFiles{s: s} }

// WithinTx runs fn with exclusive write access and restores the previous
// state of leaders, summaries, reactions and users when fn fails.
// Nested calls reuse the outer unit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bool); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		leaders:   make(map[string]model.Leader, len(s.leaders)),
		summaries: append([]model.WeeklySummary(nil), s.summaries...),
		reactions: make(map[reactionKey]model.Reaction, len(s.reactions)),
		users:     make(map[string]model.User, len(s.users)),
	}
	for k, v := range s.leaders {
		snap.leaders[k] = v
	}
	for k, v := range s.reactions {
		snap.reactions[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.leaders = snap.leaders
	s.summaries = snap.summaries
	s.reactions = snap.reactions
	s.users = snap.users
}

// SeedLeaders inserts or replaces leader rows.
func (s *Store) SeedLeaders(leaders ...model.Leader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range leaders {
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = s.now().UTC()
		}
		s.leaders[l.ID] = l
	}
}

// SeedPersonalFiles inserts or replaces personnel records.
func (s *Store) SeedPersonalFiles(files ...model.PersonalFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		s.files[f.ID] = f
	}
}

// Leader returns a copy of one leader row.
func (s *Store) Leader(id string) (model.Leader, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leaders[id]
	return l, ok
}

// sortedLeaders returns copies of all leaders ordered by id. Callers hold s.mu.
func (s *Store) sortedLeaders() []*model.Leader {
	out := make([]*model.Leader, 0, len(s.leaders))
	for _, l := range s.leaders {
		l := l
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Leaders implements the leaderinfo store.
type Leaders struct {
	s *Store
}

// Create inserts a leader row.
func (r *Leaders) Create(_ context.Context, l *model.Leader) error {
	r.s.SeedLeaders(*l)
	return nil
}

// List returns every leader ordered by id.
func (r *Leaders) List(_ context.Context) ([]*model.Leader, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.sortedLeaders(), nil
}

// TopByDay returns the leaders with the most daily points, ties by id.
func (r *Leaders) TopByDay(_ context.Context, limit int) ([]*model.Leader, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	leaders := r.s.sortedLeaders()
	sort.SliceStable(leaders, func(i, j int) bool {
		return leaders[i].PointsDay > leaders[j].PointsDay
	})
	if limit >= 0 && len(leaders) > limit {
		leaders = leaders[:limit]
	}
	return leaders, nil
}

// ByDepartments returns the leaders whose department is in depts, ordered by id.
func (r *Leaders) ByDepartments(_ context.Context, depts []string) ([]*model.Leader, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	wanted := make(map[string]struct{}, len(depts))
	for _, d := range depts {
		wanted[d] = struct{}{}
	}

	var out []*model.Leader
	for _, l := range r.s.sortedLeaders() {
		if _, ok := wanted[l.Department]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// findByNick returns the id of the first leader whose trimmed nick matches. Callers hold s.mu.
func (r *Leaders) findByNick(nick string) (string, bool) {
	for _, l := range r.s.sortedLeaders() {
		if strings.TrimSpace(l.Nick) == nick {
			return l.ID, true
		}
	}
	return "", false
}

// GetByNick returns the leader whose trimmed nick equals nick.
func (r *Leaders) GetByNick(_ context.Context, nick string) (*model.Leader, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.findByNick(nick)
	if !ok {
		return nil, repository.ErrLeaderNotFound
	}
	l := r.s.leaders[id]
	return &l, nil
}

// UpdatePoints writes both counters for every update.
// Nothing is written if any id is unknown or any counter is negative.
func (r *Leaders) UpdatePoints(_ context.Context, updates []model.PointUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range updates {
		if _, ok := r.s.leaders[u.ID]; !ok {
			return repository.ErrLeaderNotFound
		}
		if u.PointsDay < 0 || u.PointsWeek < 0 {
			return repository.ErrPointsOutOfRange
		}
	}

	now := r.s.now().UTC()
	for _, u := range updates {
		l := r.s.leaders[u.ID]
		l.PointsDay, l.PointsWeek, l.UpdatedAt = u.PointsDay, u.PointsWeek, now
		r.s.leaders[u.ID] = l
	}
	return nil
}

// ResetWeek sets points_week to zero for every leader.
func (r *Leaders) ResetWeek(_ context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	for id, l := range r.s.leaders {
		l.PointsWeek, l.UpdatedAt = 0, now
		r.s.leaders[id] = l
	}
	return nil
}

// UpdateProfile updates nick, account id and, when set, the avatar of one leader.
func (r *Leaders) UpdateProfile(_ context.Context, id string, p model.LeaderProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.leaders[id]
	if !ok {
		return repository.ErrLeaderNotFound
	}
	l.Nick, l.AccountID = p.Nick, p.AccountID
	if p.AvatarURL != nil {
		avatar := *p.AvatarURL
		l.AvatarURL = &avatar
	}
	l.UpdatedAt = r.s.now().UTC()
	r.s.leaders[id] = l
	return nil
}

func (r *Leaders) updateDay(nick string, fn func(int64) (int64, error)) (*model.Leader, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.findByNick(nick)
	if !ok {
		return nil, repository.ErrLeaderNotFound
	}
	l := r.s.leaders[id]
	points, err := fn(l.PointsDay)
	if err != nil {
		return nil, err
	}
	l.PointsDay = points
	l.UpdatedAt = r.s.now().UTC()
	r.s.leaders[id] = l
	return &l, nil
}

// AddDayPoints adds amount to the daily counter of the leader with the given nick.
// A result below zero or past math.MaxInt64 is rejected like the CHECK constraint.
func (r *Leaders) AddDayPoints(_ context.Context, nick string, amount int64) (*model.Leader, error) {
	return r.updateDay(nick, func(v int64) (int64, error) {
		if amount < 0 && v+amount < 0 {
			return 0, repository.ErrPointsOutOfRange
		}
		if amount > 0 && v > math.MaxInt64-amount {
			return 0, repository.ErrPointsOutOfRange
		}
		return v + amount, nil
	})
}

// SetDayPoints sets the daily counter of the leader with the given nick.
func (r *Leaders) SetDayPoints(_ context.Context, nick string, points int64) (*model.Leader, error) {
	return r.updateDay(nick, func(int64) (int64, error) {
		if points < 0 {
			return 0, repository.ErrPointsOutOfRange
		}
		return points, nil
	})
}

// LockRollover requires a unit opened by Store.WithinTx, which already
// serializes writers.
func (r *Leaders) LockRollover(ctx context.Context) error {
	if _, ok := ctx.Value(txKey{}).(bool); !ok {
		return repository.ErrNoTransaction
	}
	return nil
}

// Summaries implements the weekly summary store.
type Summaries struct {
	s *Store
}

// Insert appends one closed week.
func (r *Summaries) Insert(_ context.Context, sum *model.WeeklySummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.summaries = append(r.s.summaries, *sum)
	return nil
}

// Latest returns up to limit summaries, newest week first.
func (r *Summaries) Latest(_ context.Context, limit int) ([]*model.WeeklySummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.WeeklySummary, 0, len(r.s.summaries))
	for i := len(r.s.summaries) - 1; i >= 0; i-- {
		sum := r.s.summaries[i]
		out = append(out, &sum)
	}
	// Dates are YYYY-MM-DD, so string order is date order; later inserts win ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].WeekStart > out[j].WeekStart })

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reactions implements the page reactions store.
type Reactions struct {
	s *Store
}

// Upsert creates or replaces the reaction of (page, user_key).
func (r *Reactions) Upsert(_ context.Context, re *model.Reaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reactions[reactionKey{re.Page, re.UserKey}] = *re
	return nil
}

// Delete removes the reaction of (page, user_key) if there is one.
func (r *Reactions) Delete(_ context.Context, page, userKey string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.reactions, reactionKey{page, userKey})
	return nil
}

// Get returns the reaction of (page, user_key).
func (r *Reactions) Get(_ context.Context, page, userKey string) (*model.Reaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	re, ok := r.s.reactions[reactionKey{page, userKey}]
	if !ok {
		return nil, repository.ErrReactionNotFound
	}
	return &re, nil
}

// Counts groups the reactions of page, most frequent first.
func (r *Reactions) Counts(_ context.Context, page string) ([]*model.ReactionCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byReaction := make(map[string]int64)
	for k, re := range r.s.reactions {
		if k.page == page {
			byReaction[re.Reaction]++
		}
	}

	out := make([]*model.ReactionCount, 0, len(byReaction))
	for reaction, cnt := range byReaction {
		out = append(out, &model.ReactionCount{Reaction: reaction, Count: cnt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reaction < out[j].Reaction
	})
	return out, nil
}

// Users implements the user directory.
type Users struct {
	s *Store
}

// Create inserts a user. Returns repository.ErrNickTaken on a duplicate nick.
func (r *Users) Create(_ context.Context, u *model.User) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Nick == u.Nick {
			return nil, repository.ErrNickTaken
		}
	}

	created := *u
	if created.CreatedAt.IsZero() {
		created.CreatedAt = r.s.now().UTC()
	}
	r.s.users[created.ID] = created
	return &created, nil
}

func (r *Users) find(match func(model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// GetByID returns a user by id.
func (r *Users) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

// GetByNick returns a user by exact nick.
func (r *Users) GetByNick(_ context.Context, nick string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Nick == nick })
}

// GetByAccountID returns the user linked to a game account.
func (r *Users) GetByAccountID(_ context.Context, accountID string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.AccountID != nil && *u.AccountID == accountID })
}

// List returns every user ordered by nick.
func (r *Users) List(_ context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nick < out[j].Nick })
	return out, nil
}

// UpdateRole sets the role of one user.
func (r *Users) UpdateRole(_ context.Context, id string, role string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = role
	r.s.users[id] = u
	return nil
}

// PersonalFiles implements read access to personnel records.
type PersonalFiles struct {
	s *Store
}

// List returns every record ordered by nick.
func (r *PersonalFiles) List(_ context.Context) ([]*model.PersonalFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*model.PersonalFile, 0, len(r.s.files))
	for _, f := range r.s.files {
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ForumNick < out[j].ForumNick })
	return out, nil
}

// GetByID returns one record.
func (r *PersonalFiles) GetByID(_ context.Context, id string) (*model.PersonalFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[id]
	if !ok {
		return nil, repository.ErrPersonalFileNotFound
	}
	return &f, nil
}
