// Package model defines the data models for the community portal.
package model

import (
	"strings"
	"time"
)

// Leader is a user's scoring row in the leaderinfo table.
// PointsDay and PointsWeek are never negative; PointsDay is zero right after a rollover.
type Leader struct {
	ID         string    `db:"id"`
	Nick       string    `db:"nick"`
	AccountID  string    `db:"account_id"`
	AvatarURL  *string   `db:"avatar_url"`
	Department string    `db:"department"`
	PointsDay  int64     `db:"points_day"`
	PointsWeek int64     `db:"points_week"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// PointUpdate is the new pair of counters written back for one leader.
type PointUpdate struct {
	ID         string
	PointsDay  int64
	PointsWeek int64
}

// LeaderProfile is the editable identity part of a leader row.
// A nil AvatarURL leaves the stored avatar untouched.
type LeaderProfile struct {
	Nick      string
	AccountID string
	AvatarURL *string
}

// DayEntry is the daily leaderboard projection of a Leader.
type DayEntry struct {
	ID         string  `json:"id"`
	Nick       string  `json:"nick"`
	AccountID  string  `json:"account_id"`
	AvatarURL  *string `json:"avatar_url"`
	Department string  `json:"department"`
	Points     int64   `json:"points"`
}

// NewDayEntry projects a leader onto the daily leaderboard shape.
func NewDayEntry(l *Leader) DayEntry {
	return DayEntry{
		ID:         l.ID,
		Nick:       strings.TrimSpace(l.Nick),
		AccountID:  l.AccountID,
		AvatarURL:  l.AvatarURL,
		Department: l.Department,
		Points:     l.PointsDay,
	}
}

// DepartmentEntry is one slot of the by-department lookup.
// ID and AvatarURL are nil for departments without a leader.
type DepartmentEntry struct {
	ID         *string `json:"id"`
	Department string  `json:"department"`
	Nick       string  `json:"nick"`
	AccountID  string  `json:"account_id"`
	AvatarURL  *string `json:"avatar_url"`
}

// RankedEntry is one podium position of a closed week.
type RankedEntry struct {
	Nick       string
	Department string
	Points     int64
}

// WeeklySummary is the immutable snapshot written when a week is closed.
// Dates are calendar dates formatted as YYYY-MM-DD.
type WeeklySummary struct {
	WeekStart string `json:"week_start" db:"week_start"`
	WeekEnd   string `json:"week_end" db:"week_end"`
	Nick1     string `json:"nick_1" db:"nick_1"`
	Dept1     string `json:"dept_1" db:"dept_1"`
	Ash1      int64  `json:"ash_1" db:"ash_1"`
	Nick2     string `json:"nick_2" db:"nick_2"`
	Dept2     string `json:"dept_2" db:"dept_2"`
	Ash2      int64  `json:"ash_2" db:"ash_2"`
	Nick3     string `json:"nick_3" db:"nick_3"`
	Dept3     string `json:"dept_3" db:"dept_3"`
	Ash3      int64  `json:"ash_3" db:"ash_3"`
	TotalAsh  int64  `json:"total_ash" db:"total_ash"`
}

// SetPlace stores entry at podium position pos (1..3). Other positions are ignored.
func (s *WeeklySummary) SetPlace(pos int, e RankedEntry) {
	switch pos {
	case 1:
		s.Nick1, s.Dept1, s.Ash1 = e.Nick, e.Department, e.Points
	case 2:
		s.Nick2, s.Dept2, s.Ash2 = e.Nick, e.Department, e.Points
	case 3:
		s.Nick3, s.Dept3, s.Ash3 = e.Nick, e.Department, e.Points
	}
}

// Place returns podium position pos (1..3).
func (s *WeeklySummary) Place(pos int) RankedEntry {
	switch pos {
	case 1:
		return RankedEntry{Nick: s.Nick1, Department: s.Dept1, Points: s.Ash1}
	case 2:
		return RankedEntry{Nick: s.Nick2, Department: s.Dept2, Points: s.Ash2}
	case 3:
		return RankedEntry{Nick: s.Nick3, Department: s.Dept3, Points: s.Ash3}
	}
	return RankedEntry{}
}

// Reaction is a user's single choice on a page.
type Reaction struct {
	Page      string    `json:"page" db:"page"`
	UserKey   string    `json:"user_key" db:"user_key"`
	Reaction  string    `json:"reaction" db:"reaction"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReactionCount is one row of the page_reaction_counts view.
type ReactionCount struct {
	Reaction string `json:"reaction" db:"reaction"`
	Count    int64  `json:"cnt" db:"cnt"`
}

// User is an account in the user directory.
type User struct {
	ID           string    `json:"id" db:"id"`
	Nick         string    `json:"nick" db:"nick"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Department   string    `json:"department" db:"department"`
	Role         string    `json:"role" db:"role"`
	AvatarURL    *string   `json:"avatar_url" db:"avatar_url"`
	AccountID    *string   `json:"account_id" db:"account_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Roles known to the user directory.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleCreator   = "creator"
)

// KnownRoles returns every role an account can be given.
func KnownRoles() []string {
	return []string{RoleUser, RoleModerator, RoleAdmin, RoleCreator}
}

// NormalizeRole trims and lower-cases a stored role for comparisons.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// PersonalFile is a personnel record.
type PersonalFile struct {
	ID            string `json:"id" db:"id"`
	ForumNick     string `json:"forum_nick" db:"forum_nick"`
	ForumDept     string `json:"forum_dept" db:"forum_dept"`
	AccountNumber string `json:"account_number" db:"account_number"`
	Rank          string `json:"rank" db:"rank"`
}

// PersonalFileSummary is the list projection of a PersonalFile.
type PersonalFileSummary struct {
	ID        string `json:"id"`
	ForumNick string `json:"forum_nick"`
	ForumDept string `json:"forum_dept"`
}
