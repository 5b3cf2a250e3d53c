package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"community-portal/internal/model"
	"community-portal/internal/repository"
)

// ReactionService stores one reaction per (page, user).
type ReactionService struct {
	reactions ReactionStore
	now       func() time.Time
}

// NewReactionService creates a new ReactionService instance.
func NewReactionService(reactions ReactionStore, now func() time.Time) *ReactionService {
	if now == nil {
		now = time.Now
	}
	return &ReactionService{reactions: reactions, now: now}
}

// Set stores reaction for (page, userKey); a nil reaction removes the record.
// An empty reaction is rejected so a stored record always has a value.
func (s *ReactionService) Set(ctx context.Context, page, userKey string, reaction *string) error {
	if page == "" || userKey == "" {
		return ErrMissingReactionKey
	}

	if reaction == nil {
		return s.reactions.Delete(ctx, page, userKey)
	}
	if strings.TrimSpace(*reaction) == "" {
		return ErrEmptyReaction
	}

	return s.reactions.Upsert(ctx, &model.Reaction{
		Page:      page,
		UserKey:   userKey,
		Reaction:  *reaction,
		UpdatedAt: s.now().UTC(),
	})
}

// Mine returns the caller's reaction on page, or nil if there is none.
func (s *ReactionService) Mine(ctx context.Context, page, userKey string) (*model.Reaction, error) {
	r, err := s.reactions.Get(ctx, page, userKey)
	if err != nil {
		if errors.Is(err, repository.ErrReactionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// Counts returns how many users picked each reaction on page.
func (s *ReactionService) Counts(ctx context.Context, page string) ([]*model.ReactionCount, error) {
	counts, err := s.reactions.Counts(ctx, page)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []*model.ReactionCount{}
	}
	return counts, nil
}
