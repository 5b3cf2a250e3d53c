package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"community-portal/internal/model"
	"community-portal/internal/repository"
)

// UserService handles registration, login and roles of the user directory.
type UserService struct {
	users    UserStore
	hashCost int
}

// NewUserService creates a new UserService instance.
// hashCost of 0 uses bcrypt.DefaultCost.
func NewUserService(users UserStore, hashCost int) *UserService {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &UserService{users: users, hashCost: hashCost}
}

// NormalizeNick turns "first_LAST" into "First_Last".
// The nick must consist of exactly two non-empty parts joined by an underscore.
func NormalizeNick(raw string) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrInvalidNick
	}

	return capitalize(parts[0]) + "_" + capitalize(parts[1]), nil
}

// capitalize upper-cases the first letter and lower-cases the rest, so
// "anne-MARIE" becomes "Anne-marie".
func capitalize(part string) string {
	_, size := utf8.DecodeRuneInString(part)
	return cases.Upper(language.Und).String(part[:size]) + cases.Lower(language.Und).String(part[size:])
}

// Register creates a user with role "user".
// Returns repository.ErrNickTaken if the normalized nick already exists.
func (s *UserService) Register(ctx context.Context, nick, password, department string) (*model.User, error) {
	nick, err := NormalizeNick(nick)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrMissingPassword
	}

	if _, err := s.users.GetByNick(ctx, nick); err == nil {
		return nil, repository.ErrNickTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &model.User{
		ID:           uuid.NewString(),
		Nick:         nick,
		PasswordHash: string(hash),
		Department:   strings.TrimSpace(department),
		Role:         model.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("nick", user.Nick).Msg("User registered")
	return user, nil
}

// Login checks a nick/password pair.
// Unknown nicks and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, nick, password string) (*model.User, error) {
	nick, err := NormalizeNick(nick)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByNick(ctx, nick)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// lookupNick finds a user by the nick as given, then by its normalized form.
func (s *UserService) lookupNick(ctx context.Context, nick string) (*model.User, error) {
	nick = strings.TrimSpace(nick)
	user, err := s.users.GetByNick(ctx, nick)
	if err == nil || !errors.Is(err, repository.ErrUserNotFound) {
		return user, err
	}

	normalized, nerr := NormalizeNick(nick)
	if nerr != nil || normalized == nick {
		return nil, err
	}
	return s.users.GetByNick(ctx, normalized)
}

// RoleByNick returns the stored role of a nick, or repository.ErrUserNotFound.
func (s *UserService) RoleByNick(ctx context.Context, nick string) (string, error) {
	user, err := s.lookupNick(ctx, nick)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// RoleByAccountID returns the role linked to a game account, "user" when unlinked.
func (s *UserService) RoleByAccountID(ctx context.Context, accountID string) (string, error) {
	user, err := s.users.GetByAccountID(ctx, strings.TrimSpace(accountID))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.RoleUser, nil
		}
		return "", err
	}
	if user.Role == "" {
		return model.RoleUser, nil
	}
	return user.Role, nil
}

// ChangeRole sets the role of targetID on behalf of actorNick.
// Actors cannot change their own role.
func (s *UserService) ChangeRole(ctx context.Context, actorNick, targetID, role string) error {
	role = model.NormalizeRole(role)
	if !slices.Contains(model.KnownRoles(), role) {
		return ErrInvalidRole
	}

	actor, err := s.lookupNick(ctx, actorNick)
	if err != nil {
		return err
	}
	if actor.ID == targetID {
		return ErrSelfRoleChange
	}

	if err := s.users.UpdateRole(ctx, targetID, role); err != nil {
		return err
	}

	log.Info().
		Str("actor", actor.Nick).
		Str("target_id", targetID).
		Str("role", role).
		Msg("Role changed")
	return nil
}
