package service

import "errors"

// Validation errors are reported before any store call.
var (
	ErrInvalidField       = errors.New("field must be points_day")
	ErrInvalidAsh         = errors.New("ash must be x or an integer between 0 and 2147483647")
	ErrMissingNick        = errors.New("nick is required")
	ErrInvalidBulkRow     = errors.New("every row needs id, nick and account_id")
	ErrMissingReactionKey = errors.New("page and user_key are required")
	ErrEmptyReaction      = errors.New("reaction must not be empty")
	ErrInvalidNick        = errors.New("nick must look like First_Last")
	ErrMissingPassword    = errors.New("password is required")
	ErrInvalidRole        = errors.New("unknown role")
	ErrSelfRoleChange     = errors.New("cannot change your own role")
)

// Errors for state conflicts and failed checks.
var (
	ErrRolloverInProgress = errors.New("rollover already in progress")
	ErrInvalidCredentials = errors.New("invalid nick or password")
)
