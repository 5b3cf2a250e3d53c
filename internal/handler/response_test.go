package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-portal/internal/guard"
	"community-portal/internal/pkg/lock"
	"community-portal/internal/repository"
	"community-portal/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: nick is required", errBadRequest), http.StatusBadRequest},
		{service.ErrInvalidAsh, http.StatusBadRequest},
		{fmt.Errorf("failed to set ash for x: %w", service.ErrInvalidField), http.StatusBadRequest},
		{service.ErrSelfRoleChange, http.StatusBadRequest},
		{service.ErrEmptyReaction, http.StatusBadRequest},
		{fmt.Errorf("failed to set ash for x: %w", repository.ErrPointsOutOfRange), http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{guard.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("failed to set ash for x: %w", repository.ErrLeaderNotFound), http.StatusNotFound},
		{repository.ErrPersonalFileNotFound, http.StatusNotFound},
		{repository.ErrNickTaken, http.StatusConflict},
		{service.ErrRolloverInProgress, http.StatusConflict},
		{fmt.Errorf("failed to set ash for x: %w", lock.ErrLockTimeout), http.StatusConflict},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestAshText(t *testing.T) {
	for raw, want := range map[string]string{
		`5`:     "5",
		`"x"`:   "x",
		` "7" `: "7",
		`12.0`:  "12.0",
		`-1`:    "-1",
		`null`:  "",
	} {
		got, err := ashText(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ashText(json.RawMessage(`{"a":1}`))
	assert.ErrorIs(t, err, errBadRequest)

	_, err = ashText(json.RawMessage(`true`))
	assert.ErrorIs(t, err, errBadRequest)
}

func TestReactionValue(t *testing.T) {
	v, err := reactionValue(json.RawMessage(`"like"`))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "like", *v)

	v, err = reactionValue(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = reactionValue(nil)
	assert.ErrorIs(t, err, errBadRequest)

	_, err = reactionValue(json.RawMessage(`1`))
	assert.ErrorIs(t, err, errBadRequest)
}
