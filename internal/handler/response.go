// Package handler provides the HTTP handlers of the portal API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"community-portal/internal/guard"
	"community-portal/internal/pkg/lock"
	"community-portal/internal/repository"
	"community-portal/internal/service"
)

// errBadRequest marks malformed or invalid request input.
var errBadRequest = errors.New("bad request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON field names in messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return v
}

// decodeJSON reads the request body into dst and validates it.
// An empty body decodes as the zero value.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body", errBadRequest)
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s %s", errBadRequest, verrs[0].Field(), friendlyMessage(verrs[0]))
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	return nil
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + e.Param() + " items"
	case "max":
		return "must not exceed " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// queryInt returns the integer query parameter key, or 0 when absent or malformed.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// statusFor maps a layer error onto an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrInvalidField),
		errors.Is(err, service.ErrInvalidAsh),
		errors.Is(err, service.ErrMissingNick),
		errors.Is(err, service.ErrInvalidBulkRow),
		errors.Is(err, service.ErrMissingReactionKey),
		errors.Is(err, service.ErrEmptyReaction),
		errors.Is(err, repository.ErrPointsOutOfRange),
		errors.Is(err, service.ErrInvalidNick),
		errors.Is(err, service.ErrMissingPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrSelfRoleChange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, guard.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrLeaderNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrPersonalFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrNickTaken),
		errors.Is(err, service.ErrRolloverInProgress),
		errors.Is(err, lock.ErrLockTimeout):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as a plain-text body with its mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	}

	http.Error(w, err.Error(), status)
}

// writeJSON sends v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// okResponse is the body of endpoints that only acknowledge.
type okResponse struct {
	OK bool `json:"ok"`
}
