// Package apperr holds the sentinel errors shared by services and handlers.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
)

// HTTPStatus maps a service error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCategory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
