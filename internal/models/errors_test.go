package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no token"), fiber.StatusUnauthorized},
		{"forbidden", NewForbiddenError("not yours"), fiber.StatusForbidden},
		{"transient", NewTransientError(errors.New("conn reset")), fiber.StatusServiceUnavailable},
		{"consistency", NewConsistencyError("drift"), fiber.StatusInternalServerError},
		{"internal", NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{"plain error", errors.New("anything"), fiber.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("context: %w", NewNotFoundError("Comment", 2)), fiber.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusForError(tc.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := NewTransientError(inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNotFoundMessageNamesResource(t *testing.T) {
	err := NewNotFoundError("Post", 42)
	assert.Equal(t, "Post with ID 42 not found", err.Message)
}
