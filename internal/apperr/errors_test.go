package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(NotFound, "Post not found"))

	assert.Equal(t, NotFound, KindOf(err))
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, Forbidden))
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, Internal))
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := Wrap(Transient, "Service temporarily unavailable", errors.New("dial tcp 10.0.0.3:5432: connection refused"))

	assert.Equal(t, "Service temporarily unavailable", PublicMessage(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("pq: relation does not exist")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Unauthenticated: http.StatusUnauthorized,
		InvalidInput:    http.StatusBadRequest,
		NotFound:        http.StatusNotFound,
		Forbidden:       http.StatusForbidden,
		AlreadyExists:   http.StatusConflict,
		Transient:       http.StatusServiceUnavailable,
		Internal:        http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind)
	}
}
