package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	t.Parallel()

	err := NewFetchError("list stargazers page 3", errors.New("connection reset"))
	assert.Equal(t, "FETCH_FAILED: list stargazers page 3 failed (connection reset)", err.Error())

	bad := NewBadRequestError("days must be positive")
	assert.Equal(t, "BAD_REQUEST: days must be positive", bad.Error())
}

func TestIsCanceled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled app error", err: NewCanceledError("fetch"), want: true},
		{name: "wrapped canceled app error", err: fmt.Errorf("cycle: %w", NewCanceledError("fetch")), want: true},
		{name: "context canceled", err: context.Canceled, want: true},
		{name: "fetch error wrapping context canceled", err: NewFetchError("fetch", context.Canceled), want: true},
		{name: "plain fetch error", err: NewFetchError("fetch", errors.New("boom")), want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsCanceled(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", NewRateLimitedError("still limited", nil))
	assert.True(t, IsRateLimited(wrapped))
	assert.False(t, IsRateLimited(errors.New("other")))
	assert.True(t, IsNotFound(NewNotFoundError("state file")))
	assert.True(t, IsBadRequest(NewBadRequestError("x")))
	assert.Equal(t, ErrCode(""), CodeOf(errors.New("plain")))
}
