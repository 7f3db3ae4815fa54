package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrUpstreamError, "provider call failed").
		WithCause(cause).
		WithRetryable(true)

	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorWithoutCause(t *testing.T) {
	err := NewError(ErrDiscussionNotFound, "no such discussion").WithHTTPStatus(404)

	assert.Equal(t, 404, err.HTTPStatus)
	assert.False(t, IsRetryable(err))
	assert.Nil(t, err.Unwrap())
}

func TestGetErrorCodePlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
