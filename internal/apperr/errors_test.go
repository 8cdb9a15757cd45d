package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	err := New(ErrStorage, "write failed").WithContext("collection", "glossary")
	msg := err.Error()
	assert.Contains(t, msg, "[Storage]")
	assert.Contains(t, msg, "write failed")
	assert.Contains(t, msg, "collection=glossary")
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := Wrap(cause, ErrStorage, "append record")

	assert.True(t, IsErrorType(err, ErrStorage))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestIsErrorTypeThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := New(ErrOffline, "queued for replay")
	outer := fmt.Errorf("dispatch: %w", inner)

	assert.True(t, IsErrorType(outer, ErrOffline))
	assert.False(t, IsErrorType(outer, ErrNetwork))
	assert.False(t, IsErrorType(errors.New("plain"), ErrOffline))
}

func TestErrorTypeNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Network", ErrNetwork.String())
	require.Equal(t, "Validation", ErrValidation.String())
	require.Equal(t, "Unknown", ErrUnknown.String())
}
