package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("seat A3 not found")))
	assert.Equal(t, KindConflict, KindOf(Conflict("seat A3 is not available")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(KindStoreConflict, "deadlock detected")
	outer := fmt.Errorf("create hold: %w", inner)
	assert.Equal(t, KindStoreConflict, KindOf(outer))
	assert.True(t, IsRetryable(outer))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(KindStoreConflict, "deadlock")))
	assert.True(t, IsRetryable(New(KindStoreUnavailable, "connection refused")))
	assert.False(t, IsRetryable(Conflict("reservation is not pending")))
	assert.False(t, IsRetryable(NotFound("reservation not found")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := Wrap(KindStoreUnavailable, cause, "store unavailable")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store unavailable", err.Error())
}
