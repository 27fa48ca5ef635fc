package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("order", "abc")))
	assert.Equal(t, KindForbidden, KindOf(Forbidden("nope")))
	assert.Equal(t, KindInvalidState, KindOf(InvalidState("too late")))
	assert.Equal(t, KindDependencyFailure, KindOf(DependencyFailure("publish failed", errors.New("boom"))))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handling event: %w", Forbidden("user can only cancel their own orders"))
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("nats unavailable")
	err := DependencyFailure("failed to publish order cancelled event", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dependency_failure")
	assert.Contains(t, err.Error(), "nats unavailable")
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("order", "order-1")
	assert.Equal(t, "not_found: order order-1 not found", err.Error())
}
