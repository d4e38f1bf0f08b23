package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfAndIs(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFoundf("conversation %s not found", "x"))
	assert.Equal(t, NotFound, KindOf(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, Unhandled, KindOf(errors.New("boom")))
}

func TestPublicMessageHidesInternals(t *testing.T) {
	cause := errors.New("disk on fire")
	assert.Equal(t, "internal error", PublicMessage(Store("insert message", cause)))
	assert.Equal(t, "internal error", PublicMessage(cause))
	assert.Equal(t, "content is required", PublicMessage(Invalid("content is required")))
	assert.Equal(t, "rate limited", PublicMessage(Wrap(ProviderFailure, "stream", errors.New("rate limited"))))
	assert.True(t, errors.Is(Store("x", cause), cause))
}
