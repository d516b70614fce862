package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"workflow-collab-backend/pkg/apperr"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(apperr.NotFound("missing")))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(errors.New("plain")))

	// Kind survives fmt.Errorf wrapping
	wrapped := fmt.Errorf("loading workflow: %w", apperr.Forbidden("no"))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(wrapped))
	assert.True(t, apperr.IsKind(wrapped, apperr.KindForbidden))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Wrap(cause, apperr.KindTimeout, "querying workflows")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "TIMEOUT")
	assert.Contains(t, err.Error(), "connection refused")
}
