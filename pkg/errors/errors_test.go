package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.EqualError(t, err, "internal server error: boom")
}

func TestHasCodeSurvivesCloneAndWrap(t *testing.T) {
	cloned := Clone(ErrNotFound, "progress entry not found")
	wrapped := fmt.Errorf("delete: %w", cloned)

	assert.True(t, HasCode(wrapped, ErrNotFound))
	assert.False(t, HasCode(wrapped, ErrConstraint))
	assert.False(t, HasCode(errors.New("plain"), ErrNotFound))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}
