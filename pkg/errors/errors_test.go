package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeForErrorsIs(t *testing.T) {
	err := Clone(ErrDuplicate, "username already exists")
	require.Equal(t, "username already exists", err.Message)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := fmt.Errorf("register: %w", err)
	assert.True(t, errors.Is(wrapped, ErrDuplicate))
}

func TestWithField(t *testing.T) {
	err := WithField(ErrValidation, "contact", "Contact number must be exactly 13 digits.")
	assert.Equal(t, "contact", err.Field)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Empty(t, ErrValidation.Field)
}

func TestFromErrorNormalisesUnknownErrors(t *testing.T) {
	raw := errors.New("boom")
	appErr := FromError(raw)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, raw)

	assert.Nil(t, FromError(nil))
	assert.Same(t, ErrNotFound, FromError(ErrNotFound))
}
