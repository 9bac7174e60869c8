package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(cause, CodeStorage, "import failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "import failed: duplicate key", err.Error())
	assert.True(t, HasCode(err, CodeStorage))
	assert.Nil(t, Wrap(nil, CodeStorage, "ignored"))
}

func TestHasCodeWalksNestedErrors(t *testing.T) {
	inner := New(CodeValidation, "missing name")
	outer := fmt.Errorf("upload: %w", Wrap(inner, CodeBadRequest, "bad file"))

	assert.True(t, HasCode(outer, CodeBadRequest))
	assert.True(t, HasCode(outer, CodeValidation))
	assert.False(t, HasCode(outer, CodeStorage))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     Code
		expected int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeForbidden, http.StatusForbidden},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeTooLarge, http.StatusRequestEntityTooLarge},
		{CodeStorage, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, ToHTTPStatus(tt.code))
		})
	}
}
