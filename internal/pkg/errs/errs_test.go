package errs

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"sims/internal/pkg/logx"
)

func TestNewErrorFormatsDetails(t *testing.T) {
	logx.InitTestLogger(io.Discard)

	err := NewError(ErrInvalidCredentials, "Invalid login credentials")

	assert.Equal(t, ErrInvalidCredentials, err.Code)
	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.Equal(t, "Invalid login credentials", err.Message)
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	logx.InitTestLogger(io.Discard)

	err := NewError(424242)

	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestNewErrorUnknownHidesCause(t *testing.T) {
	logx.InitTestLogger(io.Discard)

	err := NewError(ErrUnknown, errors.New("pq: relation does not exist"))

	assert.NotContains(t, err.Message, "relation")
}

func TestWithFieldsCopies(t *testing.T) {
	logx.InitTestLogger(io.Discard)

	base := NewError(ErrInvalidParams)
	withFields := base.WithFields(map[string]string{"email": "Please enter a valid email"})

	assert.Nil(t, base.Fields)
	assert.Equal(t, "Please enter a valid email", withFields.Fields["email"])
}
