package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	internal := errors.New("connection refused")
	err := ErrInternalServer.WithInternal(internal)

	require.ErrorIs(t, err, internal)
	require.Contains(t, err.Error(), "connection refused")

	// The sentinel must not be mutated by WithInternal.
	require.Nil(t, ErrInternalServer.Internal)
}

func TestWithMessageKeepsCodeAndStatus(t *testing.T) {
	err := ErrConflict.WithMessage("you are already collaborating with this teacher")

	require.Equal(t, ErrConflict.Code, err.Code)
	require.Equal(t, http.StatusConflict, err.StatusCode)
	require.Equal(t, "you are already collaborating with this teacher", err.Message)
	require.Equal(t, "Resource conflicts with existing state", ErrConflict.Message)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrNotFound)
	require.Equal(t, ErrNotFound, appErr)

	wrapped := FromError(fmt.Errorf("outer: %w", ErrForbidden))
	require.Equal(t, ErrForbidden.Code, wrapped.Code)

	generic := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.EqualError(t, generic.Internal, "boom")
}

func TestIsOperational(t *testing.T) {
	require.True(t, IsOperational(ErrInvalidState))
	require.True(t, IsOperational(NewConflict("duplicate request")))
	require.False(t, IsOperational(ErrInternalServer))
	require.False(t, IsOperational(errors.New("boom")))
}
