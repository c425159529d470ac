package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealed(t *testing.T) {
	s := Seal(Credentials{Username: "billy", Password: "Secret1!"})
	assert.Equal(t, "billy", s.Username())

	got, err := s.Open()
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "billy", Password: "Secret1!"}, got)

	again, err := s.Open()
	require.NoError(t, err)
	assert.Equal(t, "Secret1!", again.Password)

	s.Destroy()
	_, err = s.Open()
	assert.ErrorIs(t, err, ErrSealedConsumed)
}

func TestSealedEmptyPassword(t *testing.T) {
	s := Seal(Credentials{Username: "billy"})
	got, err := s.Open()
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "billy"}, got)
}

func TestSealedNil(t *testing.T) {
	var s *Sealed
	_, err := s.Open()
	assert.ErrorIs(t, err, ErrSealedConsumed)
	s.Destroy()
}
