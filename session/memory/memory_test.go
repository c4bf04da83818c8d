package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younoch/property-manegment-frontend-sub000/session"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("k", []byte("v1")))

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Put("k", []byte("v2")))
	got, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestStoreMissingKey(t *testing.T) {
	s := NewStore()
	_, err := s.Get("absent")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Delete("k"))
	_, err := s.Get("k")
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete("k"))
}

func TestStoreCopiesValues(t *testing.T) {
	s := NewStore()
	value := []byte("original")
	require.NoError(t, s.Put("k", value))
	value[0] = 'X'

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got, "caller mutation must not leak in")

	got[0] = 'Y'
	again, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again, "caller mutation must not leak out")
}
