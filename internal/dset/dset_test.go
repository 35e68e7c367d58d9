package dset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaby/blessbuf/blerr"
)

func TestNewSingletons(t *testing.T) {
	s := New(5)
	for i := 0; i < 5; i++ {
		r, err := s.Find(i)
		require.NoError(t, err)
		assert.Equal(t, i, r)
	}
}

func TestUnionConnected(t *testing.T) {
	s := New(4)
	require.NoError(t, s.Union(0, 1))
	require.NoError(t, s.Union(1, 2))

	connected, err := s.Connected(0, 2)
	require.NoError(t, err)
	assert.True(t, connected)

	connected, err = s.Connected(0, 3)
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestUnionIdempotent(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Union(0, 1))
	require.NoError(t, s.Union(0, 1))
	connected, err := s.Connected(0, 1)
	require.NoError(t, err)
	assert.True(t, connected)
}

func TestOutOfRangeIsEinval(t *testing.T) {
	s := New(3)
	_, err := s.Find(3)
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.EINVAL))

	_, err = s.Find(-1)
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.EINVAL))

	err = s.Union(0, 10)
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.EINVAL))

	_, err = s.Connected(10, 0)
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.EINVAL))
}
