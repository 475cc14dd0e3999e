package stalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPayloadGrows(t *testing.T) {
	job := NewJob()
	assert.Zero(t, job.Size())
	assert.Empty(t, job.Body())

	n, err := job.WriteString("abc")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = job.Write([]byte{0x00, 0xff})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 5, job.Size())
	assert.Equal(t, []byte{'a', 'b', 'c', 0x00, 0xff}, job.Body())
}

func TestNewJobBytesCopiesInput(t *testing.T) {
	src := []byte("original")
	job := NewJobBytes(src)

	src[0] = 'X'
	assert.Equal(t, []byte("original"), job.Body())
}

func TestUnboundJob(t *testing.T) {
	job := NewJobBytes([]byte("payload"))

	assert.False(t, job.Bound())
	assert.Nil(t, job.Tube())

	_, err := job.ID()
	require.ErrorIs(t, err, ErrNotBound)

	require.ErrorIs(t, job.Delete(), ErrNotBound)
	require.ErrorIs(t, job.Release(0, 0), ErrNotBound)
	require.ErrorIs(t, job.Bury(0), ErrNotBound)
	require.ErrorIs(t, job.Touch(), ErrNotBound)
}

func TestBoundJobCarriesTube(t *testing.T) {
	tube := newTestTube(t)

	job, err := tube.Put(NewJobBytes([]byte("x")), 1024, 0, 0)
	require.NoError(t, err)

	assert.True(t, job.Bound())
	assert.Same(t, tube, job.Tube())
}
