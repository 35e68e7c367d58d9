package segcol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/dataobject"
	"github.com/gaby/blessbuf/internal/segment"
)

func memSeg(t *testing.T, s string, start, length int64) segment.Segment {
	t.Helper()
	src, err := dataobject.FromMemory([]byte(s), nil)
	require.NoError(t, err)
	seg, err := segment.New(src, start, length)
	require.NoError(t, err)
	require.NoError(t, src.Unref())
	return seg
}

// readAll concatenates every segment's bytes, for asserting logical
// content without a separate Buffer.Read helper.
func readAll(t *testing.T, c *Collection) string {
	t.Helper()
	out := make([]byte, 0, c.Size())
	it := c.Iter()
	for it.IsValid() {
		seg := it.GetSegment()
		buf := make([]byte, seg.Length)
		require.NoError(t, seg.Source.Read(buf, seg.Start, seg.Length))
		out = append(out, buf...)
		require.NoError(t, it.Next())
	}
	return string(out)
}

func TestAppendAndRead(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "hello", 0, 5)))
	require.NoError(t, c.Append(memSeg(t, " world", 0, 6)))
	assert.Equal(t, int64(11), c.Size())
	assert.Equal(t, "hello world", readAll(t, c))
	c.Release()
}

func TestInsertSplitsCoveringSegment(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "helloworld", 0, 10)))
	require.NoError(t, c.Insert(5, memSeg(t, " - ", 0, 3)))
	assert.Equal(t, "hello - world", readAll(t, c))
	c.Release()
}

func TestInsertAtSizeIsEinval(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "abc", 0, 3)))
	err := c.Insert(3, memSeg(t, "d", 0, 1))
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.EINVAL))
	c.Release()
}

func TestDeleteSplitsAndReturnsFragment(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "hello world", 0, 11)))
	deleted, err := c.Delete(5, 1)
	require.NoError(t, err)
	assert.Equal(t, "helloworld", readAll(t, c))
	assert.Equal(t, " ", readAll(t, deleted))
	c.Release()
	deleted.Release()
}

func TestDeleteZeroLengthIsNoop(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "abc", 0, 3)))
	deleted, err := c.Delete(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted.Size())
	assert.Equal(t, "abc", readAll(t, c))
	c.Release()
}

func TestDeleteOutOfRangeIsEinval(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "abc", 0, 3)))
	_, err := c.Delete(2, 5)
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.EINVAL))
	c.Release()
}

func TestAppendCollection(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "abc", 0, 3)))
	other := New()
	require.NoError(t, other.Append(memSeg(t, "def", 0, 3)))

	require.NoError(t, c.AppendCollection(other))
	assert.Equal(t, "abcdef", readAll(t, c))
	assert.Equal(t, int64(0), other.Size())
	c.Release()
}

func TestInsertCollectionMidSegment(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "helloworld", 0, 10)))
	other := New()
	require.NoError(t, other.Append(memSeg(t, "-X-", 0, 3)))

	require.NoError(t, c.InsertCollection(5, other))
	assert.Equal(t, "hello-X-world", readAll(t, c))
	c.Release()
}

func TestInsertCollectionAtSegmentBoundary(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "hello", 0, 5)))
	require.NoError(t, c.Append(memSeg(t, "world", 0, 5)))
	other := New()
	require.NoError(t, other.Append(memSeg(t, "-X-", 0, 3)))

	require.NoError(t, c.InsertCollection(5, other))
	assert.Equal(t, "hello-X-world", readAll(t, c))
	c.Release()
}

func TestCloneIsIndependent(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "hello", 0, 5)))
	clone := c.Clone()

	deleted, err := c.Delete(0, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Size())
	assert.Equal(t, "hello", readAll(t, clone))

	deleted.Release()
	c.Release()
	clone.Release()
}

func TestIteratorSetSegment(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "hello", 0, 5)))
	it, err := c.Find(0)
	require.NoError(t, err)

	replacement := memSeg(t, "HELLO", 0, 5)
	require.NoError(t, it.SetSegment(replacement))
	assert.Equal(t, "HELLO", readAll(t, c))
	c.Release()
}

func TestIteratorSetSegmentLengthMismatch(t *testing.T) {
	c := New()
	require.NoError(t, c.Append(memSeg(t, "hello", 0, 5)))
	it, err := c.Find(0)
	require.NoError(t, err)

	err = it.SetSegment(memSeg(t, "hi", 0, 2))
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.EINVAL))
	c.Release()
}
