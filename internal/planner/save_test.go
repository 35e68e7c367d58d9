package planner

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/dataobject"
	"github.com/gaby/blessbuf/internal/segcol"
	"github.com/gaby/blessbuf/internal/segment"
)

func openTemp(t *testing.T, content string) (*os.File, *dataobject.Source) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "blessbuf-target-*")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	src, err := dataobject.FromFile(int(f.Fd()))
	require.NoError(t, err)
	return f, src
}

func appendSeg(t *testing.T, col *segcol.Collection, src *dataobject.Source, off, length int64) {
	t.Helper()
	seg, err := segment.New(src, off, length)
	require.NoError(t, err)
	require.NoError(t, col.Append(seg))
}

func readFile(t *testing.T, f *os.File) string {
	t.Helper()
	_, err := f.Seek(0, 0)
	require.NoError(t, err)
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(data)
}

func TestSaveIndependentSegmentIsWrittenFreely(t *testing.T) {
	f, src := openTemp(t, "0123456789")
	defer f.Close()

	mem, err := dataobject.FromMemory([]byte("XX"), nil)
	require.NoError(t, err)

	col := segcol.New()
	appendSeg(t, col, src, 5, 5) // the only target-referencing segment: "56789"
	appendSeg(t, col, mem, 0, 2) // independent memory segment: "XX"
	require.NoError(t, src.Unref())
	require.NoError(t, mem.Unref())

	newCol, plan, err := Save(col, int(f.Fd()), t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Cycles.Spill)
	assert.Equal(t, "56789XX", readFile(t, f))

	col.Release()
	newCol.Release()
}

func TestSaveIndependentWriteNeverClobbersUnreadTargetBytes(t *testing.T) {
	// Isolates the hazard directly: an independent (non-target) write
	// whose destination falls inside a target vertex's still-needed
	// source range must happen only after that vertex has been read.
	f, src := openTemp(t, "0123456789")
	defer f.Close()

	mem, err := dataobject.FromMemory([]byte("XX"), nil)
	require.NoError(t, err)

	col := segcol.New()
	appendSeg(t, col, src, 5, 5) // target vertex: src [5,10) -> dest [0,5)
	appendSeg(t, col, mem, 0, 2) // independent: dest [5,7), inside [5,10)
	require.NoError(t, src.Unref())
	require.NoError(t, mem.Unref())

	newCol, _, err := Save(col, int(f.Fd()), t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "56789XX", readFile(t, f))

	col.Release()
	newCol.Release()
}

func TestSaveCancelsViaProgressCallback(t *testing.T) {
	f, src := openTemp(t, "0123456789")
	defer f.Close()

	col := segcol.New()
	appendSeg(t, col, src, 2, 8)
	require.NoError(t, src.Unref())

	calls := 0
	newCol, plan, err := Save(col, int(f.Fd()), t.TempDir(), nil, func(done, total int64) int {
		calls++
		return 1
	})
	require.Error(t, err)
	assert.True(t, blerr.Is(err, blerr.ErrCanceled))
	assert.Nil(t, plan)
	assert.Nil(t, newCol)
	assert.Equal(t, 1, calls)

	col.Release()
}

func TestSaveSelfOverlapAscending(t *testing.T) {
	// Destination strictly lower than source: safe to copy front-to-back
	// in place, no spill required.
	f, src := openTemp(t, "0123456789")
	defer f.Close()

	col := segcol.New()
	appendSeg(t, col, src, 2, 8) // shifts "23456789" to the front
	require.NoError(t, src.Unref())

	newCol, plan, err := Save(col, int(f.Fd()), t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Cycles.Spill)
	assert.Equal(t, "23456789", readFile(t, f))

	col.Release()
	newCol.Release()
}

func TestSaveCircularOverlapSpills(t *testing.T) {
	// buffer = [F1[5:10], F2[9:10], F1[1:4], F2[0:1]]: a circular overlap
	// between the two F1-referencing segments.
	f1, src1 := openTemp(t, "0123456789") // F1
	defer f1.Close()
	f2, src2 := openTemp(t, "abcdefghij") // F2
	defer f2.Close()

	col := segcol.New()
	appendSeg(t, col, src1, 5, 5) // "56789"
	appendSeg(t, col, src2, 9, 1) // "j"
	appendSeg(t, col, src1, 1, 3) // "123"
	appendSeg(t, col, src2, 0, 1) // "a"
	require.NoError(t, src1.Unref())
	require.NoError(t, src2.Unref())

	newCol, plan, err := Save(col, int(f1.Fd()), t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, plan.Cycles.Spill, 1)
	assert.Equal(t, "56789j123a", readFile(t, f1))

	col.Release()
	newCol.Release()
}
