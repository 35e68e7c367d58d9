package planner

import (
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/dataobject"
	"github.com/gaby/blessbuf/internal/segcol"
	"github.com/gaby/blessbuf/internal/segment"
)

// copyChunk bounds how much is held in memory at once while copying a
// single segment's bytes, whether between sources or self-aliased within
// the target file.
const copyChunk = 64 * 1024

// ProgressFunc is invoked after each segment is written during Save,
// with the number of bytes written so far and the total planned for the
// whole save. Returning a non-zero value requests cancellation: Save
// stops before writing anything further and returns a blerr.ErrCanceled
// error, leaving the target file in whatever state it had reached.
type ProgressFunc func(done, total int64) int

// Plan is a completed save plan: the overlap graph, the cycle-breaking
// result, and the final write order, kept around mainly so callers (and
// tests) can inspect the planner's decisions.
type Plan struct {
	Graph   *Graph
	Cycles  *CycleBreak
	Order   []int
	Targets []Vertex
}

// writePos records where a vertex's segment lives in the scratch
// collection, so it can be revisited after planning without re-walking
// from the start.
type writePos struct {
	mapping int64
}

// Save rewrites targetFd so it holds exactly live's logical content,
// breaking any self-referential write-order cycles by spilling the
// minimum necessary bytes to memory or a temp file under tmpDir. Every
// segment being written — whether or not it reads from the target — is
// planned as a graph vertex and written in a single dependency-ordered
// pass, since a segment sourced elsewhere can still destroy bytes a
// target-referencing segment has not been read (or spilled) yet. progress
// may be nil; otherwise it is polled after every write and a non-zero
// return unwinds the save with a canceled error. On success it returns a
// new collection equivalent to live but with every segment that
// referenced the target rebound to the freshly written file, except
// spilled segments, which keep referencing their spill source; live is
// left untouched and must still be released by the caller.
func Save(live *segcol.Collection, targetFd int, tmpDir string, logger *slog.Logger, progress ProgressFunc) (*segcol.Collection, *Plan, error) {
	if logger == nil {
		logger = slog.Default()
	}
	probe, err := dataobject.FromFile(targetFd)
	if err != nil {
		return nil, nil, err
	}
	defer probe.Unref()

	scratch := live.Clone()

	var vertices []Vertex
	var positions []writePos

	it := scratch.Iter()
	for it.IsValid() {
		seg := it.GetSegment()
		mapping := it.GetMapping()
		if seg.Source.Compare(probe) {
			vertices = append(vertices, Vertex{
				Index:     len(vertices),
				DestOff:   mapping,
				SrcOff:    seg.Start,
				Length:    seg.Length,
				Dir:       directionOf(mapping, seg.Start),
				HasSource: true,
			})
		} else {
			vertices = append(vertices, Vertex{
				Index:   len(vertices),
				DestOff: mapping,
				Length:  seg.Length,
			})
		}
		positions = append(positions, writePos{mapping: mapping})
		if err := it.Next(); err != nil {
			break
		}
	}

	graph := BuildGraph(vertices)
	cycles, err := BreakCycles(graph)
	if err != nil {
		scratch.Release()
		return nil, nil, err
	}
	logger.Debug("save planner: overlap graph built",
		"vertices", len(vertices), "edges", len(graph.Edges), "removed", len(cycles.Removed))

	// Step: spill the bytes any cycle-closing vertex still needs, reading
	// from the untouched target before any writes begin.
	for idx := range vertices {
		if !cycles.Spill[idx] {
			continue
		}
		v := vertices[idx]
		buf := make([]byte, v.Length)
		if err := preadAll(targetFd, buf, v.SrcOff); err != nil {
			scratch.Release()
			return nil, nil, err
		}
		spillSrc, err := spill(tmpDir, buf)
		if err != nil {
			scratch.Release()
			return nil, nil, err
		}
		pos := positions[idx]
		sIt, err := scratch.Find(pos.mapping)
		if err != nil {
			spillSrc.Unref()
			scratch.Release()
			return nil, nil, err
		}
		newSeg := segment.Retarget(sIt.GetSegment(), spillSrc, 0)
		spillSrc.Unref() // Retarget took its own ref; drop the constructor's.
		if err := sIt.SetSegment(newSeg); err != nil {
			scratch.Release()
			return nil, nil, err
		}
	}

	order := TopoOrder(len(vertices), cycles.Kept, cycles.Spill)

	// Single write phase: every vertex, target-referencing or not,
	// spilled or not, in dependency order. A spilled vertex no longer
	// needs read protection for itself (it already copied its bytes out
	// before any writes began) but may still be the thing some other,
	// not-yet-spilled vertex depends on, so it keeps its place in the
	// order; a vertex sourced elsewhere never gates anything (it has no
	// target read to protect) but can still be gated by one that does.
	var written int64
	total := scratch.Size()
	for _, idx := range order {
		v := vertices[idx]
		if cycles.Spill[idx] || !v.HasSource {
			// Spilled vertices read from their (already rebound) spill
			// source; vertices sourced elsewhere read from whatever they
			// always did. Either way the bytes no longer live in the
			// target, so this is a plain copy rather than a self-aliased
			// in-place move.
			sIt, err := scratch.Find(positions[idx].mapping)
			if err != nil {
				scratch.Release()
				return nil, nil, err
			}
			if err := copySegmentTo(targetFd, sIt.GetSegment(), v.DestOff); err != nil {
				scratch.Release()
				return nil, nil, err
			}
		} else if err := writeAliased(targetFd, v.SrcOff, v.DestOff, v.Length, v.Dir); err != nil {
			scratch.Release()
			return nil, nil, err
		}
		written += v.Length
		if progress != nil && progress(written, total) != 0 {
			scratch.Release()
			return nil, nil, blerr.New(blerr.ErrCanceled, "planner: save canceled by progress callback")
		}
	}

	if err := unix.Ftruncate(targetFd, scratch.Size()); err != nil {
		scratch.Release()
		return nil, nil, blerr.Wrap(blerr.ENOSPC, err, "planner: truncate target to %d", scratch.Size())
	}

	// Rebind every surviving target vertex onto the freshly written file,
	// at its destination offset; the pre-save Source's cached length may
	// now be stale, so this always mints a fresh Source. Vertices sourced
	// elsewhere keep referencing whatever they always did.
	fresh, err := dataobject.FromFile(targetFd)
	if err != nil {
		scratch.Release()
		return nil, nil, err
	}
	for idx, p := range positions {
		v := vertices[idx]
		if !v.HasSource || cycles.Spill[idx] {
			continue
		}
		sIt, err := scratch.Find(p.mapping)
		if err != nil {
			fresh.Unref()
			scratch.Release()
			return nil, nil, err
		}
		newSeg := segment.Retarget(sIt.GetSegment(), fresh, v.DestOff)
		if err := sIt.SetSegment(newSeg); err != nil {
			fresh.Unref()
			scratch.Release()
			return nil, nil, err
		}
	}
	fresh.Unref()

	return scratch, &Plan{Graph: graph, Cycles: cycles, Order: order, Targets: vertices}, nil
}

// copySegmentTo reads seg's full content and writes it to destOff in fd,
// chunked to bound memory use for large segments.
func copySegmentTo(fd int, seg segment.Segment, destOff int64) error {
	buf := make([]byte, minInt64(copyChunk, seg.Length))
	var done int64
	for done < seg.Length {
		n := minInt64(copyChunk, seg.Length-done)
		chunk := buf[:n]
		if err := seg.Source.Read(chunk, seg.Start+done, n); err != nil {
			return err
		}
		if err := pwriteAll(fd, chunk, destOff+done); err != nil {
			return err
		}
		done += n
	}
	return nil
}

// writeAliased performs a self-aliased copy within fd from [srcOff,
// srcOff+length) to [destOff, destOff+length), in the direction that
// guarantees every byte is read before any write could clobber it
// (ascending when dest < src, descending when dest > src; a no-op when
// they coincide).
func writeAliased(fd int, srcOff, destOff, length int64, dir Direction) error {
	if dir == DirNone || length == 0 {
		return nil
	}
	buf := make([]byte, minInt64(copyChunk, length))
	if dir == DirAscending {
		var done int64
		for done < length {
			n := minInt64(copyChunk, length-done)
			chunk := buf[:n]
			if err := preadAll(fd, chunk, srcOff+done); err != nil {
				return err
			}
			if err := pwriteAll(fd, chunk, destOff+done); err != nil {
				return err
			}
			done += n
		}
		return nil
	}
	done := length
	for done > 0 {
		n := minInt64(copyChunk, done)
		chunk := buf[:n]
		if err := preadAll(fd, chunk, srcOff+done-n); err != nil {
			return err
		}
		if err := pwriteAll(fd, chunk, destOff+done-n); err != nil {
			return err
		}
		done -= n
	}
	return nil
}

func preadAll(fd int, buf []byte, off int64) error {
	for len(buf) > 0 {
		n, err := unix.Pread(fd, buf, off)
		if err != nil {
			return blerr.Wrap(blerr.EIO, err, "planner: pread")
		}
		if n == 0 {
			return blerr.New(blerr.EIO, "planner: pread got 0 bytes")
		}
		buf = buf[n:]
		off += int64(n)
	}
	return nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
