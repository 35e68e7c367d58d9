// Package blessbuf implements an in-memory edit buffer backed by a
// segment collection (piece table): arbitrary ranges of file- or
// memory-backed sources can be appended, inserted, and deleted by
// splitting and relinking segments without copying data (locating an
// offset walks the segment list from the last position accessed), with
// full undo/redo and an overlap-aware save
// planner that lets the buffer be written back onto a file it is still
// reading from.
package blessbuf

import (
	"log/slog"

	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/dataobject"
	"github.com/gaby/blessbuf/internal/action"
	"github.com/gaby/blessbuf/internal/options"
	"github.com/gaby/blessbuf/internal/segcol"
	"github.com/gaby/blessbuf/internal/segment"
)

// Buffer is an edit buffer: a segment collection plus the undo/redo log
// and option store that operate on it. The zero value is not usable;
// construct one with New.
type Buffer struct {
	col  *segcol.Collection
	log  *action.Log
	opts *options.Store

	revID     int64
	saveRevID int64

	logger *slog.Logger
}

// New returns an empty buffer. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	col := segcol.New()
	return &Buffer{
		col:    col,
		log:    action.NewLog(col),
		opts:   options.New(),
		logger: logger,
	}
}

// Close releases every source reference the buffer (and its undo/redo
// history) still holds. The buffer must not be used afterward.
func (b *Buffer) Close() {
	b.log.Clear()
	b.col.Release()
}

// Size returns the buffer's current logical length in bytes.
func (b *Buffer) Size() int64 { return b.col.Size() }

// RevisionID returns the monotonically increasing counter bumped by one
// per primitive mutation (or by a multi-action's sub-action count),
// including those applied by Undo and Redo.
func (b *Buffer) RevisionID() int64 { return b.revID }

// SaveRevisionID returns the value RevisionID had at the last successful
// Save. Comparing it against RevisionID tells a caller whether the
// buffer has unsaved changes.
func (b *Buffer) SaveRevisionID() int64 { return b.saveRevID }

// Append adds length bytes from src starting at off to the end of the
// buffer.
func (b *Buffer) Append(src *dataobject.Source, off, length int64) error {
	seg, err := segment.New(src, off, length)
	if err != nil {
		return err
	}
	at := b.col.Size()
	if err := b.col.Append(seg); err != nil {
		return err
	}
	b.recordInsert(at, length)
	return nil
}

// Insert adds length bytes from src starting at off so the new data's
// first byte lands at logical offset at. at == Size() behaves like
// Append.
func (b *Buffer) Insert(at int64, src *dataobject.Source, off, length int64) error {
	seg, err := segment.New(src, off, length)
	if err != nil {
		return err
	}
	if at == b.col.Size() {
		if err := b.col.Append(seg); err != nil {
			return err
		}
	} else if err := b.col.Insert(at, seg); err != nil {
		return err
	}
	b.recordInsert(at, length)
	return nil
}

// Delete removes [at, at+length) from the buffer.
func (b *Buffer) Delete(at, length int64) error {
	deleted, err := b.col.Delete(at, length)
	if err != nil {
		return err
	}
	b.revID++
	b.log.Record(action.NewDeleteInverse(at, deleted))
	return nil
}

func (b *Buffer) recordInsert(at, length int64) {
	b.revID++
	b.log.Record(action.NewInsertInverse(at, length))
}

// Read copies len(dst) bytes starting at logical offset at into dst,
// which may span any number of underlying segments.
func (b *Buffer) Read(at int64, dst []byte) error {
	n := int64(len(dst))
	if n == 0 {
		return nil
	}
	if at < 0 || at > b.col.Size()-n {
		return blerr.New(blerr.EINVAL, "blessbuf: range [%d,%d) out of bounds for size %d", at, at+n, b.col.Size())
	}
	it, err := b.col.Find(at)
	if err != nil {
		return err
	}
	localOff := at - it.GetMapping()
	written := int64(0)
	for written < n {
		seg := it.GetSegment()
		avail := seg.Length - localOff
		want := n - written
		if want > avail {
			want = avail
		}
		if err := seg.Source.Read(dst[written:written+want], seg.Start+localOff, want); err != nil {
			return err
		}
		written += want
		localOff = 0
		if written < n {
			if err := it.Next(); err != nil {
				return blerr.New(blerr.EINVAL, "blessbuf: read ran past end of buffer")
			}
		}
	}
	return nil
}

// GetOption returns the current value of an option key.
func (b *Buffer) GetOption(key options.Key) (string, error) { return b.opts.Get(key) }

// SetOption validates and stores value for key. Setting options.UndoLimit
// immediately re-synchronizes the undo/redo log's retention cap.
func (b *Buffer) SetOption(key options.Key, value string) error {
	if err := b.opts.Set(key, value); err != nil {
		return err
	}
	if key == options.UndoLimit {
		limit, err := b.opts.UndoLimitValue()
		if err != nil {
			return err
		}
		b.log.SetLimit(limit)
	}
	return nil
}

// CanUndo reports whether Undo has an action to apply.
func (b *Buffer) CanUndo() bool { return b.log.CanUndo() }

// CanRedo reports whether Redo has an action to apply.
func (b *Buffer) CanRedo() bool { return b.log.CanRedo() }

// Undo reverses the most recently recorded action (or multi-action). On
// a partial failure mid multi-action, the sub-actions that did apply
// still bump RevisionID and the error is returned.
func (b *Buffer) Undo() error {
	n, err := b.log.Undo()
	b.revID += n
	return err
}

// Redo re-applies the most recently undone action. Partial-failure
// behavior mirrors Undo.
func (b *Buffer) Redo() error {
	n, err := b.log.Redo()
	b.revID += n
	return err
}

// BeginMultiAction opens (or nests into) a group of primitive mutations
// that Undo/Redo will treat as a single step.
func (b *Buffer) BeginMultiAction() { b.log.BeginMulti() }

// EndMultiAction closes one level of multi-action nesting.
func (b *Buffer) EndMultiAction() error { return b.log.EndMulti() }

// QueryMultiAction returns the current multi-action nesting depth.
func (b *Buffer) QueryMultiAction() int { return b.log.QueryMulti() }
