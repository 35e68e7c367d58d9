package segcol

import "github.com/gaby/blessbuf/internal/segment"

// Iterator is a borrowed view of a position within a Collection. Any
// mutation of the collection invalidates outstanding iterators; callers
// must not retain one across a mutating call.
type Iterator struct {
	node    *node
	mapping int64
}

// Iter returns an iterator positioned at the first segment, or an invalid
// iterator if the collection is empty.
func (c *Collection) Iter() *Iterator {
	return &Iterator{node: c.head, mapping: 0}
}

// Find returns an iterator positioned at the segment containing off,
// which must satisfy 0 <= off < Size().
func (c *Collection) Find(off int64) (*Iterator, error) {
	if off < 0 || off >= c.size {
		return nil, einval("segcol: offset %d out of [0,%d)", off, c.size)
	}
	n, m := c.locate(off)
	return &Iterator{node: n, mapping: m}, nil
}

// IsValid reports whether the iterator currently references a segment.
func (it *Iterator) IsValid() bool { return it.node != nil }

// GetSegment returns the segment at the iterator's current position. The
// caller must not call Release on it; it is borrowed from the collection.
func (it *Iterator) GetSegment() segment.Segment {
	return it.node.seg
}

// SetSegment replaces the segment at the iterator's current position with
// seg, releasing the old one. seg must have the same length as the
// segment it replaces (offsets elsewhere in the collection must not
// shift). Used by the save planner to rebind a segment onto its post-save
// location or a spill source.
func (it *Iterator) SetSegment(seg segment.Segment) error {
	if it.node == nil {
		seg.Release()
		return einval("segcol: iterator not valid")
	}
	if seg.Length != it.node.seg.Length {
		seg.Release()
		return einval("segcol: replacement length %d != %d", seg.Length, it.node.seg.Length)
	}
	it.node.seg.Release()
	it.node.seg = seg
	return nil
}

// GetMapping returns the logical starting offset of the current segment.
func (it *Iterator) GetMapping() int64 { return it.mapping }

// Next advances the iterator to the following segment.
func (it *Iterator) Next() error {
	if it.node == nil {
		return einval("segcol: iterator not valid")
	}
	it.mapping += it.node.seg.Length
	it.node = it.node.next
	return nil
}

// Prev moves the iterator to the preceding segment.
func (it *Iterator) Prev() error {
	if it.node == nil || it.node.prev == nil {
		return einval("segcol: no previous segment")
	}
	it.node = it.node.prev
	it.mapping -= it.node.seg.Length
	return nil
}
