// Package segcol implements the segment collection (piece table): the
// ordered sequence of segments that forms the logical buffer content, as
// a doubly linked list. Offsets are tracked lazily via a last-accessed-
// node cache rather than stored per node, so insert/delete never have to
// renumber the whole list.
package segcol

import (
	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/internal/segment"
)

// OffMax is the largest representable logical offset or size.
const OffMax = segment.OffMax

type node struct {
	seg        segment.Segment
	prev, next *node
}

// Collection is an ordered sequence of non-empty segments mapping the
// logical range [0, Size()) onto segment bytes. The zero value is an
// empty, ready-to-use collection.
type Collection struct {
	head, tail *node
	size       int64

	lastNode    *node
	lastMapping int64
}

// New returns an empty collection.
func New() *Collection { return &Collection{} }

// Size returns the collection's total logical length.
func (c *Collection) Size() int64 { return c.size }

func einval(format string, args ...any) error { return blerr.New(blerr.EINVAL, format, args...) }
func eoverflow(format string, args ...any) error {
	return blerr.New(blerr.EOVERFLOW, format, args...)
}

// Append adds seg at the end of the collection. It always consumes seg:
// on success seg is stored (or, if zero-length, released without being
// stored); on failure seg is released and the collection is unchanged.
func (c *Collection) Append(seg segment.Segment) error {
	if c.size > OffMax-seg.Length {
		seg.Release()
		return eoverflow("segcol: append would overflow (size=%d, len=%d)", c.size, seg.Length)
	}
	if seg.Length == 0 {
		seg.Release()
		return nil
	}
	n := &node{seg: seg, prev: c.tail}
	if c.tail != nil {
		c.tail.next = n
	} else {
		c.head = n
	}
	c.tail = n
	c.size += seg.Length
	return nil
}

// Insert splits the segment covering off at off and inserts seg before
// the right half, so seg's first byte becomes the new byte at logical
// offset off. off == Size() is invalid; callers must use Append instead.
// Insert always consumes seg, as Append does.
func (c *Collection) Insert(off int64, seg segment.Segment) error {
	if off < 0 {
		seg.Release()
		return einval("segcol: negative offset %d", off)
	}
	if c.size > OffMax-seg.Length {
		seg.Release()
		return eoverflow("segcol: insert would overflow (size=%d, len=%d)", c.size, seg.Length)
	}
	if off >= c.size {
		seg.Release()
		return einval("segcol: offset %d >= size %d (use Append)", off, c.size)
	}
	if seg.Length == 0 {
		seg.Release()
		return nil
	}

	target, m := c.locate(off)
	localOff := off - m
	if localOff == 0 {
		c.insertNodeBefore(target, seg)
	} else {
		left, right, err := segment.Split(target.seg, localOff)
		if err != nil {
			seg.Release()
			return err
		}
		target.seg.Release()
		target.seg = left
		segNode := c.insertNodeAfter(target, seg)
		c.insertNodeAfter(segNode, right)
	}
	c.size += seg.Length
	c.lastNode = nil
	return nil
}

// Delete removes the logical range [off, off+len) and returns it as a new
// collection with its own mapping starting at 0. len == 0 succeeds and
// returns an empty collection without mutating c.
func (c *Collection) Delete(off, length int64) (*Collection, error) {
	if off < 0 || length < 0 {
		return nil, einval("segcol: negative offset or length")
	}
	if off > OffMax-length {
		return nil, eoverflow("segcol: off+len overflows")
	}
	if off+length > c.size {
		return nil, einval("segcol: range [%d,%d) exceeds size %d", off, off+length, c.size)
	}
	if length == 0 {
		return New(), nil
	}

	startNode, m := c.locate(off)
	localStart := off - m
	if localStart > 0 {
		left, right, err := segment.Split(startNode.seg, localStart)
		if err != nil {
			return nil, err
		}
		startNode.seg.Release()
		startNode.seg = left
		startNode = c.insertNodeAfter(startNode, right)
	}

	cur := startNode
	remaining := length
	var lastDeleted *node
	for {
		switch {
		case cur.seg.Length == remaining:
			lastDeleted = cur
			remaining = 0
		case cur.seg.Length > remaining:
			left, right, err := segment.Split(cur.seg, remaining)
			if err != nil {
				return nil, err
			}
			cur.seg.Release()
			cur.seg = left
			c.insertNodeAfter(cur, right)
			lastDeleted = cur
			remaining = 0
		default:
			remaining -= cur.seg.Length
			lastDeleted = cur
			cur = cur.next
			continue
		}
		break
	}

	before := startNode.prev
	after := lastDeleted.next
	if before != nil {
		before.next = after
	} else {
		c.head = after
	}
	if after != nil {
		after.prev = before
	} else {
		c.tail = before
	}
	startNode.prev = nil
	lastDeleted.next = nil

	deleted := &Collection{head: startNode, tail: lastDeleted, size: length}
	c.size -= length
	c.lastNode = nil
	return deleted, nil
}

// AppendCollection splices other onto the end of c, transferring
// ownership of other's segments to c. other is left empty.
func (c *Collection) AppendCollection(other *Collection) error {
	if other == nil || other.head == nil {
		return nil
	}
	if c.size > OffMax-other.size {
		return eoverflow("segcol: append collection would overflow")
	}
	if c.tail != nil {
		c.tail.next = other.head
		other.head.prev = c.tail
	} else {
		c.head = other.head
	}
	c.tail = other.tail
	c.size += other.size
	other.head, other.tail, other.size = nil, nil, 0
	return nil
}

// InsertCollection splices other into c so that other's first byte
// becomes the new byte at logical offset off, transferring ownership of
// other's segments to c. off == Size() is invalid; use AppendCollection.
// other is left empty on success.
func (c *Collection) InsertCollection(off int64, other *Collection) error {
	if other == nil || other.head == nil {
		return nil
	}
	if off < 0 {
		return einval("segcol: negative offset %d", off)
	}
	if c.size > OffMax-other.size {
		return eoverflow("segcol: insert collection would overflow")
	}
	if off >= c.size {
		return einval("segcol: offset %d >= size %d (use AppendCollection)", off, c.size)
	}

	target, m := c.locate(off)
	localOff := off - m
	if localOff == 0 {
		before := target.prev
		if before != nil {
			before.next = other.head
		} else {
			c.head = other.head
		}
		other.head.prev = before
		other.tail.next = target
		target.prev = other.tail
	} else {
		left, right, err := segment.Split(target.seg, localOff)
		if err != nil {
			return err
		}
		target.seg.Release()
		target.seg = left

		after := target.next
		rightNode := &node{seg: right, prev: other.tail, next: after}
		other.tail.next = rightNode
		if after != nil {
			after.prev = rightNode
		} else {
			c.tail = rightNode
		}

		target.next = other.head
		other.head.prev = target
	}
	c.size += other.size
	other.head, other.tail, other.size = nil, nil, 0
	c.lastNode = nil
	return nil
}

// Clone returns an independent collection with the same logical content,
// each segment holding its own extra reference to the shared source. The
// save planner clones the live collection before attempting a save, so a
// failed or partially written save never disturbs the original.
func (c *Collection) Clone() *Collection {
	clone := New()
	for n := c.head; n != nil; n = n.next {
		clone.Append(n.seg.Retain())
	}
	return clone
}

// Release drops every segment's reference to its source. Call it when
// discarding a collection (e.g. a deleted fragment trimmed from the
// action log) instead of letting it be garbage collected silently.
func (c *Collection) Release() {
	for n := c.head; n != nil; {
		next := n.next
		n.seg.Release()
		n = next
	}
	c.head, c.tail, c.size = nil, nil, 0
	c.lastNode = nil
}

func (c *Collection) insertNodeBefore(n *node, seg segment.Segment) *node {
	nn := &node{seg: seg, next: n, prev: n.prev}
	if n.prev != nil {
		n.prev.next = nn
	} else {
		c.head = nn
	}
	n.prev = nn
	return nn
}

func (c *Collection) insertNodeAfter(n *node, seg segment.Segment) *node {
	nn := &node{seg: seg, prev: n, next: n.next}
	if n.next != nil {
		n.next.prev = nn
	} else {
		c.tail = nn
	}
	n.next = nn
	return nn
}

// locate returns the node containing off and its mapping, using (and
// updating) the last-accessed-node cache for locality. off must be in
// [0, Size()).
func (c *Collection) locate(off int64) (*node, int64) {
	n := c.lastNode
	m := c.lastMapping
	if n == nil {
		n = c.head
		m = 0
	}
	for n != nil && off < m {
		n = n.prev
		if n != nil {
			m -= n.seg.Length
		}
	}
	for n != nil && off >= m+n.seg.Length {
		m += n.seg.Length
		n = n.next
	}
	c.lastNode = n
	c.lastMapping = m
	return n, m
}
