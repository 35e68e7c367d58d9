// Package segment implements the Segment value type: an immutable slice
// of a data source, plus the split/merge operations the segment
// collection and save planner use to stitch and divide the piece table
// without copying data.
package segment

import (
	"math"

	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/dataobject"
)

// OffMax is the largest representable logical or source offset.
const OffMax = math.MaxInt64

// Segment is a value-like, cheaply copied triple (source, start, length).
// A Segment holds one reference to its source for as long as it exists;
// callers that discard a Segment must call Release.
type Segment struct {
	Source *dataobject.Source
	Start  int64
	Length int64
}

// New validates and returns a Segment covering [start, start+length) of
// src, taking one reference on src. Callers must Release the segment (or
// transfer it into a collection that will) to avoid leaking the ref.
func New(src *dataobject.Source, start, length int64) (Segment, error) {
	if start < 0 || length < 0 {
		return Segment{}, blerr.New(blerr.EINVAL, "segment: negative start or length")
	}
	if start > OffMax-length {
		return Segment{}, blerr.New(blerr.EOVERFLOW, "segment: start+length overflows")
	}
	if start+length > src.Length() {
		return Segment{}, blerr.New(blerr.EINVAL, "segment: [%d,%d) exceeds source length %d", start, start+length, src.Length())
	}
	src.Ref()
	return Segment{Source: src, Start: start, Length: length}, nil
}

// Release drops the segment's reference to its source. A Segment must not
// be used after Release.
func (s Segment) Release() error {
	if s.Source == nil {
		return nil
	}
	return s.Source.Unref()
}

// Retain takes an additional reference to the segment's source and
// returns the same segment, for callers that need to hand out a copy
// without invalidating the original.
func (s Segment) Retain() Segment {
	if s.Source != nil {
		s.Source.Ref()
	}
	return s
}

// Split divides s at offset k (0 <= k <= s.Length) into two segments
// covering [0,k) and [k,Length) of s, each taking its own reference to
// the shared source. Neither half is ever zero-length unless k is 0 or
// s.Length, in which case the caller is expected to discard the empty
// half rather than store it.
func Split(s Segment, k int64) (left, right Segment, err error) {
	if k < 0 || k > s.Length {
		return Segment{}, Segment{}, blerr.New(blerr.EINVAL, "segment: split point %d out of [0,%d]", k, s.Length)
	}
	s.Source.Ref()
	left = Segment{Source: s.Source, Start: s.Start, Length: k}
	s.Source.Ref()
	right = Segment{Source: s.Source, Start: s.Start + k, Length: s.Length - k}
	return left, right, nil
}

// Retarget returns a new Segment of the same length backed by newSrc at
// newStart, taking one reference on newSrc. Used by the save planner to
// rebind a segment onto its post-save location (or a spill source)
// without disturbing its length.
func Retarget(s Segment, newSrc *dataobject.Source, newStart int64) Segment {
	newSrc.Ref()
	return Segment{Source: newSrc, Start: newStart, Length: s.Length}
}

// Merge combines a and b into one segment when they are adjacent slices
// of the same source (a.Source == b.Source && a.Start+a.Length ==
// b.Start). The result takes one reference; a and b's original
// references are consumed by the caller via Release as usual.
func Merge(a, b Segment) (Segment, bool) {
	if a.Source != b.Source {
		return Segment{}, false
	}
	if a.Start+a.Length != b.Start {
		return Segment{}, false
	}
	a.Source.Ref()
	return Segment{Source: a.Source, Start: a.Start, Length: a.Length + b.Length}, true
}
