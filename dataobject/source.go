// Package dataobject implements the immutable, reference-counted data
// sources (file or memory regions) that segments draw their bytes from.
// It is the only blessbuf package besides the root package and blerr
// that callers of the library touch directly.
package dataobject

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gaby/blessbuf/blerr"
)

// Mode is a data-source access mode requested via GetData.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeRW
)

type kind int

const (
	kindFile kind = iota
	kindMemory
)

// Source is an immutable region of bytes behind a reference count. Create
// one with FromFile or FromMemory; every Ref must be matched by an Unref.
type Source struct {
	kind   kind
	refs   int
	length int64

	// file fields
	fd       int
	dev, ino uint64

	// memory fields
	data    []byte
	ptr     unsafe.Pointer
	freeCb  func()
	freeRan bool

	// scratchBuf backs GetData views for file sources.
	scratchBuf []byte
}

// FromFile wraps an already-open, readable file descriptor. Its length is
// captured now and does not change for the lifetime of the Source. The
// library never closes fd; the caller owns it.
func FromFile(fd int) (*Source, error) {
	return FromFileCleanup(fd, nil)
}

// FromFileCleanup is FromFile plus a cleanup hook that runs exactly once
// when the source's reference count drops to zero. The save planner uses
// this for spill temp files it creates and owns (closing and unlinking
// them); ordinary caller-supplied file sources pass a nil cleanup and are
// left untouched.
func FromFileCleanup(fd int, cleanup func()) (*Source, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, blerr.Wrap(blerr.EBADF, err, "dataobject: fstat fd %d", fd)
	}
	return &Source{
		kind:   kindFile,
		refs:   1,
		length: st.Size,
		fd:     fd,
		dev:    uint64(st.Dev),
		ino:    st.Ino,
		freeCb: cleanup,
	}, nil
}

// FromMemory wraps a byte slice. freeCb, if non-nil, runs exactly once
// when the source's reference count drops to zero.
func FromMemory(data []byte, freeCb func()) (*Source, error) {
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = unsafe.Pointer(unsafe.SliceData(data))
	}
	return &Source{
		kind:   kindMemory,
		refs:   1,
		length: int64(len(data)),
		data:   data,
		ptr:    ptr,
		freeCb: freeCb,
	}, nil
}

// Ref increments the reference count.
func (s *Source) Ref() { s.refs++ }

// Unref decrements the reference count, running the free or cleanup hook
// (if one was given) exactly once when it reaches zero.
func (s *Source) Unref() error {
	if s.refs <= 0 {
		return blerr.New(blerr.EINVAL, "dataobject: unref of already-freed source")
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	if s.freeCb != nil && !s.freeRan {
		s.freeRan = true
		s.freeCb()
	}
	return nil
}

// Length returns the source's immutable byte length.
func (s *Source) Length() int64 { return s.length }

func checkRange(at, n, length int64) error {
	if at < 0 || n < 0 {
		return blerr.New(blerr.EINVAL, "dataobject: negative offset or length")
	}
	if at > length-n || n > length {
		// written to avoid at+n overflow
		return blerr.New(blerr.EINVAL, "dataobject: range [%d,%d) out of bounds for length %d", at, at+n, length)
	}
	return nil
}

// Read reads n bytes starting at at into dst, which must have length >= n.
func (s *Source) Read(dst []byte, at, n int64) error {
	if at > (1<<63-1)-n {
		return blerr.New(blerr.EOVERFLOW, "dataobject: at+n overflows")
	}
	if err := checkRange(at, n, s.length); err != nil {
		return err
	}
	switch s.kind {
	case kindMemory:
		copy(dst[:n], s.data[at:at+n])
		return nil
	case kindFile:
		got, err := unix.Pread(s.fd, dst[:n], at)
		if err != nil {
			return blerr.Wrap(blerr.EIO, err, "dataobject: pread")
		}
		if int64(got) != n {
			return blerr.New(blerr.EIO, "dataobject: short read (%d of %d)", got, n)
		}
		return nil
	}
	return blerr.New(blerr.EINVAL, "dataobject: unknown source kind")
}

// ensureScratch grows the pooled scratch buffer file sources read GetData
// views into. Callers must not retain a view across other operations;
// reusing one buffer per source enforces that in practice.
func (s *Source) ensureScratch(n int64) []byte {
	if s.scratchBuf == nil || int64(cap(s.scratchBuf)) < n {
		s.scratchBuf = make([]byte, n)
	}
	return s.scratchBuf[:n]
}

// GetData returns a view of n bytes starting at at. For memory sources the
// view aliases the underlying storage (and, in ModeWrite/ModeRW, is
// writable). For file sources the view is a pooled scratch buffer that is
// invalidated by the next call to GetData on the same source.
func (s *Source) GetData(at, n int64, mode Mode) ([]byte, error) {
	if at > (1<<63-1)-n {
		return nil, blerr.New(blerr.EOVERFLOW, "dataobject: at+n overflows")
	}
	if err := checkRange(at, n, s.length); err != nil {
		return nil, err
	}
	switch s.kind {
	case kindMemory:
		return s.data[at : at+n], nil
	case kindFile:
		buf := s.ensureScratch(n)
		if err := s.Read(buf, at, n); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return nil, blerr.New(blerr.EINVAL, "dataobject: unknown source kind")
}

// Compare reports whether two sources refer to the same underlying
// region: same file (device+inode) or same memory region (pointer and
// length). It is used only by the save planner to decide whether a
// segment references the save target.
func (s *Source) Compare(other *Source) bool {
	if s == other {
		return true
	}
	if s.kind != other.kind {
		return false
	}
	switch s.kind {
	case kindFile:
		return s.dev == other.dev && s.ino == other.ino
	case kindMemory:
		return s.ptr == other.ptr && s.length == other.length
	}
	return false
}

// Fd exposes the underlying file descriptor for file sources, or -1.
func (s *Source) Fd() int {
	if s.kind == kindFile {
		return s.fd
	}
	return -1
}

// IsFile reports whether this source is a file-backed source.
func (s *Source) IsFile() bool { return s.kind == kindFile }
