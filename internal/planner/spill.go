package planner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/dataobject"
)

// inlineSpillThreshold is the largest spilled range kept in memory;
// anything bigger goes to a temp file under the configured TMP_DIR.
const inlineSpillThreshold = 4096

// spill copies data into a side store and wraps it as a data source: an
// in-memory buffer for small ranges, otherwise a temp file named
// bless-spill-XXXXXX under tmpDir, mode 0600, unlinked and closed once
// its source's refcount reaches zero.
func spill(tmpDir string, data []byte) (*dataobject.Source, error) {
	if len(data) <= inlineSpillThreshold {
		buf := make([]byte, len(data))
		copy(buf, data)
		return dataobject.FromMemory(buf, nil)
	}

	suffix := uuid.New().String()[:6]
	path := filepath.Join(tmpDir, fmt.Sprintf("bless-spill-%s", suffix))
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		return nil, blerr.Wrap(blerr.ENOSPC, err, "planner: create spill file %s", path)
	}
	if err := pwriteAll(fd, data, 0); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, err
	}
	cleanup := func() {
		unix.Close(fd)
		os.Remove(path)
	}
	src, err := dataobject.FromFileCleanup(fd, cleanup)
	if err != nil {
		cleanup()
		return nil, err
	}
	return src, nil
}

// pwriteAll writes all of data to fd at off, looping over short writes.
func pwriteAll(fd int, data []byte, off int64) error {
	for len(data) > 0 {
		n, err := unix.Pwrite(fd, data, off)
		if err != nil {
			return blerr.Wrap(blerr.EIO, err, "planner: pwrite")
		}
		if n == 0 {
			return blerr.New(blerr.EIO, "planner: pwrite wrote 0 bytes")
		}
		data = data[n:]
		off += int64(n)
	}
	return nil
}
