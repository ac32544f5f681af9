package disktable

import (
	"os"
	"path/filepath"
	"sync"

	barusErrors "github.com/myyrakle/barus/pkg/errors"
	"github.com/myyrakle/barus/pkg/filesys"
	"github.com/myyrakle/barus/pkg/seginfo"
)

// tableState is the per-table segment bookkeeping: the active segment id and
// file size, plus the page index and write cursor within it. mu serializes
// append and the bookkeeping fields it touches; reads and deletion markers go
// through the separate per-(table, segment) locks instead.
type tableState struct {
	dir string

	mu              sync.Mutex
	activeSegmentID uint64
	activeFile      *os.File
	segmentFileSize int64
	pageIndex       int64
	pageOffset      int64 // absolute write cursor within the active segment file

	locksMu      sync.Mutex
	segmentLocks map[uint64]*sync.RWMutex
}

func newTableState(dir string) *tableState {
	return &tableState{dir: dir, segmentLocks: make(map[uint64]*sync.RWMutex)}
}

func (ts *tableState) segmentLock(segmentID uint64) *sync.RWMutex {
	ts.locksMu.Lock()
	defer ts.locksMu.Unlock()
	l, ok := ts.segmentLocks[segmentID]
	if !ok {
		l = &sync.RWMutex{}
		ts.segmentLocks[segmentID] = l
	}
	return l
}

// createSegment opens a brand new segment file preallocated to one page and
// makes it the table's active segment, closing whichever segment was active
// before (if any). The caller must hold ts.mu.
func (ts *tableState) createSegment(pageSize int64, id uint64) error {
	if ts.activeFile != nil {
		_ = ts.activeFile.Close()
	}

	path := seginfo.SegmentPath(ts.dir, id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return barusErrors.ClassifyFileOpenError(err, path, seginfo.GenerateName(id))
	}
	if err := f.Truncate(pageSize); err != nil {
		_ = f.Close()
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "preallocate disk-table segment").
			WithSegmentID(int(id)).WithPath(path)
	}

	ts.activeSegmentID = id
	ts.activeFile = f
	ts.segmentFileSize = pageSize
	ts.pageIndex = 0
	ts.pageOffset = 0
	return nil
}

// growSegment extends the active segment by one page. The caller must hold
// ts.mu.
func (ts *tableState) growSegment(pageSize int64) error {
	next := ts.segmentFileSize + pageSize
	if err := ts.activeFile.Truncate(next); err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "grow disk-table segment").
			WithSegmentID(int(ts.activeSegmentID))
	}
	ts.segmentFileSize = next
	return nil
}

// recover reopens the latest existing segment for this table, if any, and
// scans it to find where writes should resume. Tables with no segments yet
// are left with no active segment; the first AppendRecord call creates one.
func (ts *tableState) recover(pageSize int64) error {
	id, found, err := seginfo.LatestSegmentID(ts.dir)
	if err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "discover disk-table segments").WithPath(ts.dir)
	}
	if !found {
		return nil
	}

	path := seginfo.SegmentPath(ts.dir, id)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return barusErrors.ClassifyFileOpenError(err, path, seginfo.GenerateName(id))
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "stat disk-table segment").WithSegmentID(int(id))
	}

	pageIndex, offset, err := scanSegmentPages(f, id, info.Size(), pageSize, func(ScannedRecord) error { return nil })
	if err != nil {
		_ = f.Close()
		return err
	}

	ts.activeSegmentID = id
	ts.activeFile = f
	ts.segmentFileSize = info.Size()
	ts.pageIndex = pageIndex
	ts.pageOffset = offset
	return nil
}

func (ts *tableState) close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.activeFile == nil {
		return nil
	}
	err := ts.activeFile.Close()
	ts.activeFile = nil
	return err
}

func tableDir(baseDir, table string) string {
	return filepath.Join(baseDir, table)
}

func ensureTableDir(baseDir, table string) (string, error) {
	dir := tableDir(baseDir, table)
	if err := filesys.CreateDir(dir, 0755, true); err != nil {
		return "", barusErrors.ClassifyDirectoryCreationError(err, dir)
	}
	return dir, nil
}
