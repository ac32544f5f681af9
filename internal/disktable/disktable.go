// Package disktable implements the per-table, segmented, page-structured
// record files the flush bridge drains memtables into. Each table owns an
// independent directory of hex-named segment files that grow in page-sized
// increments up to a segment cap; every record is framed as
// [flag][len][payload] so a superseded or deleted record can be marked dead
// in place by flipping its flag byte.
package disktable

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
	"github.com/myyrakle/barus/pkg/filesys"
	"github.com/myyrakle/barus/pkg/seginfo"
)

// Config bundles everything New needs to bring up a Manager.
type Config struct {
	// Directory is the root under which every table gets its own segment
	// subdirectory.
	Directory string

	// PageSize is the allocation granularity a segment grows by.
	PageSize uint64

	// SegmentSize is the cap a segment is rotated at.
	SegmentSize uint64

	Logger *zap.SugaredLogger
}

// Manager owns every table's segment directory and per-segment locks.
type Manager struct {
	baseDir     string
	pageSize    int64
	segmentSize int64
	logger      *zap.SugaredLogger

	mu     sync.RWMutex
	tables map[string]*tableState
}

// New prepares the root storage directory. It does not discover existing
// tables; callers recover those explicitly via OpenTable so the set of
// tracked tables stays driven by the memtable manager's own table registry.
func New(cfg Config) (*Manager, error) {
	if err := filesys.CreateDir(cfg.Directory, 0755, true); err != nil {
		return nil, barusErrors.ClassifyDirectoryCreationError(err, cfg.Directory)
	}
	return &Manager{
		baseDir:     cfg.Directory,
		pageSize:    int64(cfg.PageSize),
		segmentSize: int64(cfg.SegmentSize),
		logger:      cfg.Logger,
		tables:      make(map[string]*tableState),
	}, nil
}

// OpenTable registers table, recovering its existing segments from disk if
// any are present. It is idempotent: calling it again for an already-open
// table is a no-op.
func (m *Manager) OpenTable(table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; ok {
		return nil
	}

	dir, err := ensureTableDir(m.baseDir, table)
	if err != nil {
		return err
	}

	ts := newTableState(dir)
	if err := ts.recover(m.pageSize); err != nil {
		return err
	}

	m.tables[table] = ts
	return nil
}

// CloseTable drops table from the in-memory registry and closes its active
// segment handle, without touching anything on disk.
func (m *Manager) CloseTable(table string) error {
	m.mu.Lock()
	ts, ok := m.tables[table]
	if ok {
		delete(m.tables, table)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return ts.close()
}

func (m *Manager) table(table string) (*tableState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.tables[table]
	if !ok {
		return nil, barusErrors.NewStorageError(nil, barusErrors.ErrorCodeInvalidInput, "disk table not open").
			WithFileName(table)
	}
	return ts, nil
}

// AppendRecord encodes {key, value} and writes it as a new Alive frame in
// table's active segment, rotating or growing the segment first if needed.
func (m *Manager) AppendRecord(table, key, value string) (codec.Position, error) {
	ts, err := m.table(table)
	if err != nil {
		return codec.Position{}, err
	}

	payload, err := encodeRecordPayload(key, value)
	if err != nil {
		return codec.Position{}, err
	}
	total := frameSize(len(payload))
	if total > m.pageSize {
		return codec.Position{}, barusErrors.NewStorageError(nil, barusErrors.ErrorCodeInvalidInput, "record exceeds page size").
			WithDetail("recordBytes", total).WithDetail("pageSize", m.pageSize)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.activeFile == nil {
		if err := ts.createSegment(m.pageSize, ts.activeSegmentID+1); err != nil {
			return codec.Position{}, err
		}
	}

	offsetInPage := ts.pageOffset % m.pageSize
	if offsetInPage+total > m.pageSize {
		ts.pageIndex++
		ts.pageOffset = ts.pageIndex * m.pageSize
	}

	if ts.pageOffset+total > ts.segmentFileSize {
		if ts.segmentFileSize+m.pageSize > m.segmentSize {
			if err := ts.createSegment(m.pageSize, ts.activeSegmentID+1); err != nil {
				return codec.Position{}, err
			}
		} else if err := ts.growSegment(m.pageSize); err != nil {
			return codec.Position{}, err
		}
	}

	buf := make([]byte, total)
	encodeFrame(buf, FlagAlive, payload)
	if _, err := ts.activeFile.WriteAt(buf, ts.pageOffset); err != nil {
		return codec.Position{}, barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "append disk-table record").
			WithSegmentID(int(ts.activeSegmentID)).WithOffset(int(ts.pageOffset))
	}

	pos := codec.Position{SegmentID: ts.activeSegmentID, Offset: ts.pageOffset}
	ts.pageOffset += total
	return pos, nil
}

// FindRecord reads and decodes the frame at pos.
func (m *Manager) FindRecord(table string, pos codec.Position) (RecordFlag, string, string, error) {
	ts, err := m.table(table)
	if err != nil {
		return 0, "", "", err
	}

	lock := ts.segmentLock(pos.SegmentID)
	lock.RLock()
	defer lock.RUnlock()

	path := seginfo.SegmentPath(ts.dir, pos.SegmentID)
	f, err := os.Open(path)
	if err != nil {
		return 0, "", "", barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "open disk-table segment").
			WithSegmentID(int(pos.SegmentID)).WithPath(path)
	}
	defer f.Close()

	header := make([]byte, frameHeaderSize)
	if _, err := f.ReadAt(header, pos.Offset); err != nil {
		return 0, "", "", barusErrors.NewStorageError(err, barusErrors.ErrorCodeHeaderReadFailure, "read record frame header").
			WithSegmentID(int(pos.SegmentID)).WithOffset(int(pos.Offset))
	}
	flag, length, err := decodeFrameHeader(header)
	if err != nil {
		return 0, "", "", err
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := f.ReadAt(payload, pos.Offset+int64(frameHeaderSize)); err != nil {
			return 0, "", "", barusErrors.NewStorageError(err, barusErrors.ErrorCodePayloadReadFailure, "read record payload").
				WithSegmentID(int(pos.SegmentID)).WithOffset(int(pos.Offset))
		}
	}

	key, value, err := decodeRecordPayload(payload)
	if err != nil {
		return 0, "", "", err
	}
	return flag, key, value, nil
}

// MarkDeletedRecord flips the frame at pos's flag byte to FlagDeleted without
// touching anything else in the frame.
func (m *Manager) MarkDeletedRecord(table string, pos codec.Position) error {
	ts, err := m.table(table)
	if err != nil {
		return err
	}

	lock := ts.segmentLock(pos.SegmentID)
	lock.Lock()
	defer lock.Unlock()

	path := seginfo.SegmentPath(ts.dir, pos.SegmentID)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "open disk-table segment").
			WithSegmentID(int(pos.SegmentID)).WithPath(path)
	}
	defer f.Close()

	if _, err := f.WriteAt([]byte{byte(FlagDeleted)}, pos.Offset); err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "mark disk-table record deleted").
			WithSegmentID(int(pos.SegmentID)).WithOffset(int(pos.Offset))
	}
	return nil
}

// ScanSegmentFile returns every non-empty record frame in one of table's
// segment files, in file order.
func (m *Manager) ScanSegmentFile(table string, segmentID uint64) ([]ScannedRecord, error) {
	ts, err := m.table(table)
	if err != nil {
		return nil, err
	}

	lock := ts.segmentLock(segmentID)
	lock.RLock()
	defer lock.RUnlock()

	path := seginfo.SegmentPath(ts.dir, segmentID)
	f, err := os.Open(path)
	if err != nil {
		return nil, barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "open disk-table segment").
			WithSegmentID(int(segmentID)).WithPath(path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "stat disk-table segment").WithSegmentID(int(segmentID))
	}

	var records []ScannedRecord
	_, _, err = scanSegmentPages(f, segmentID, info.Size(), m.pageSize, func(r ScannedRecord) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListSegments returns every segment id that currently exists on disk for
// table, in ascending order.
func (m *Manager) ListSegments(table string) ([]uint64, error) {
	ts, err := m.table(table)
	if err != nil {
		return nil, err
	}
	ids, err := seginfo.ListSegmentIDs(ts.dir)
	if err != nil {
		return nil, barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "list disk-table segments").WithPath(ts.dir)
	}
	return ids, nil
}

// TruncateTable removes table's segment directory, recreates it empty, and
// resets its in-memory bookkeeping, leaving an empty table ready for writes.
func (m *Manager) TruncateTable(table string) error {
	m.mu.Lock()
	ts, ok := m.tables[table]
	m.mu.Unlock()
	if !ok {
		return barusErrors.NewStorageError(nil, barusErrors.ErrorCodeInvalidInput, "disk table not open").WithFileName(table)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.activeFile != nil {
		_ = ts.activeFile.Close()
		ts.activeFile = nil
	}

	if err := filesys.DeleteDir(ts.dir); err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "remove disk-table directory").WithPath(ts.dir)
	}
	if err := filesys.CreateDir(ts.dir, 0755, true); err != nil {
		return barusErrors.ClassifyDirectoryCreationError(err, ts.dir)
	}

	ts.activeSegmentID = 0
	ts.segmentFileSize = 0
	ts.pageIndex = 0
	ts.pageOffset = 0

	ts.locksMu.Lock()
	ts.segmentLocks = make(map[uint64]*sync.RWMutex)
	ts.locksMu.Unlock()
	return nil
}

// Close closes every table's active segment handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	tables := make([]*tableState, 0, len(m.tables))
	for _, ts := range m.tables {
		tables = append(tables, ts)
	}
	m.tables = make(map[string]*tableState)
	m.mu.Unlock()

	var firstErr error
	for _, ts := range tables {
		if err := ts.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
