package wal

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
	"github.com/myyrakle/barus/pkg/filesys"
	"github.com/myyrakle/barus/pkg/seginfo"
)

// Config bundles everything Initialize needs to bring up a Manager.
type Config struct {
	// Directory is where segment files and the state sidecar live.
	Directory string

	// Codec encodes/decodes WAL record payloads.
	Codec codec.Codec

	// Logger receives structured operational logging.
	Logger *zap.SugaredLogger

	// SegmentSize is the fixed size every segment is preallocated to.
	SegmentSize uint64

	// SyncInterval is how often the background goroutine fsyncs the active
	// segment. Zero disables the background goroutine (callers must call
	// FlushWAL explicitly).
	SyncInterval time.Duration
}

// Manager owns the WAL's active segment, its persisted checkpoint state, and
// the background sync loop. All exported methods are safe for concurrent use.
type Manager struct {
	dir          string
	codec        codec.Codec
	logger       *zap.SugaredLogger
	segmentSize  uint64
	syncInterval time.Duration

	mu     sync.Mutex
	active *segment
	state  *walState

	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Initialize prepares the WAL directory, opens or creates the active segment,
// recovers the next record id by scanning, and starts the background sync
// loop if SyncInterval is nonzero.
func Initialize(cfg Config) (*Manager, error) {
	if err := filesys.CreateDir(cfg.Directory, 0755, true); err != nil {
		return nil, barusErrors.NewWALInitializationError(err, cfg.Directory)
	}

	st, err := loadState(cfg.Directory)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		dir:          cfg.Directory,
		codec:        cfg.Codec,
		logger:       cfg.Logger,
		segmentSize:  cfg.SegmentSize,
		syncInterval: cfg.SyncInterval,
		stopCh:       make(chan struct{}),
	}

	if st == nil {
		st = &walState{ActiveSegmentID: 0, CheckpointSegmentID: 0, NextRecordID: 1}
		path := seginfo.SegmentPath(cfg.Directory, st.ActiveSegmentID)

		// A crash between creating segment 0 and persisting the state file
		// leaves the segment behind with no sidecar; adopt it rather than
		// failing on the exclusive create.
		exists, err := filesys.Exists(path)
		if err != nil {
			return nil, barusErrors.NewWALInitializationError(err, path)
		}

		var seg *segment
		if exists {
			seg, err = openSegment(path, st.ActiveSegmentID)
		} else {
			seg, err = createSegment(path, st.ActiveSegmentID, cfg.SegmentSize)
		}
		if err != nil {
			return nil, err
		}
		m.active = seg
		m.state = st
		if err := saveState(cfg.Directory, st); err != nil {
			return nil, err
		}
	} else {
		seg, err := openSegment(seginfo.SegmentPath(cfg.Directory, st.ActiveSegmentID), st.ActiveSegmentID)
		if err != nil {
			return nil, err
		}
		m.active = seg
		m.state = st
	}

	if err := m.recomputeNextRecordID(); err != nil {
		return nil, barusErrors.NewStorageError(err, barusErrors.ErrorCodeRecoveryFailed, "recover WAL record id sequence").
			WithPath(cfg.Directory)
	}

	if cfg.SyncInterval > 0 {
		m.wg.Add(1)
		go m.syncLoop()
	}

	return m, nil
}

func (m *Manager) syncLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.FlushWAL(); err != nil && m.logger != nil {
				m.logger.Errorw("background WAL sync failed", "error", err)
			}
		case <-m.stopCh:
			return
		}
	}
}

// Append encodes and writes one WAL record, rotating to a new segment first
// if the current one has no room. It returns the assigned record id.
func (m *Manager) Append(kind codec.RecordKind, table, key string, value *string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &codec.WALRecord{
		RecordID: m.state.NextRecordID,
		Kind:     kind,
		Table:    table,
		Key:      key,
		HasValue: value != nil,
	}
	if value != nil {
		record.Value = *value
	}

	size := m.codec.SizeWALRecord(record)
	frameSize := int64(frameHeaderSize + size)

	if m.active.remaining() < frameSize {
		if err := m.rotateLocked(); err != nil {
			return 0, err
		}
	}

	buf := make([]byte, size)
	if _, err := m.codec.EncodeWALRecord(buf, record); err != nil {
		return 0, barusErrors.NewWALError(err, barusErrors.ErrorCodeCodecEncode, "encode WAL record").
			WithRecordID(record.RecordID)
	}

	if _, err := m.active.append(buf); err != nil {
		return 0, err
	}

	id := m.state.NextRecordID
	m.state.NextRecordID++
	return id, nil
}

// rotateLocked syncs and closes the current active segment, opens the next
// one, and persists the new active segment id. The caller must hold m.mu.
func (m *Manager) rotateLocked() error {
	if err := m.active.sync(); err != nil {
		return err
	}
	if err := m.active.close(); err != nil {
		return err
	}

	nextID := m.active.id + 1
	seg, err := createSegment(seginfo.SegmentPath(m.dir, nextID), nextID, m.segmentSize)
	if err != nil {
		return err
	}

	m.active = seg
	m.state.ActiveSegmentID = nextID
	return saveState(m.dir, m.state)
}

// FlushWAL forces the active segment's buffered writes to disk.
func (m *Manager) FlushWAL() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.sync()
}

// ScanRecords walks every segment from the current checkpoint floor to the
// active segment, in id order, decoding and visiting each well-formed record.
// It stops at the first corrupt or torn frame within a segment and continues
// on to the next segment, matching the WAL's forward-scan recovery posture.
func (m *Manager) ScanRecords(visit func(*codec.WALRecord) error) error {
	m.mu.Lock()
	floor := m.state.CheckpointSegmentID
	activeID := m.active.id
	m.mu.Unlock()

	ids, err := seginfo.ListSegmentIDs(m.dir)
	if err != nil {
		return barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "list WAL segments")
	}

	for _, id := range ids {
		if id < floor {
			continue
		}

		var (
			seg        *segment
			err        error
			isBorrowed bool
		)
		if id == activeID {
			m.mu.Lock()
			seg = m.active
			m.mu.Unlock()
			isBorrowed = true
		} else {
			seg, err = openSegment(seginfo.SegmentPath(m.dir, id), id)
			if err != nil {
				return err
			}
		}

		scanErr := scanSegmentFrames(seg, id, m.codec, m.logger, visit)
		if !isBorrowed {
			if closeErr := seg.close(); closeErr != nil && scanErr == nil {
				scanErr = closeErr
			}
		}
		if scanErr != nil {
			return scanErr
		}
	}

	return nil
}

// scanSegmentFrames walks every well-formed frame in seg from the start,
// decoding and visiting each one. It stops (without error) at the first
// malformed frame, which marks the end of readable data in that segment.
func scanSegmentFrames(seg *segment, id uint64, c codec.Codec, logger *zap.SugaredLogger, visit func(*codec.WALRecord) error) error {
	var offset int64
	for {
		payload, next, ok := seg.readFrame(offset)
		if !ok {
			return nil
		}
		record, err := c.DecodeWALRecord(payload)
		if err != nil {
			if logger != nil {
				logger.Warnw("stopping WAL scan at malformed record", "segment", id, "offset", offset, "error", err)
			}
			return nil
		}
		if err := visit(record); err != nil {
			return err
		}
		offset = next
	}
}

// recomputeNextRecordID scans every record reachable from the checkpoint and
// sets NextRecordID to one past the highest id observed. This makes record id
// assignment independent of how recently the state sidecar was persisted.
func (m *Manager) recomputeNextRecordID() error {
	var maxSeen uint64
	seenAny := false

	err := m.ScanRecords(func(r *codec.WALRecord) error {
		if !seenAny || r.RecordID > maxSeen {
			maxSeen = r.RecordID
			seenAny = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if seenAny {
		m.state.NextRecordID = maxSeen + 1
	} else if m.state.NextRecordID == 0 {
		m.state.NextRecordID = 1
	}
	return nil
}

// RemoveOldSegments deletes every segment file strictly below the current
// checkpoint.
func (m *Manager) RemoveOldSegments() error {
	m.mu.Lock()
	floor := m.state.CheckpointSegmentID
	m.mu.Unlock()
	return seginfo.RemoveSegmentsBelow(m.dir, floor)
}

// TotalFileSize returns the combined size in bytes of every WAL segment file.
func (m *Manager) TotalFileSize() (int64, error) {
	return seginfo.TotalFileSize(m.dir)
}

// MoveCheckpoint advances the checkpoint to newFloor (a no-op if newFloor
// doesn't move the checkpoint forward), persists it, then prunes segments
// that fall below it. The flush bridge calls this after a memtable
// generation has been fully drained into disk tables.
func (m *Manager) MoveCheckpoint(newFloor uint64) error {
	m.mu.Lock()
	if newFloor <= m.state.CheckpointSegmentID {
		m.mu.Unlock()
		return nil
	}
	m.state.CheckpointSegmentID = newFloor
	err := saveState(m.dir, m.state)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.RemoveOldSegments()
}

// ActiveSegmentID returns the id of the segment currently accepting writes.
func (m *Manager) ActiveSegmentID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.id
}

// Close stops the background sync loop, flushes, and unmaps the active
// segment.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.active.sync(); err != nil {
		return err
	}
	return m.active.close()
}
