package memtable

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// blockWritePollInterval is how often a blocked writer re-checks blockWrite.
const blockWritePollInterval = 10 * time.Millisecond

// ReadStatus describes the outcome of a Get against one generation.
type ReadStatus int

const (
	// NotFound means the key has no entry at all in this generation.
	NotFound ReadStatus = iota
	// Found means the key has a live value in this generation.
	Found
	// Deleted means the key's entry in this generation is a tombstone.
	Deleted
)

// Checkpoint identifies the WAL segment a flush snapshot was taken at, so
// the bridge can advance the WAL's checkpoint once the snapshot is durable.
// The WAL only ever prunes whole segments (see wal.Manager.MoveCheckpoint),
// so a segment id is all the bridge needs to advance it.
type Checkpoint struct {
	SegmentID uint64
}

// FlushEvent carries one displaced generation of memtables to the flush
// bridge, along with the WAL position it was taken at.
type FlushEvent struct {
	Tables     map[string]*Memtable
	Checkpoint Checkpoint
}

// Manager owns the active/flushing generations for every table, the atomic
// size accounting used to trigger flushes, and the bounded handoff channel to
// the flush bridge.
type Manager struct {
	mu                  sync.RWMutex
	memtableMap         map[string]*Memtable
	flushingMemtableMap map[string]*Memtable

	currentSize atomic.Uint64
	blockWrite  atomic.Bool

	softLimit uint64
	hardLimit uint64

	flushCh chan *FlushEvent
	logger  *zap.SugaredLogger
}

// NewManager builds a Manager with soft/hard limits computed as the given
// percentages of total system memory (queried once via gopsutil).
func NewManager(softPercent, hardPercent int, logger *zap.SugaredLogger) (*Manager, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, barusErrors.NewMemtableError(err, barusErrors.ErrorCodeInternal, "query system memory for memtable limits")
	}

	return &Manager{
		memtableMap:         make(map[string]*Memtable),
		flushingMemtableMap: make(map[string]*Memtable),
		softLimit:           vm.Total * uint64(softPercent) / 100,
		hardLimit:           vm.Total * uint64(hardPercent) / 100,
		flushCh:             make(chan *FlushEvent, 1),
		logger:              logger,
	}, nil
}

// Events returns the channel the flush bridge consumes displaced generations
// from.
func (m *Manager) Events() <-chan *FlushEvent {
	return m.flushCh
}

// CreateTable registers a new, empty table.
func (m *Manager) CreateTable(table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.memtableMap[table]; ok {
		return barusErrors.NewTableAlreadyExistsError(table)
	}
	m.memtableMap[table] = NewMemtable()
	return nil
}

// DeleteTable removes a table's active generation. Any data still sitting in
// the flushing generation is left for the bridge to drain normally.
func (m *Manager) DeleteTable(table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.memtableMap[table]; !ok {
		return barusErrors.NewTableNotFoundError(table)
	}
	delete(m.memtableMap, table)
	return nil
}

// ListTables returns every table currently registered in the active
// generation.
func (m *Manager) ListTables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.memtableMap))
	for name := range m.memtableMap {
		names = append(names, name)
	}
	return names
}

// HasTable reports whether table has an active generation.
func (m *Manager) HasTable(table string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.memtableMap[table]
	return ok
}

// CurrentSize returns the current memtable size accounting total.
func (m *Manager) CurrentSize() uint64 {
	return m.currentSize.Load()
}

func (m *Manager) spinWaitForWrite() {
	for m.blockWrite.Load() {
		time.Sleep(blockWritePollInterval)
	}
}

func (m *Manager) activeTable(table string) (*Memtable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.memtableMap[table]
	return mt, ok
}

func (m *Manager) flushingTable(table string) (*Memtable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.flushingMemtableMap[table]
	return mt, ok
}

// reserveSize performs the CAS-retry-on-hard-limit loop at the front of every
// put: spin-wait on blockWrite, attempt to reserve delta bytes, and trigger a
// flush and retry if the reservation would cross the hard limit.
func (m *Manager) reserveSize(delta uint64, checkpoint Checkpoint) error {
	for {
		m.spinWaitForWrite()

		cur := m.currentSize.Load()
		next := cur + delta

		if next > m.hardLimit {
			// TriggerFlush's only failure mode is another flush already being
			// underway; either way, spin and retry the reservation once it
			// clears.
			m.TriggerFlush(checkpoint)
			continue
		}

		if m.currentSize.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

func entryLen(key string, value *string) uint64 {
	n := uint64(len(key))
	if value != nil {
		n += uint64(len(*value))
	}
	return n
}

// subtractSize removes delta from the size counter. atomic.Uint64 has no Sub,
// so this adds delta's two's-complement negation.
func (m *Manager) subtractSize(delta uint64) {
	m.currentSize.Add(-delta)
}

// Put stores value for key in table's active memtable, reserving the entry's
// size against the hard limit before the write lands.
func (m *Manager) Put(table, key, value string, checkpoint Checkpoint) error {
	if err := m.reserveSize(uint64(len(key)+len(value)), checkpoint); err != nil {
		return err
	}

	mt, ok := m.activeTable(table)
	if !ok {
		return barusErrors.NewTableNotFoundError(table)
	}

	v := value
	previous, had := mt.set(key, &v)
	if had {
		m.subtractSize(entryLen(key, previous))
	}
	return nil
}

// Delete spin-waits on blockWrite then inserts a tombstone for key, even if
// the key was previously absent, so reads are shadowed until the table is
// flushed to disk.
func (m *Manager) Delete(table, key string) error {
	m.spinWaitForWrite()

	mt, ok := m.activeTable(table)
	if !ok {
		return barusErrors.NewTableNotFoundError(table)
	}

	previous, had := mt.set(key, nil)
	if had {
		m.subtractSize(entryLen(key, previous))
	}
	m.currentSize.Add(uint64(len(key)))
	return nil
}

// Get reads key from table's active generation.
func (m *Manager) Get(table, key string) (ReadStatus, string, error) {
	mt, ok := m.activeTable(table)
	if !ok {
		return NotFound, "", barusErrors.NewTableNotFoundError(table)
	}
	return readFrom(mt, key)
}

// GetFromFlushing reads key from table's flushing generation, for callers
// that already missed in the active generation.
func (m *Manager) GetFromFlushing(table, key string) (ReadStatus, string, error) {
	mt, ok := m.flushingTable(table)
	if !ok {
		return NotFound, "", nil
	}
	return readFrom(mt, key)
}

func readFrom(mt *Memtable, key string) (ReadStatus, string, error) {
	v, ok := mt.get(key)
	if !ok {
		return NotFound, "", nil
	}
	if v == nil {
		return Deleted, "", nil
	}
	return Found, *v, nil
}

// TriggerFlush atomically swaps every table's active memtable out for a fresh
// one, publishes the displaced maps as the flushing generation, and hands
// them to the bridge over the bounded event channel. checkpoint records the
// WAL position the snapshot corresponds to.
func (m *Manager) TriggerFlush(checkpoint Checkpoint) error {
	if !m.blockWrite.CompareAndSwap(false, true) {
		return barusErrors.NewFlushInProgressError()
	}

	m.mu.Lock()
	displaced := m.memtableMap
	fresh := make(map[string]*Memtable, len(displaced))
	for name := range displaced {
		fresh[name] = NewMemtable()
	}
	m.memtableMap = fresh
	m.flushingMemtableMap = displaced
	m.mu.Unlock()

	m.currentSize.Store(0)

	m.flushCh <- &FlushEvent{Tables: displaced, Checkpoint: checkpoint}

	m.blockWrite.Store(false)
	return nil
}

// LoadWALRecords replays records recovered above the last persisted
// checkpoint directly into the active generation, bypassing the normal
// backpressure path since recovery runs before any reader or writer is live.
// Delete failures for tables or keys that no longer exist are logged and
// ignored; replay must tolerate records whose target has since been removed.
func (m *Manager) LoadWALRecords(records []*codec.WALRecord) error {
	for _, r := range records {
		switch r.Kind {
		case codec.KindPut:
			mt, ok := m.activeTable(r.Table)
			if !ok {
				// The table was deleted after this record was logged; its
				// metadata sidecar is gone, so the record has nothing to
				// land in.
				if m.logger != nil {
					m.logger.Warnw("ignoring put replay for unknown table", "table", r.Table, "key", r.Key)
				}
				continue
			}
			v := r.Value
			previous, had := mt.set(r.Key, &v)
			if had {
				m.subtractSize(entryLen(r.Key, previous))
			}
			m.currentSize.Add(uint64(len(r.Key) + len(r.Value)))

		case codec.KindDelete:
			mt, ok := m.activeTable(r.Table)
			if !ok {
				if m.logger != nil {
					m.logger.Warnw("ignoring delete replay for unknown table", "table", r.Table, "key", r.Key)
				}
				continue
			}
			previous, had := mt.set(r.Key, nil)
			if had {
				m.subtractSize(entryLen(r.Key, previous))
			}
			m.currentSize.Add(uint64(len(r.Key)))

		case codec.KindTruncate:
			m.mu.Lock()
			old, ok := m.memtableMap[r.Table]
			if ok {
				m.memtableMap[r.Table] = NewMemtable()
			}
			m.mu.Unlock()
			if ok {
				for key, value := range old.Snapshot() {
					m.subtractSize(entryLen(key, value))
				}
			}
		}
	}
	return nil
}
