// Package bridge implements the flush bridge: the single-consumer background
// coordinator that drains a displaced memtable generation into per-table disk
// tables and the B-tree index, then advances the WAL checkpoint and prunes
// reclaimed WAL segments. It is the only path data takes from memory to disk.
package bridge

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/myyrakle/barus/internal/btree"
	"github.com/myyrakle/barus/internal/disktable"
	"github.com/myyrakle/barus/internal/memtable"
	"github.com/myyrakle/barus/internal/wal"
)

// Config bundles everything New needs to start draining flush events.
type Config struct {
	// Events is the bounded channel the memtable manager publishes displaced
	// generations to.
	Events <-chan *memtable.FlushEvent

	// DiskTable drains records into per-table segment files.
	DiskTable *disktable.Manager

	// WAL has its checkpoint advanced and old segments pruned after each
	// batch is durably indexed.
	WAL *wal.Manager

	// IndexFor returns the table-scoped B-tree index for table, opening it on
	// first use. The bridge never creates tables itself; by the time a flush
	// event references a table, the engine has already opened its index.
	IndexFor func(table string) (*btree.Index, error)

	Logger *zap.SugaredLogger
}

// Bridge is the background goroutine that owns the flush channel's consumer
// side. It is single-consumer by construction, so flush events are always
// processed strictly in the order they were published.
type Bridge struct {
	events    <-chan *memtable.FlushEvent
	diskTable *disktable.Manager
	wal       *wal.Manager
	indexFor  func(table string) (*btree.Index, error)
	logger    *zap.SugaredLogger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Start launches the bridge's drain loop in a background goroutine.
func Start(cfg Config) *Bridge {
	b := &Bridge{
		events:    cfg.Events,
		diskTable: cfg.DiskTable,
		wal:       cfg.WAL,
		indexFor:  cfg.IndexFor,
		logger:    cfg.Logger,
		stopCh:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *Bridge) run() {
	defer b.wg.Done()
	for {
		select {
		case ev, ok := <-b.events:
			if !ok {
				return
			}
			b.drain(ev)
		case <-b.stopCh:
			return
		}
	}
}

// drain processes one displaced generation. Per-key and per-table failures
// are aggregated and logged; they never block or fail the writer path, and
// the checkpoint only advances once every table in the batch has been
// attempted.
func (b *Bridge) drain(ev *memtable.FlushEvent) {
	var errs error

	for table, mt := range ev.Tables {
		idx, err := b.indexFor(table)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		for key, value := range mt.Snapshot() {
			if err := b.drainEntry(idx, table, key, value); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}

	if errs != nil && b.logger != nil {
		b.logger.Errorw("flush bridge drain encountered errors", "error", errs)
	}

	if err := b.wal.MoveCheckpoint(ev.Checkpoint.SegmentID); err != nil && b.logger != nil {
		b.logger.Errorw("flush bridge failed to advance WAL checkpoint", "error", err)
	}
}

// drainEntry handles one key from a drained memtable: superseding any
// existing disk record, then writing a fresh one unless the entry is a
// tombstone.
func (b *Bridge) drainEntry(idx *btree.Index, table, key string, value *string) error {
	if pos, found, err := idx.Find(key); err != nil {
		return err
	} else if found {
		if err := b.diskTable.MarkDeletedRecord(table, pos); err != nil {
			return err
		}
	}

	if value == nil {
		return nil
	}

	pos, err := b.diskTable.AppendRecord(table, key, *value)
	if err != nil {
		return err
	}
	return idx.Insert(key, pos)
}

// Close stops the drain loop. Any event still in flight when Close is called
// is allowed to finish draining before the goroutine exits.
func (b *Bridge) Close() error {
	close(b.stopCh)
	b.wg.Wait()
	return nil
}
