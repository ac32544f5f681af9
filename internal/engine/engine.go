// Package engine provides the core database engine implementation for the
// Barus storage system.
//
// The engine serves as the central coordinator and entry point for all database
// operations. It orchestrates the interaction between four subsystems:
//   - WAL: durably logs every mutation before it is applied anywhere else
//   - Memtable manager: buffers writes per table in memory, active and flushing
//     generations
//   - Disk-table manager + B-tree index: one per table, the durable home a
//     flushed generation lands in
//   - Flush bridge: drains a displaced memtable generation into its disk table
//     and index, then advances the WAL checkpoint
//
// The engine implements a thread-safe interface with proper lifecycle management,
// ensuring resources are properly initialized and cleaned up. It uses atomic
// operations for state management to provide consistent behavior across
// concurrent operations.
package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/myyrakle/barus/internal/bridge"
	"github.com/myyrakle/barus/internal/btree"
	"github.com/myyrakle/barus/internal/disktable"
	"github.com/myyrakle/barus/internal/memtable"
	"github.com/myyrakle/barus/internal/wal"
	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
	"github.com/myyrakle/barus/pkg/filesys"
	"github.com/myyrakle/barus/pkg/options"
	"github.com/myyrakle/barus/pkg/validation"
)

const (
	walDirName     = "wal"
	tablesDirName  = "tables"
	indicesDirName = "indices"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = errors.New("operation failed: cannot access closed engine")
)

// TableInfo mirrors one table's persisted metadata sidecar.
type TableInfo struct {
	Name string `json:"name"`
}

// Status is the snapshot GetDBStatus reports.
type Status struct {
	MemtableSize uint64
	TableCount   int
	WALTotalSize int64
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Engine represents the main database engine that coordinates all subsystems.
// It acts as the primary interface for database operations and manages the
// lifecycle of all internal components. The engine is designed to be
// thread-safe and supports concurrent operations while maintaining data
// consistency.
type Engine struct {
	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool

	dataDir string
	codec   codec.Codec

	wal       *wal.Manager
	memtable  *memtable.Manager
	diskTable *disktable.Manager
	bridge    *bridge.Bridge

	indicesMu sync.Mutex
	indices   map[string]*btree.Index
}

// New creates and initializes a new Engine instance with the provided
// configuration. This constructor follows the dependency injection pattern,
// making the engine testable and allowing for different configurations in
// different environments. config.Options.DataDir is the base path everything
// is stored under.
func New(config *Config) (*Engine, error) {
	opts := config.Options
	log := config.Logger
	dataDir := opts.DataDir

	if err := filesys.CreateDir(dataDir, 0755, true); err != nil {
		return nil, barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "create data directory").WithPath(dataDir)
	}
	tablesDir := filepath.Join(dataDir, tablesDirName)
	if err := filesys.CreateDir(tablesDir, 0755, true); err != nil {
		return nil, barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "create tables directory").WithPath(tablesDir)
	}

	c := codec.NewBinaryCodec()

	// Initialize the WAL first: it has no dependency on the other subsystems,
	// and replaying its records is how the memtable manager recovers state.
	walMgr, err := wal.Initialize(wal.Config{
		Directory:    filepath.Join(dataDir, walDirName),
		Codec:        c,
		Logger:       log,
		SegmentSize:  opts.WAL.SegmentSize,
		SyncInterval: opts.WAL.SyncInterval,
	})
	if err != nil {
		return nil, err
	}

	memMgr, err := memtable.NewManager(opts.Memtable.SoftLimitPercent, opts.Memtable.HardLimitPercent, log)
	if err != nil {
		return nil, err
	}

	diskMgr, err := disktable.New(disktable.Config{
		Directory:   tablesDir,
		PageSize:    opts.DiskTable.PageSize,
		SegmentSize: opts.DiskTable.SegmentSize,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		options:   opts,
		log:       log,
		dataDir:   dataDir,
		codec:     c,
		wal:       walMgr,
		memtable:  memMgr,
		diskTable: diskMgr,
		indices:   make(map[string]*btree.Index),
	}

	if err := e.recoverTables(tablesDir); err != nil {
		return nil, err
	}

	var records []*codec.WALRecord
	if err := walMgr.ScanRecords(func(r *codec.WALRecord) error {
		records = append(records, r)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := memMgr.LoadWALRecords(records); err != nil {
		return nil, err
	}

	e.bridge = bridge.Start(bridge.Config{
		Events:    memMgr.Events(),
		DiskTable: diskMgr,
		WAL:       walMgr,
		IndexFor:  e.indexFor,
		Logger:    log,
	})

	return e, nil
}

// recoverTables reopens every table whose metadata sidecar is already on
// disk, registering it with the memtable manager, disk-table manager, and
// B-tree index before WAL replay runs.
func (e *Engine) recoverTables(tablesDir string) error {
	entries, err := os.ReadDir(tablesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "list tables directory").WithPath(tablesDir)
	}

	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(ent.Name(), ".json")

		if err := e.memtable.CreateTable(name); err != nil {
			return err
		}
		if err := e.diskTable.OpenTable(name); err != nil {
			return err
		}
		if _, err := e.indexFor(name); err != nil {
			return err
		}
	}
	return nil
}

// indexFor returns table's B-tree index, opening it on first use.
func (e *Engine) indexFor(table string) (*btree.Index, error) {
	e.indicesMu.Lock()
	defer e.indicesMu.Unlock()

	if idx, ok := e.indices[table]; ok {
		return idx, nil
	}

	dir := filepath.Join(e.dataDir, tablesDirName, table, indicesDirName)
	idx, err := btree.Initialize(btree.Config{
		Directory: dir,
		Order:     e.options.BTree.Order,
		Codec:     e.codec,
		Logger:    e.log,
	})
	if err != nil {
		return nil, err
	}
	e.indices[table] = idx
	return idx, nil
}

// logFailure records a failed operation's classified error code and
// structured details, the same extraction pkg/errors exposes for monitoring
// and alerting integrations, through the engine's own logger.
func (e *Engine) logFailure(op string, err error) {
	if err == nil || e.log == nil {
		return
	}
	e.log.Warnw("operation failed",
		"operation", op,
		"code", barusErrors.GetErrorCode(err),
		"details", barusErrors.GetErrorDetails(err),
	)
}

func (e *Engine) tableMetadataPath(table string) string {
	return filepath.Join(e.dataDir, tablesDirName, table+".json")
}

func (e *Engine) persistTableMetadata(table string) error {
	contents, err := json.Marshal(TableInfo{Name: table})
	if err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "marshal table metadata").WithFileName(table)
	}
	path := e.tableMetadataPath(table)
	if err := filesys.WriteFile(path, 0644, contents); err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "write table metadata").WithPath(path)
	}
	return nil
}

// GetDBStatus reports the current memtable size accounting total, the number
// of registered tables, and the combined size of every WAL segment file.
func (e *Engine) GetDBStatus() (Status, error) {
	if e.closed.Load() {
		return Status{}, ErrEngineClosed
	}
	walSize, err := e.wal.TotalFileSize()
	if err != nil {
		return Status{}, err
	}
	return Status{
		MemtableSize: e.memtable.CurrentSize(),
		TableCount:   len(e.memtable.ListTables()),
		WALTotalSize: walSize,
	}, nil
}

// ListTables returns every currently registered table name.
func (e *Engine) ListTables() []string {
	return e.memtable.ListTables()
}

// GetTable returns name's metadata, or a table-not-found error if it hasn't
// been created (or was deleted).
func (e *Engine) GetTable(name string) (TableInfo, error) {
	if e.closed.Load() {
		return TableInfo{}, ErrEngineClosed
	}
	if !e.memtable.HasTable(name) {
		return TableInfo{}, barusErrors.NewTableNotFoundError(name)
	}
	return TableInfo{Name: name}, nil
}

// CreateTable validates name, registers it with every subsystem, and
// persists its metadata sidecar.
func (e *Engine) CreateTable(name string) (err error) {
	defer func() { e.logFailure("CreateTable", err) }()
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := validation.ValidateTableName(name, e.options.Validation.TableNameMaxSize); err != nil {
		return err
	}
	if e.memtable.HasTable(name) {
		return barusErrors.NewTableAlreadyExistsError(name)
	}

	if err := e.memtable.CreateTable(name); err != nil {
		return err
	}
	if err := e.diskTable.OpenTable(name); err != nil {
		return err
	}
	if _, err := e.indexFor(name); err != nil {
		return err
	}
	return e.persistTableMetadata(name)
}

// DeleteTable removes name from every subsystem: its active memtable
// generation, the segments in its disk-table directory (the directory itself
// is recreated empty), its B-tree index files, and its metadata sidecar. Data
// still
// sitting in the flushing generation at the moment of deletion is left for
// the bridge to drain normally into a disk-table directory that no longer
// has a metadata sidecar pointing at it.
func (e *Engine) DeleteTable(name string) (err error) {
	defer func() { e.logFailure("DeleteTable", err) }()
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if !e.memtable.HasTable(name) {
		return barusErrors.NewTableNotFoundError(name)
	}

	// The truncate record shields a later table of the same name: WAL replay
	// after a crash resets the table at this point in the log, so records
	// written before the deletion can never resurface in a re-created table.
	if _, err := e.wal.Append(codec.KindTruncate, name, name, nil); err != nil {
		return err
	}

	if err := e.memtable.DeleteTable(name); err != nil {
		return err
	}
	if err := e.diskTable.TruncateTable(name); err != nil {
		return err
	}

	e.indicesMu.Lock()
	idx, ok := e.indices[name]
	delete(e.indices, name)
	e.indicesMu.Unlock()
	if ok {
		if err := idx.Close(); err != nil {
			return err
		}
	}

	indexDir := filepath.Join(e.dataDir, tablesDirName, name, indicesDirName)
	if err := filesys.DeleteDir(indexDir); err != nil {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "remove index directory").WithPath(indexDir)
	}

	metaPath := e.tableMetadataPath(name)
	if err := filesys.DeleteFile(metaPath); err != nil && !os.IsNotExist(err) {
		return barusErrors.NewStorageError(err, barusErrors.ErrorCodeIO, "remove table metadata").WithPath(metaPath)
	}
	return nil
}

// GetValue reads through the generations in order: active memtable, then
// flushing memtable (a tombstone in either shadows the disk table entirely),
// then the B-tree index and its disk-table record.
func (e *Engine) GetValue(table, key string) (value string, found bool, err error) {
	defer func() { e.logFailure("GetValue", err) }()
	if e.closed.Load() {
		return "", false, ErrEngineClosed
	}
	if err := validation.ValidateTableName(table, e.options.Validation.TableNameMaxSize); err != nil {
		return "", false, err
	}
	if err := validation.ValidateKey(key, e.options.Validation.KeyMaxSize); err != nil {
		return "", false, err
	}

	status, value, err := e.memtable.Get(table, key)
	if err != nil {
		return "", false, err
	}
	switch status {
	case memtable.Found:
		return value, true, nil
	case memtable.Deleted:
		return "", false, nil
	}

	status, value, err = e.memtable.GetFromFlushing(table, key)
	if err != nil {
		return "", false, err
	}
	switch status {
	case memtable.Found:
		return value, true, nil
	case memtable.Deleted:
		return "", false, nil
	}

	idx, err := e.indexFor(table)
	if err != nil {
		return "", false, err
	}
	pos, found, err := idx.Find(key)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	flag, _, diskValue, err := e.diskTable.FindRecord(table, pos)
	if err != nil {
		return "", false, err
	}
	if flag == disktable.FlagDeleted {
		return "", false, nil
	}
	return diskValue, true, nil
}

// PutValue validates, appends to the WAL, then mutates the active memtable,
// triggering a flush if the write would cross the hard memory limit.
func (e *Engine) PutValue(table, key, value string) (err error) {
	defer func() { e.logFailure("PutValue", err) }()
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := validation.ValidateTableName(table, e.options.Validation.TableNameMaxSize); err != nil {
		return err
	}
	if err := validation.ValidateKey(key, e.options.Validation.KeyMaxSize); err != nil {
		return err
	}
	if err := validation.ValidateValue(value, e.options.Validation.ValueMaxSize); err != nil {
		return err
	}
	if !e.memtable.HasTable(table) {
		return barusErrors.NewTableNotFoundError(table)
	}

	if _, err := e.wal.Append(codec.KindPut, table, key, &value); err != nil {
		return err
	}

	checkpoint := memtable.Checkpoint{SegmentID: e.wal.ActiveSegmentID()}
	return e.memtable.Put(table, key, value, checkpoint)
}

// DeleteValue writes a tombstone: a WAL delete record followed by a memtable
// tombstone insertion, so reads are shadowed until the table is flushed.
func (e *Engine) DeleteValue(table, key string) (err error) {
	defer func() { e.logFailure("DeleteValue", err) }()
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := validation.ValidateTableName(table, e.options.Validation.TableNameMaxSize); err != nil {
		return err
	}
	if err := validation.ValidateKey(key, e.options.Validation.KeyMaxSize); err != nil {
		return err
	}
	if !e.memtable.HasTable(table) {
		return barusErrors.NewTableNotFoundError(table)
	}

	if _, err := e.wal.Append(codec.KindDelete, table, key, nil); err != nil {
		return err
	}
	return e.memtable.Delete(table, key)
}

// FlushWAL forces the WAL's active segment to durable storage.
func (e *Engine) FlushWAL() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return e.wal.FlushWAL()
}

// TriggerMemtableFlush manually swaps every table's active memtable
// generation out for a fresh one and hands the displaced generation to the
// flush bridge, using the WAL's current active segment as the checkpoint
// floor the bridge will advance to once draining completes.
func (e *Engine) TriggerMemtableFlush() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	checkpoint := memtable.Checkpoint{SegmentID: e.wal.ActiveSegmentID()}
	return e.memtable.TriggerFlush(checkpoint)
}

// Close gracefully shuts down the engine and releases all associated
// resources: it stops the flush bridge, closes every open B-tree index and
// disk-table handle, and finally closes the WAL.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	var firstErr error
	recordErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.bridge != nil {
		recordErr(e.bridge.Close())
	}

	e.indicesMu.Lock()
	indices := e.indices
	e.indices = nil
	e.indicesMu.Unlock()
	for _, idx := range indices {
		recordErr(idx.Close())
	}

	recordErr(e.diskTable.Close())
	recordErr(e.wal.Close())
	return firstErr
}
