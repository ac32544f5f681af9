// Package barus is the public facade for the Barus key/value store: a
// single embeddable entry point that wires together the WAL, memtable
// manager, per-table disk tables and B-tree indices, and the flush bridge.
// It is the thin constructor-plus-delegation layer an embedding binary
// imports instead of reaching into internal/engine directly.
package barus

import (
	"github.com/myyrakle/barus/internal/engine"
	"github.com/myyrakle/barus/pkg/logger"
	"github.com/myyrakle/barus/pkg/options"
)

// Instance is the primary entry point for interacting with the Barus store.
// It encapsulates the core engine responsible for data handling and the
// configuration options for this specific database instance.
type Instance struct {
	engine  *engine.Engine
	options *options.Options
}

// Status reports the database's current size and table accounting.
type Status = engine.Status

// TableInfo describes one table's persisted metadata.
type TableInfo = engine.TableInfo

// Open creates and initializes a new Barus instance rooted at the data
// directory resolved from opts (defaulting to BARUS_DATA_DIR or
// options.DefaultDataDir).
func Open(service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)
	resolved := options.Resolve(opts...)

	eng, err := engine.New(&engine.Config{Options: &resolved, Logger: log})
	if err != nil {
		return nil, err
	}
	return &Instance{engine: eng, options: &resolved}, nil
}

// GetDBStatus reports the current memtable size, table count, and total WAL
// size on disk.
func (i *Instance) GetDBStatus() (Status, error) {
	return i.engine.GetDBStatus()
}

// ListTables returns every currently registered table name.
func (i *Instance) ListTables() []string {
	return i.engine.ListTables()
}

// GetTable returns a table's metadata, or an error if it doesn't exist.
func (i *Instance) GetTable(name string) (TableInfo, error) {
	return i.engine.GetTable(name)
}

// CreateTable registers a new, empty table.
func (i *Instance) CreateTable(name string) error {
	return i.engine.CreateTable(name)
}

// DeleteTable removes a table and all of its data.
func (i *Instance) DeleteTable(name string) error {
	return i.engine.DeleteTable(name)
}

// GetValue retrieves the value stored for key in table. The bool return is
// false if the key has no live value (absent or tombstoned).
func (i *Instance) GetValue(table, key string) (string, bool, error) {
	return i.engine.GetValue(table, key)
}

// PutValue stores a key-value pair in table. If the key already exists, its
// value is overwritten. The write is appended to the write-ahead log before
// the in-memory buffer is updated; it reaches disk when the log is next
// synced (by the background sync, FlushWAL, or Close).
func (i *Instance) PutValue(table, key, value string) error {
	return i.engine.PutValue(table, key, value)
}

// DeleteValue removes a key-value pair from table. The deletion is recorded
// as a tombstone and becomes permanent once the containing memtable
// generation is flushed to disk.
func (i *Instance) DeleteValue(table, key string) error {
	return i.engine.DeleteValue(table, key)
}

// FlushWAL forces the write-ahead log's active segment to durable storage.
func (i *Instance) FlushWAL() error {
	return i.engine.FlushWAL()
}

// TriggerMemtableFlush manually displaces every table's active memtable
// generation and hands it to the flush bridge.
func (i *Instance) TriggerMemtableFlush() error {
	return i.engine.TriggerMemtableFlush()
}

// Close gracefully shuts down the instance, releasing all associated
// resources, flushing any pending writes, and ensuring data durability.
func (i *Instance) Close() error {
	return i.engine.Close()
}
