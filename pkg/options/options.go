// Package options provides data structures and functions for configuring a
// Barus instance. It defines the parameters that control the WAL, memtable,
// disk-table, and B-tree subsystems, using a functional-options pattern
// (OptionFunc) extended with environment variable loading in place of a JSON
// sidecar. Barus has no runtime reconfiguration surface, so options are
// resolved once at startup and never reloaded.
package options

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// walOptions configures the write-ahead log.
type walOptions struct {
	// SegmentSize is the size in bytes a WAL segment is preallocated and mmap'd
	// to before a new segment is rotated in.
	//
	//  - Default: 32MB
	//  - Minimum: 4MB
	//  - Maximum: 256MB
	SegmentSize uint64 `json:"segmentSize"`

	// SyncInterval is how often the background goroutine fsyncs the active
	// segment to disk.
	//
	// Default: 10s
	SyncInterval time.Duration `json:"syncInterval"`

	// SegmentPrefix is not read by the engine: the WAL subdirectory is always
	// named "wal", and segment filenames themselves are pure hex (see
	// pkg/seginfo).
	SegmentPrefix string `json:"segmentPrefix"`
}

// diskTableOptions configures the per-table disk-table segment manager.
type diskTableOptions struct {
	// PageSize is the granularity a disk-table segment file grows by.
	//
	// Default: 1MB
	PageSize uint64 `json:"pageSize"`

	// SegmentSize is the maximum size a disk-table segment can grow to before
	// a new segment is opened.
	//
	// Default: 1GB
	SegmentSize uint64 `json:"segmentSize"`
}

// btreeOptions configures the file-backed B-tree index.
type btreeOptions struct {
	// Order is the maximum number of children an internal node may hold.
	//
	// Default: 64
	Order int `json:"order"`

	// NodeSize is the fixed size in bytes of every serialized node block. The
	// engine does not pass it on: the btree package uses its own fixed 8KiB
	// block size.
	//
	// Default: 8KB
	NodeSize int `json:"nodeSize"`

	// SegmentSize is the maximum size a B-tree segment file can grow to before
	// a new segment is opened. The engine does not pass it on: the btree
	// package uses its own fixed 1GiB segment size.
	//
	// Default: 1GB
	SegmentSize uint64 `json:"segmentSize"`
}

// memtableOptions configures the active/flushing memtable generations.
type memtableOptions struct {
	// SoftLimitPercent is the percentage of total system memory the memtable
	// manager records as its soft limit. Crossing it does not trigger a
	// flush; only the hard limit does.
	//
	// Default: 30
	SoftLimitPercent int `json:"softLimitPercent"`

	// HardLimitPercent is the percentage of total system memory at which
	// writers block until the active generation has been swapped out.
	//
	// Default: 50
	HardLimitPercent int `json:"hardLimitPercent"`
}

// validationOptions configures the name/key/value limits pkg/validation
// enforces before a write reaches the WAL.
type validationOptions struct {
	// TableNameMaxSize is the maximum length, in bytes, of a table name.
	//
	// Default: 255
	TableNameMaxSize int `json:"tableNameMaxSize"`

	// KeyMaxSize is the maximum length, in bytes, of a key.
	//
	// Default: 64KiB
	KeyMaxSize int `json:"keyMaxSize"`

	// ValueMaxSize is the maximum length, in bytes, of a value.
	//
	// Default: 1MiB
	ValueMaxSize int `json:"valueMaxSize"`
}

// Options defines the full configuration surface for a Barus instance.
type Options struct {
	// DataDir is the base path under which the wal/ and tables/
	// subdirectories are created; each table's B-tree index lives under
	// tables/<table>/indices.
	//
	// Default: "/var/lib/barus". Overridden by BARUS_DATA_DIR.
	DataDir string `json:"dataDir"`

	// HTTPPort is carried only as a default for front-ends embedding this
	// engine; Barus itself exposes no HTTP surface. Overridden by
	// BARUS_HTTP_PORT.
	HTTPPort int `json:"httpPort"`

	// GRPCPort is carried only as a default for front-ends embedding this
	// engine. Overridden by BARUS_GRPC_PORT.
	GRPCPort int `json:"grpcPort"`

	// WAL configures write-ahead log segment sizing and sync behavior.
	WAL *walOptions `json:"wal"`

	// DiskTable configures per-table disk-table segment sizing.
	DiskTable *diskTableOptions `json:"diskTable"`

	// BTree configures the file-backed B-tree index.
	BTree *btreeOptions `json:"btree"`

	// Memtable configures active/flushing generation memory limits.
	Memtable *memtableOptions `json:"memtable"`

	// Validation configures the table-name/key/value size limits enforced
	// before a write reaches the WAL.
	Validation *validationOptions `json:"validation"`
}

// OptionFunc mutates a Barus configuration in place.
type OptionFunc func(*Options)

// WithDefaultOptions resets every field to its baseline default.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		*o = NewDefaultOptions()
	}
}

// WithDataDir sets the base data directory.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithHTTPPort sets the HTTP front-end default port.
func WithHTTPPort(port int) OptionFunc {
	return func(o *Options) {
		if port > 0 {
			o.HTTPPort = port
		}
	}
}

// WithGRPCPort sets the gRPC front-end default port.
func WithGRPCPort(port int) OptionFunc {
	return func(o *Options) {
		if port > 0 {
			o.GRPCPort = port
		}
	}
}

// WithWALSegmentSize sets the WAL segment size. Sizes outside
// [MinWALSegmentSize, MaxWALSegmentSize] are ignored.
func WithWALSegmentSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size >= MinWALSegmentSize && size <= MaxWALSegmentSize {
			o.WAL.SegmentSize = size
		}
	}
}

// WithWALSyncInterval sets the background fsync interval.
func WithWALSyncInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.WAL.SyncInterval = interval
		}
	}
}

// WithDiskTableSegmentSize sets the per-table disk-table segment cap.
func WithDiskTableSegmentSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.DiskTable.SegmentSize = size
		}
	}
}

// WithDiskTablePageSize sets the page growth granularity of disk-table
// segments.
func WithDiskTablePageSize(size uint64) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.DiskTable.PageSize = size
		}
	}
}

// WithMemtableLimits sets the soft and hard flush-trigger percentages.
func WithMemtableLimits(softPercent, hardPercent int) OptionFunc {
	return func(o *Options) {
		if softPercent > 0 && hardPercent > softPercent && hardPercent <= 100 {
			o.Memtable.SoftLimitPercent = softPercent
			o.Memtable.HardLimitPercent = hardPercent
		}
	}
}

// WithTableNameMaxSize sets the maximum byte length of a table name.
func WithTableNameMaxSize(size int) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.Validation.TableNameMaxSize = size
		}
	}
}

// WithKeyMaxSize sets the maximum byte length of a key.
func WithKeyMaxSize(size int) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.Validation.KeyMaxSize = size
		}
	}
}

// WithValueMaxSize sets the maximum byte length of a value.
func WithValueMaxSize(size int) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.Validation.ValueMaxSize = size
		}
	}
}

// WithEnv reads BARUS_DATA_DIR, BARUS_HTTP_PORT, and BARUS_GRPC_PORT and
// applies any that are present and well formed. Malformed numeric values are
// silently ignored in favor of the existing default rather than panicking on
// bad input.
func WithEnv() OptionFunc {
	return func(o *Options) {
		if dir := strings.TrimSpace(os.Getenv("BARUS_DATA_DIR")); dir != "" {
			o.DataDir = dir
		}
		if port, ok := parsePortEnv("BARUS_HTTP_PORT"); ok {
			o.HTTPPort = port
		}
		if port, ok := parsePortEnv("BARUS_GRPC_PORT"); ok {
			o.GRPCPort = port
		}
	}
}

func parsePortEnv(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// Resolve builds the final Options by starting from defaults, applying
// environment variables, then applying any explicit functional options;
// explicit options always win over the environment.
func Resolve(opts ...OptionFunc) Options {
	o := NewDefaultOptions()
	WithEnv()(&o)
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
