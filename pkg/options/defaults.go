package options

import "time"

const (
	// DefaultDataDir is the base directory where Barus stores its data files when
	// no directory is configured.
	DefaultDataDir = "/var/lib/barus"

	// DefaultHTTPPort is the port the HTTP front-end listens on when
	// BARUS_HTTP_PORT is unset. The front-end itself is out of scope here; only
	// the default is carried so embedding binaries agree on it.
	DefaultHTTPPort = 53000

	// DefaultGRPCPort is the port the gRPC front-end listens on when
	// BARUS_GRPC_PORT is unset.
	DefaultGRPCPort = 53001

	// WAL segment sizing. A segment is preallocated and mmap'd at this size; once
	// the write cursor would exceed it, a new segment is rotated in.
	MinWALSegmentSize     uint64 = 4 * 1024 * 1024
	MaxWALSegmentSize     uint64 = 256 * 1024 * 1024
	DefaultWALSegmentSize uint64 = 32 * 1024 * 1024

	// DefaultWALSyncInterval is how often the background goroutine fsyncs the
	// active WAL segment.
	DefaultWALSyncInterval = 10 * time.Second

	// Disk-table segment sizing: per-table record files grow page by page up to
	// the segment cap, at which point a new segment is opened.
	DefaultDiskTablePageSize    uint64 = 1 * 1024 * 1024
	DefaultDiskTableSegmentSize uint64 = 1 * 1024 * 1024 * 1024

	// B-tree index sizing: order 64, fixed 8KiB node blocks, 1GiB segment files.
	DefaultBTreeOrder       = 64
	DefaultBTreeNodeSize    = 8 * 1024
	DefaultBTreeSegmentSize = 1 * 1024 * 1024 * 1024

	// Memtable soft/hard limits are expressed as a percentage of total system
	// memory, sampled once at startup via gopsutil. Crossing the hard limit
	// blocks writers until the active generation is swapped out; the soft limit
	// does not trigger a flush.
	DefaultMemtableSoftLimitPercent = 30
	DefaultMemtableHardLimitPercent = 50

	// Validation limits bound table names, keys, and values before a write
	// ever reaches the WAL.
	DefaultTableNameMaxSize = 255
	DefaultKeyMaxSize       = 64 * 1024
	DefaultValueMaxSize     = 1 * 1024 * 1024
)

// defaultOptions holds the baseline configuration for a Barus instance before
// environment variables or functional options are applied.
var defaultOptions = Options{
	DataDir:  DefaultDataDir,
	HTTPPort: DefaultHTTPPort,
	GRPCPort: DefaultGRPCPort,

	WAL: &walOptions{
		SegmentSize:   DefaultWALSegmentSize,
		SyncInterval:  DefaultWALSyncInterval,
		SegmentPrefix: "wal",
	},

	DiskTable: &diskTableOptions{
		PageSize:    DefaultDiskTablePageSize,
		SegmentSize: DefaultDiskTableSegmentSize,
	},

	BTree: &btreeOptions{
		Order:       DefaultBTreeOrder,
		NodeSize:    DefaultBTreeNodeSize,
		SegmentSize: DefaultBTreeSegmentSize,
	},

	Memtable: &memtableOptions{
		SoftLimitPercent: DefaultMemtableSoftLimitPercent,
		HardLimitPercent: DefaultMemtableHardLimitPercent,
	},

	Validation: &validationOptions{
		TableNameMaxSize: DefaultTableNameMaxSize,
		KeyMaxSize:       DefaultKeyMaxSize,
		ValueMaxSize:     DefaultValueMaxSize,
	},
}

// NewDefaultOptions returns a fresh copy of the baseline configuration.
func NewDefaultOptions() Options {
	clone := defaultOptions
	wal := *defaultOptions.WAL
	disk := *defaultOptions.DiskTable
	btree := *defaultOptions.BTree
	mem := *defaultOptions.Memtable
	val := *defaultOptions.Validation
	clone.WAL = &wal
	clone.DiskTable = &disk
	clone.BTree = &btree
	clone.Memtable = &mem
	clone.Validation = &val
	return clone
}
