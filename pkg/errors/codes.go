package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary. This includes file system operations like reading or
	// writing segment files, network operations when communicating with remote
	// systems, and device I/O when accessing storage hardware.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents client-side errors where the provided
	// data doesn't meet the system's requirements or constraints. This maps
	// to HTTP 400-series errors and indicates problems with the request itself
	// rather than system failures.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories. These are the equivalent of HTTP 500 errors and
	// indicate bugs, assertion failures, or other programming errors that
	// shouldn't occur during normal operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Storage-specific error codes extend the base error taxonomy to handle the
// unique failure modes that occur in persistent storage systems. These codes
// represent problems that are specific to the storage layer of your key-value
// store, particularly focusing on segment file management and data persistence.
const (
	// ErrorCodeSegmentCorrupted indicates that a segment file's data has been
	// damaged or is in an inconsistent state.
	ErrorCodeSegmentCorrupted ErrorCode = "SEGMENT_CORRUPTED"

	// ErrorCodeHeaderReadFailure occurs when the system cannot read the header
	// portion of a segment file. Headers contain critical metadata about the
	// segment's structure, so header read failures prevent access to the
	// entire segment and all data it contains.
	ErrorCodeHeaderReadFailure ErrorCode = "HEADER_READ_FAILURE"

	// ErrorCodePayloadReadFailure indicates problems reading the actual data
	// content from segment files after successfully reading the header. This
	// represents a more localized failure compared to header problems, as the
	// segment structure is intact but specific data regions are inaccessible.
	ErrorCodePayloadReadFailure ErrorCode = "PAYLOAD_READ_FAILURE"

	// ErrorCodeRecoveryFailed indicates that the storage system's attempt to
	// recover from a previous failure was unsuccessful. This represents a
	// compound failure where both the original problem and the recovery
	// mechanism have failed, creating a more serious operational situation.
	ErrorCodeRecoveryFailed ErrorCode = "STORAGE_RECOVERY_FAILED"

	// ErrorCodePermissionDenied indicates insufficient permissions to access a resource.
	// This is distinct from generic IO errors because it has a specific resolution path:
	// the user needs to adjust file/directory permissions or run with elevated privileges.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device has run out of space.
	// This requires specific handling like cleanup operations or alerting administrators.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted read-only.
	// This requires administrative intervention to remount the filesystem with write permissions.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)

// Index-specific error codes describe the failure modes of the file-backed
// B-tree index lookup structure.
const (
	// ErrorCodeIndexKeyNotFound indicates a lookup found no entry for the given key.
	ErrorCodeIndexKeyNotFound ErrorCode = "INDEX_KEY_NOT_FOUND"

	// ErrorCodeIndexInvalidSegmentID indicates a record pointer referenced a segment
	// that doesn't exist or is out of the expected range.
	ErrorCodeIndexInvalidSegmentID ErrorCode = "INDEX_INVALID_SEGMENT_ID"

	// ErrorCodeIndexTimestampExtraction indicates a filename couldn't be parsed for
	// its embedded ordering metadata.
	ErrorCodeIndexTimestampExtraction ErrorCode = "INDEX_TIMESTAMP_EXTRACTION_FAILED"

	// ErrorCodeIndexCorrupted indicates the on-disk index structure is unreadable or
	// internally inconsistent and must be rebuilt from scratch.
	ErrorCodeIndexCorrupted ErrorCode = "INDEX_CORRUPTED"

	// ErrorCodeIndexNodeTooLarge indicates an encoded B-tree node exceeds the fixed
	// block size the index was configured with.
	ErrorCodeIndexNodeTooLarge ErrorCode = "INDEX_NODE_TOO_LARGE"
)

// WAL-specific error codes cover the append-only durability log: segment rotation,
// recovery, and checkpoint bookkeeping.
const (
	// ErrorCodeWALInitialization indicates the WAL directory or state file could not
	// be created or opened at startup.
	ErrorCodeWALInitialization ErrorCode = "WAL_INITIALIZATION_FAILED"

	// ErrorCodeWALSegmentOverflow indicates an append would exceed the fixed segment
	// size and a rotation is required (used internally, not surfaced to callers).
	ErrorCodeWALSegmentOverflow ErrorCode = "WAL_SEGMENT_OVERFLOW"

	// ErrorCodeWALRecordDecode indicates a record frame could not be decoded during
	// recovery or replay; recovery treats this as the end of readable records.
	ErrorCodeWALRecordDecode ErrorCode = "WAL_RECORD_DECODE_FAILED"

	// ErrorCodeWALStateMissing indicates an operation needed the shared WAL global
	// state handle but none was attached.
	ErrorCodeWALStateMissing ErrorCode = "WAL_STATE_MISSING"

	// ErrorCodeWALSegmentIDParse indicates a segment filename was not a valid 16-hex
	// identifier.
	ErrorCodeWALSegmentIDParse ErrorCode = "WAL_SEGMENT_ID_PARSE_FAILED"
)

// Memtable-specific error codes cover the in-memory write buffer and its
// active/flushing generation handoff.
const (
	// ErrorCodeTableNotFound indicates an operation referenced a table that has not
	// been created (or was deleted).
	ErrorCodeTableNotFound ErrorCode = "TABLE_NOT_FOUND"

	// ErrorCodeTableAlreadyExists indicates a create-table call targeted a name that
	// is already in use.
	ErrorCodeTableAlreadyExists ErrorCode = "TABLE_ALREADY_EXISTS"

	// ErrorCodeValueNotFound indicates a key exists in no generation and no disk
	// record, i.e. a genuine miss rather than a tombstone.
	ErrorCodeValueNotFound ErrorCode = "VALUE_NOT_FOUND"

	// ErrorCodeFlushInProgress indicates a flush trigger was rejected because another
	// flush swap is already underway.
	ErrorCodeFlushInProgress ErrorCode = "MEMTABLE_FLUSH_ALREADY_IN_PROGRESS"
)

// Codec-specific error codes cover the fixed-endian binary format shared by WAL
// records, disk-table payloads, and B-tree node payloads.
const (
	// ErrorCodeCodecEncode indicates a value could not be serialized into its target
	// buffer, typically because the buffer was undersized.
	ErrorCodeCodecEncode ErrorCode = "CODEC_ENCODE_FAILED"

	// ErrorCodeCodecDecode indicates a byte slice could not be parsed into the
	// requested type, typically due to truncation or an unrecognized tag.
	ErrorCodeCodecDecode ErrorCode = "CODEC_DECODE_FAILED"
)

// Validation-specific error codes cover the name/key/value rules the engine
// enforces before a write reaches the WAL.
const (
	// ErrorCodeTableNameEmpty indicates a table name was the empty string.
	ErrorCodeTableNameEmpty ErrorCode = "TABLE_NAME_EMPTY"

	// ErrorCodeTableNameTooLong indicates a table name exceeded the maximum
	// allowed length.
	ErrorCodeTableNameTooLong ErrorCode = "TABLE_NAME_TOO_LONG"

	// ErrorCodeTableNameInvalid indicates a table name contained characters
	// outside [A-Za-z0-9_].
	ErrorCodeTableNameInvalid ErrorCode = "TABLE_NAME_INVALID"

	// ErrorCodeKeyEmpty indicates a key was the empty string.
	ErrorCodeKeyEmpty ErrorCode = "KEY_EMPTY"

	// ErrorCodeKeyTooLarge indicates a key exceeded the maximum allowed length.
	ErrorCodeKeyTooLarge ErrorCode = "KEY_TOO_LARGE"

	// ErrorCodeValueTooLarge indicates a value exceeded the maximum allowed
	// length.
	ErrorCodeValueTooLarge ErrorCode = "VALUE_TOO_LARGE"
)
