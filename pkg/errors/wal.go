package errors

// WALError is a specialized error type for write-ahead-log operations. It embeds
// baseError to inherit chaining/code/details and adds the context needed to pinpoint
// exactly where in the log a failure occurred.
type WALError struct {
	*baseError
	segmentID string // 16-hex segment identifier involved, if any.
	offset    int64  // Byte offset within the segment where the problem happened.
	recordID  uint64 // Record identifier involved, if any.
}

// NewWALError creates a new WAL-specific error.
func NewWALError(err error, code ErrorCode, msg string) *WALError {
	return &WALError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the WALError type.
func (we *WALError) WithMessage(msg string) *WALError {
	we.baseError.WithMessage(msg)
	return we
}

// WithCode sets the error code while preserving the WALError type.
func (we *WALError) WithCode(code ErrorCode) *WALError {
	we.baseError.WithCode(code)
	return we
}

// WithDetail adds contextual information while maintaining the WALError type.
func (we *WALError) WithDetail(key string, value any) *WALError {
	we.baseError.WithDetail(key, value)
	return we
}

// WithSegmentID records which segment file was involved.
func (we *WALError) WithSegmentID(id string) *WALError {
	we.segmentID = id
	return we
}

// WithOffset records the byte position where the error occurred.
func (we *WALError) WithOffset(offset int64) *WALError {
	we.offset = offset
	return we
}

// WithRecordID records which record was being processed.
func (we *WALError) WithRecordID(id uint64) *WALError {
	we.recordID = id
	return we
}

// SegmentID returns the segment identifier associated with the error.
func (we *WALError) SegmentID() string { return we.segmentID }

// Offset returns the byte offset within the segment.
func (we *WALError) Offset() int64 { return we.offset }

// RecordID returns the record identifier associated with the error.
func (we *WALError) RecordID() uint64 { return we.recordID }

// NewWALInitializationError builds the error returned when the WAL directory or
// state file cannot be prepared at startup.
func NewWALInitializationError(err error, path string) *WALError {
	return NewWALError(err, ErrorCodeWALInitialization, "failed to initialize write-ahead log").
		WithDetail("path", path)
}

// NewWALStateMissingError builds the error returned when an operation needs the
// shared WAL global state handle but none was attached.
func NewWALStateMissingError() *WALError {
	return NewWALError(nil, ErrorCodeWALStateMissing, "WAL global state handle is not attached")
}
