package errors

// IndexError is a specialized error type for the file-backed B-tree index. It
// embeds baseError to inherit chaining/code/details and adds the context
// needed to pinpoint exactly which node and position a failure occurred at.
type IndexError struct {
	*baseError

	// key identifies which key was being looked up, inserted, or deleted.
	key string

	// segmentID identifies which index.btree[.N] segment file was involved.
	segmentID uint64

	// offset is the byte position within the segment the failing node block
	// starts at, if known.
	offset int64

	// operation names the B-tree operation in progress (Find, Insert, Delete,
	// Initialize, ...).
	operation string

	// nodeSize records the declared payload size of a node block, for errors
	// about blocks that are too large or otherwise malformed.
	nodeSize int
}

// NewIndexError creates a new B-tree index error with the provided context.
func NewIndexError(err error, code ErrorCode, msg string) *IndexError {
	return &IndexError{
		baseError: NewBaseError(err, code, msg),
	}
}

// Override base error methods to return *IndexError instead of *baseError.

// WithMessage updates the error message while maintaining the IndexError type.
func (ie *IndexError) WithMessage(msg string) *IndexError {
	ie.baseError.WithMessage(msg)
	return ie
}

// WithCode sets the error code while preserving the IndexError type.
func (ie *IndexError) WithCode(code ErrorCode) *IndexError {
	ie.baseError.WithCode(code)
	return ie
}

// WithDetail adds contextual information while maintaining the IndexError type.
func (ie *IndexError) WithDetail(key string, value any) *IndexError {
	ie.baseError.WithDetail(key, value)
	return ie
}

// WithKey records which key was being processed when the error occurred.
func (ie *IndexError) WithKey(key string) *IndexError {
	ie.key = key
	return ie
}

// WithSegmentID records which index.btree[.N] segment file was involved.
func (ie *IndexError) WithSegmentID(segmentID uint64) *IndexError {
	ie.segmentID = segmentID
	return ie
}

// WithOffset records the byte position of the failing node block.
func (ie *IndexError) WithOffset(offset int64) *IndexError {
	ie.offset = offset
	return ie
}

// WithOperation records what B-tree operation was being performed.
func (ie *IndexError) WithOperation(operation string) *IndexError {
	ie.operation = operation
	return ie
}

// WithNodeSize records the declared payload size of a node block.
func (ie *IndexError) WithNodeSize(size int) *IndexError {
	ie.nodeSize = size
	return ie
}

// Key returns the key that was being processed when the error occurred.
func (ie *IndexError) Key() string { return ie.key }

// SegmentID returns the index segment file identifier associated with the error.
func (ie *IndexError) SegmentID() uint64 { return ie.segmentID }

// Offset returns the byte offset of the failing node block.
func (ie *IndexError) Offset() int64 { return ie.offset }

// Operation returns the name of the B-tree operation that was being performed.
func (ie *IndexError) Operation() string { return ie.operation }

// NodeSize returns the declared payload size recorded on the error, if any.
func (ie *IndexError) NodeSize() int { return ie.nodeSize }

// NewIndexNodeTooLargeError builds the error returned when an encoded node's
// payload exceeds NODE_SIZE-4 and cannot be written into a fixed block.
func NewIndexNodeTooLargeError(nodeSize, limit int) *IndexError {
	return NewIndexError(nil, ErrorCodeIndexNodeTooLarge, "encoded B-tree node exceeds fixed block size").
		WithOperation("WriteNode").
		WithNodeSize(nodeSize).
		WithDetail("limit", limit)
}

// NewIndexCorruptionError builds the error recorded (and then healed, at
// Initialize) when the on-disk B-tree structure is unreadable or internally
// inconsistent: a declared node size that is zero, unreasonably large, or
// larger than a block, or a read past file bounds.
func NewIndexCorruptionError(operation string, cause error) *IndexError {
	return NewIndexError(cause, ErrorCodeIndexCorrupted, "B-tree index structure corrupted, reinitializing").
		WithOperation(operation)
}

// NewIndexDecodeError builds the error returned when a node block's payload
// bytes fail to decode. Per spec, this is fatal to the calling operation; only
// Initialize catches it to trigger a rebuild.
func NewIndexDecodeError(cause error, segmentID uint64, offset int64) *IndexError {
	return NewIndexError(cause, ErrorCodeCodecDecode, "failed to decode B-tree node").
		WithOperation("ReadNode").
		WithSegmentID(segmentID).
		WithOffset(offset)
}
