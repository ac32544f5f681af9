package errors

// CodecError is a specialized error type for the fixed-endian binary codec shared
// by WAL records, disk-table payloads, and B-tree node payloads.
type CodecError struct {
	*baseError
	kind string // What was being encoded/decoded, e.g. "wal_record", "btree_node".
}

// NewCodecError creates a new codec-specific error.
func NewCodecError(err error, code ErrorCode, msg string) *CodecError {
	return &CodecError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the CodecError type.
func (ce *CodecError) WithMessage(msg string) *CodecError {
	ce.baseError.WithMessage(msg)
	return ce
}

// WithCode sets the error code while preserving the CodecError type.
func (ce *CodecError) WithCode(code ErrorCode) *CodecError {
	ce.baseError.WithCode(code)
	return ce
}

// WithDetail adds contextual information while maintaining the CodecError type.
func (ce *CodecError) WithDetail(key string, value any) *CodecError {
	ce.baseError.WithDetail(key, value)
	return ce
}

// WithKind records what was being encoded or decoded.
func (ce *CodecError) WithKind(kind string) *CodecError {
	ce.kind = kind
	return ce
}

// Kind returns the kind of payload the codec was processing.
func (ce *CodecError) Kind() string { return ce.kind }

// NewDecodeError builds the error returned when a byte slice can't be parsed into
// the requested type.
func NewDecodeError(err error, kind string) *CodecError {
	return NewCodecError(err, ErrorCodeCodecDecode, "failed to decode payload").WithKind(kind)
}

// NewEncodeError builds the error returned when a value can't be serialized into
// its target buffer.
func NewEncodeError(err error, kind string) *CodecError {
	return NewCodecError(err, ErrorCodeCodecEncode, "failed to encode payload").WithKind(kind)
}
