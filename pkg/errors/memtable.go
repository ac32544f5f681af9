package errors

// MemtableError is a specialized error type for the in-memory write-buffer layer:
// per-table maps, generation swaps, and flush triggering.
type MemtableError struct {
	*baseError
	table string
	key   string
}

// NewMemtableError creates a new memtable-specific error.
func NewMemtableError(err error, code ErrorCode, msg string) *MemtableError {
	return &MemtableError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the MemtableError type.
func (me *MemtableError) WithMessage(msg string) *MemtableError {
	me.baseError.WithMessage(msg)
	return me
}

// WithCode sets the error code while preserving the MemtableError type.
func (me *MemtableError) WithCode(code ErrorCode) *MemtableError {
	me.baseError.WithCode(code)
	return me
}

// WithDetail adds contextual information while maintaining the MemtableError type.
func (me *MemtableError) WithDetail(key string, value any) *MemtableError {
	me.baseError.WithDetail(key, value)
	return me
}

// WithTable records which table was being accessed.
func (me *MemtableError) WithTable(table string) *MemtableError {
	me.table = table
	return me
}

// WithKey records which key was being accessed.
func (me *MemtableError) WithKey(key string) *MemtableError {
	me.key = key
	return me
}

// Table returns the table name associated with the error.
func (me *MemtableError) Table() string { return me.table }

// Key returns the key associated with the error.
func (me *MemtableError) Key() string { return me.key }

// NewTableNotFoundError builds the error returned when an operation references a
// table that doesn't exist.
func NewTableNotFoundError(table string) *MemtableError {
	return NewMemtableError(nil, ErrorCodeTableNotFound, "table not found").WithTable(table)
}

// NewTableAlreadyExistsError builds the error returned when creating a table whose
// name is already in use.
func NewTableAlreadyExistsError(table string) *MemtableError {
	return NewMemtableError(nil, ErrorCodeTableAlreadyExists, "table already exists").WithTable(table)
}

// NewValueNotFoundError builds the error returned when a key has no value anywhere
// in the read path (as opposed to a tombstone, which the memtable reports with
// its Deleted read status).
func NewValueNotFoundError(table, key string) *MemtableError {
	return NewMemtableError(nil, ErrorCodeValueNotFound, "value not found").
		WithTable(table).WithKey(key)
}

// NewFlushInProgressError builds the error returned when a flush trigger is
// rejected because another flush swap is already underway.
func NewFlushInProgressError() *MemtableError {
	return NewMemtableError(nil, ErrorCodeFlushInProgress, "memtable flush already in progress")
}
