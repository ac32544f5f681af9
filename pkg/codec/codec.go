// Package codec implements the fixed-endian binary format shared by WAL records,
// disk-table payloads, and B-tree node payloads.
//
// The format is deliberately simple: little-endian fixed-width integers and
// length-prefixed byte strings, with no size limit on any field. Every Encode
// call is deterministic given equal inputs, which the write-ahead log depends on
// for recovery to be reproducible.
//
// The Codec interface is the "pluggable codec" capability described in the design
// notes: callers depend on the interface, not on BinaryCodec directly, so a
// different wire format could be swapped in at construction without touching the
// WAL, memtable, disk-table, or B-tree packages.
package codec

import (
	"encoding/binary"

	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// RecordKind identifies the kind of mutation a WAL record carries.
type RecordKind uint8

const (
	KindPut RecordKind = iota
	KindDelete
	KindTruncate
)

// WALRecord is the payload of a single write-ahead-log frame.
type WALRecord struct {
	RecordID uint64
	Kind     RecordKind
	Table    string
	Key      string
	HasValue bool
	Value    string
}

// Position locates a record within a table's disk segments.
type Position struct {
	SegmentID uint64
	Offset    int64
}

// DiskRecord is the payload stored in a disk-table record frame (the frame's
// flag byte and length prefix live outside the codec, in the disktable package).
type DiskRecord struct {
	Key   string
	Value string
}

// Codec is the pluggable capability the WAL, disk-table, and B-tree packages take
// a dependency on instead of a concrete binary format.
type Codec interface {
	EncodeWALRecord(buf []byte, r *WALRecord) (int, error)
	DecodeWALRecord(b []byte) (*WALRecord, error)
	SizeWALRecord(r *WALRecord) int

	EncodeDiskRecord(buf []byte, r *DiskRecord) (int, error)
	DecodeDiskRecord(b []byte) (*DiskRecord, error)
	SizeDiskRecord(r *DiskRecord) int

	EncodeBTreeNode(buf []byte, n *BTreeNode) (int, error)
	DecodeBTreeNode(b []byte) (*BTreeNode, error)
	SizeBTreeNode(n *BTreeNode) int
}

// BinaryCodec is the fixed little-endian, length-prefixed-string implementation
// of Codec used throughout this module.
type BinaryCodec struct{}

// NewBinaryCodec constructs the default codec.
func NewBinaryCodec() *BinaryCodec { return &BinaryCodec{} }

var _ Codec = (*BinaryCodec)(nil)

func putString(buf []byte, s string) int {
	binary.LittleEndian.PutUint32(buf, uint32(len(s)))
	copy(buf[4:], s)
	return 4 + len(s)
}

func sizeString(s string) int { return 4 + len(s) }

func getString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, barusErrors.NewDecodeError(nil, "string_length").WithDetail("available", len(b))
	}
	n := int(binary.LittleEndian.Uint32(b))
	if n < 0 || len(b) < 4+n {
		return "", 0, barusErrors.NewDecodeError(nil, "string_body").
			WithDetail("declared", n).WithDetail("available", len(b)-4)
	}
	return string(b[4 : 4+n]), 4 + n, nil
}

// SizeWALRecord returns the exact number of bytes EncodeWALRecord will write.
func (c *BinaryCodec) SizeWALRecord(r *WALRecord) int {
	size := 8 + 1 + sizeString(r.Table) + sizeString(r.Key) + 1
	if r.HasValue {
		size += sizeString(r.Value)
	}
	return size
}

// EncodeWALRecord writes r into buf starting at buf[0], returning the number of
// bytes written. buf must be at least SizeWALRecord(r) bytes long.
func (c *BinaryCodec) EncodeWALRecord(buf []byte, r *WALRecord) (int, error) {
	need := c.SizeWALRecord(r)
	if len(buf) < need {
		return 0, barusErrors.NewEncodeError(nil, "wal_record").
			WithDetail("need", need).WithDetail("have", len(buf))
	}

	off := 0
	binary.LittleEndian.PutUint64(buf[off:], r.RecordID)
	off += 8
	buf[off] = byte(r.Kind)
	off++
	off += putString(buf[off:], r.Table)
	off += putString(buf[off:], r.Key)
	if r.HasValue {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	off++
	if r.HasValue {
		off += putString(buf[off:], r.Value)
	}
	return off, nil
}

// DecodeWALRecord parses a WALRecord from the front of b. WAL records are
// framed externally (a length prefix precedes them in the segment file), so
// the entire slice b is expected to be the exact payload.
func (c *BinaryCodec) DecodeWALRecord(b []byte) (*WALRecord, error) {
	if len(b) < 9 {
		return nil, barusErrors.NewDecodeError(nil, "wal_record").WithDetail("available", len(b))
	}
	r := &WALRecord{}
	off := 0
	r.RecordID = binary.LittleEndian.Uint64(b[off:])
	off += 8
	r.Kind = RecordKind(b[off])
	off++

	table, n, err := getString(b[off:])
	if err != nil {
		return nil, barusErrors.NewDecodeError(err, "wal_record.table")
	}
	r.Table = table
	off += n

	key, n, err := getString(b[off:])
	if err != nil {
		return nil, barusErrors.NewDecodeError(err, "wal_record.key")
	}
	r.Key = key
	off += n

	if off >= len(b) {
		return nil, barusErrors.NewDecodeError(nil, "wal_record.has_value")
	}
	r.HasValue = b[off] != 0
	off++

	if r.HasValue {
		value, n, err := getString(b[off:])
		if err != nil {
			return nil, barusErrors.NewDecodeError(err, "wal_record.value")
		}
		r.Value = value
		off += n
	}
	return r, nil
}

// SizeDiskRecord returns the exact number of bytes EncodeDiskRecord will write.
func (c *BinaryCodec) SizeDiskRecord(r *DiskRecord) int {
	return sizeString(r.Key) + sizeString(r.Value)
}

// EncodeDiskRecord writes r into buf starting at buf[0].
func (c *BinaryCodec) EncodeDiskRecord(buf []byte, r *DiskRecord) (int, error) {
	need := c.SizeDiskRecord(r)
	if len(buf) < need {
		return 0, barusErrors.NewEncodeError(nil, "disk_record").
			WithDetail("need", need).WithDetail("have", len(buf))
	}
	off := putString(buf, r.Key)
	off += putString(buf[off:], r.Value)
	return off, nil
}

// DecodeDiskRecord parses a DiskRecord from the front of b.
func (c *BinaryCodec) DecodeDiskRecord(b []byte) (*DiskRecord, error) {
	key, n, err := getString(b)
	if err != nil {
		return nil, barusErrors.NewDecodeError(err, "disk_record.key")
	}
	off := n
	value, n, err := getString(b[off:])
	if err != nil {
		return nil, barusErrors.NewDecodeError(err, "disk_record.value")
	}
	return &DiskRecord{Key: key, Value: value}, nil
}

// BTreeEntry is one (key, position) pair: a (key, record position) pair in a
// leaf node, or a (separator key, child position) pair in an internal node.
type BTreeEntry struct {
	Key      string
	Position Position
}

// BTreeNode is the decoded payload of one fixed-size B-tree node block.
// Internal nodes carry a LeftmostChild in addition to their sorted Entries;
// for N entries there are N+1 children (LeftmostChild plus each entry's
// Position).
type BTreeNode struct {
	Leaf          bool
	Entries       []BTreeEntry
	LeftmostChild Position
}

// SizeBTreeNode returns the exact number of bytes EncodeBTreeNode will write
// for n's payload (excluding the block's own 4-byte length prefix and zero
// padding, which the index package applies).
func (c *BinaryCodec) SizeBTreeNode(n *BTreeNode) int {
	size := 1 + 4 // leaf flag + entry count
	if !n.Leaf {
		size += SizePosition()
	}
	for _, e := range n.Entries {
		size += sizeString(e.Key) + SizePosition()
	}
	return size
}

// EncodeBTreeNode writes n's payload into buf starting at buf[0].
func (c *BinaryCodec) EncodeBTreeNode(buf []byte, n *BTreeNode) (int, error) {
	need := c.SizeBTreeNode(n)
	if len(buf) < need {
		return 0, barusErrors.NewEncodeError(nil, "btree_node").
			WithDetail("need", need).WithDetail("have", len(buf))
	}

	off := 0
	if n.Leaf {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(n.Entries)))
	off += 4
	if !n.Leaf {
		off += EncodePosition(buf[off:], n.LeftmostChild)
	}
	for _, e := range n.Entries {
		off += putString(buf[off:], e.Key)
		off += EncodePosition(buf[off:], e.Position)
	}
	return off, nil
}

// DecodeBTreeNode parses a BTreeNode from the front of b.
func (c *BinaryCodec) DecodeBTreeNode(b []byte) (*BTreeNode, error) {
	if len(b) < 5 {
		return nil, barusErrors.NewDecodeError(nil, "btree_node").WithDetail("available", len(b))
	}
	n := &BTreeNode{Leaf: b[0] != 0}
	off := 1
	count := int(binary.LittleEndian.Uint32(b[off:]))
	off += 4

	if !n.Leaf {
		pos, consumed, err := DecodePosition(b[off:])
		if err != nil {
			return nil, barusErrors.NewDecodeError(err, "btree_node.leftmost_child")
		}
		n.LeftmostChild = pos
		off += consumed
	}

	n.Entries = make([]BTreeEntry, 0, count)
	for i := 0; i < count; i++ {
		key, consumed, err := getString(b[off:])
		if err != nil {
			return nil, barusErrors.NewDecodeError(err, "btree_node.entry.key")
		}
		off += consumed

		pos, consumed, err := DecodePosition(b[off:])
		if err != nil {
			return nil, barusErrors.NewDecodeError(err, "btree_node.entry.position")
		}
		off += consumed

		n.Entries = append(n.Entries, BTreeEntry{Key: key, Position: pos})
	}
	return n, nil
}

// SizePosition returns the exact encoded size of a Position (constant).
func SizePosition() int { return 8 + 8 }

// EncodePosition writes p into buf starting at buf[0].
func EncodePosition(buf []byte, p Position) int {
	binary.LittleEndian.PutUint64(buf, p.SegmentID)
	binary.LittleEndian.PutUint64(buf[8:], uint64(p.Offset))
	return 16
}

// DecodePosition parses a Position from the front of b.
func DecodePosition(b []byte) (Position, int, error) {
	if len(b) < 16 {
		return Position{}, 0, barusErrors.NewDecodeError(nil, "position").WithDetail("available", len(b))
	}
	return Position{
		SegmentID: binary.LittleEndian.Uint64(b),
		Offset:    int64(binary.LittleEndian.Uint64(b[8:])),
	}, 16, nil
}
