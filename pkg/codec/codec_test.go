package codec

import "testing"

func TestWALRecordRoundTrip(t *testing.T) {
	c := NewBinaryCodec()
	r := &WALRecord{RecordID: 42, Kind: KindPut, Table: "users", Key: "alice", HasValue: true, Value: "v1"}

	buf := make([]byte, c.SizeWALRecord(r))
	n, err := c.EncodeWALRecord(buf, r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("encode wrote %d bytes, expected %d", n, len(buf))
	}

	got, err := c.DecodeWALRecord(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != *r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestWALRecordTombstone(t *testing.T) {
	c := NewBinaryCodec()
	r := &WALRecord{RecordID: 1, Kind: KindDelete, Table: "t", Key: "k", HasValue: false}

	buf := make([]byte, c.SizeWALRecord(r))
	if _, err := c.EncodeWALRecord(buf, r); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.DecodeWALRecord(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.HasValue || got.Value != "" {
		t.Fatalf("expected no value, got %+v", got)
	}
}

func TestWALRecordDeterministic(t *testing.T) {
	c := NewBinaryCodec()
	r := &WALRecord{RecordID: 7, Kind: KindPut, Table: "t", Key: "k", HasValue: true, Value: "v"}
	buf1 := make([]byte, c.SizeWALRecord(r))
	buf2 := make([]byte, c.SizeWALRecord(r))
	if _, err := c.EncodeWALRecord(buf1, r); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EncodeWALRecord(buf2, r); err != nil {
		t.Fatal(err)
	}
	if string(buf1) != string(buf2) {
		t.Fatalf("encoding is not deterministic")
	}
}

func TestWALRecordTruncatedBuffer(t *testing.T) {
	c := NewBinaryCodec()
	r := &WALRecord{RecordID: 1, Kind: KindPut, Table: "t", Key: "k", HasValue: true, Value: "v"}
	buf := make([]byte, c.SizeWALRecord(r))
	c.EncodeWALRecord(buf, r)

	if _, err := c.DecodeWALRecord(buf[:5]); err == nil {
		t.Fatalf("expected decode error on truncated buffer")
	}
}

func TestDiskRecordRoundTrip(t *testing.T) {
	c := NewBinaryCodec()
	r := &DiskRecord{Key: "k1", Value: "value-bytes"}
	buf := make([]byte, c.SizeDiskRecord(r))
	if _, err := c.EncodeDiskRecord(buf, r); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.DecodeDiskRecord(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != *r {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, r)
	}
}

func TestBTreeNodeRoundTripLeaf(t *testing.T) {
	c := NewBinaryCodec()
	n := &BTreeNode{
		Leaf: true,
		Entries: []BTreeEntry{
			{Key: "alice", Position: Position{SegmentID: 1, Offset: 10}},
			{Key: "bob", Position: Position{SegmentID: 1, Offset: 40}},
		},
	}

	buf := make([]byte, c.SizeBTreeNode(n))
	if _, err := c.EncodeBTreeNode(buf, n); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.DecodeBTreeNode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Leaf != n.Leaf || len(got.Entries) != len(n.Entries) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, n)
	}
	for i := range n.Entries {
		if got.Entries[i] != n.Entries[i] {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got.Entries[i], n.Entries[i])
		}
	}
}

func TestBTreeNodeRoundTripInternal(t *testing.T) {
	c := NewBinaryCodec()
	n := &BTreeNode{
		Leaf:          false,
		LeftmostChild: Position{SegmentID: 0, Offset: 0},
		Entries: []BTreeEntry{
			{Key: "m", Position: Position{SegmentID: 0, Offset: 8192}},
		},
	}

	buf := make([]byte, c.SizeBTreeNode(n))
	if _, err := c.EncodeBTreeNode(buf, n); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.DecodeBTreeNode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Leaf || got.LeftmostChild != n.LeftmostChild {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, n)
	}
	if len(got.Entries) != 1 || got.Entries[0] != n.Entries[0] {
		t.Fatalf("entry mismatch: got %+v want %+v", got.Entries, n.Entries)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	p := Position{SegmentID: 0xABCD, Offset: 123456}
	buf := make([]byte, SizePosition())
	EncodePosition(buf, p)
	got, n, err := DecodePosition(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != SizePosition() || got != p {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
}
