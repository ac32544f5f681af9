package wal

import (
	"testing"

	"github.com/myyrakle/barus/pkg/codec"
	"github.com/myyrakle/barus/pkg/logger"
	"github.com/myyrakle/barus/pkg/seginfo"
)

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	m, err := Initialize(Config{
		Directory:   dir,
		Codec:       codec.NewBinaryCodec(),
		Logger:      logger.Nop(),
		SegmentSize: 64 * 1024,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAppendAndScanRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)

	v1 := "v1"
	id1, err := m.Append(codec.KindPut, "users", "alice", &v1)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	id2, err := m.Append(codec.KindDelete, "users", "bob", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id2 != id1+1 {
		t.Fatalf("record ids should be consecutive: %d, %d", id1, id2)
	}

	var seen []*codec.WALRecord
	if err := m.ScanRecords(func(r *codec.WALRecord) error {
		seen = append(seen, r)
		return nil
	}); err != nil {
		t.Fatalf("ScanRecords: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 records, got %d", len(seen))
	}
	if seen[0].Key != "alice" || !seen[0].HasValue || seen[0].Value != "v1" {
		t.Fatalf("unexpected first record: %+v", seen[0])
	}
	if seen[1].Key != "bob" || seen[1].HasValue {
		t.Fatalf("unexpected second record: %+v", seen[1])
	}
}

func TestRecoveryAfterReopen(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir)

	v := "v"
	if _, err := m.Append(codec.KindPut, "t", "k1", &v); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.FlushWAL(); err != nil {
		t.Fatalf("FlushWAL: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := Initialize(Config{
		Directory:   dir,
		Codec:       codec.NewBinaryCodec(),
		Logger:      logger.Nop(),
		SegmentSize: 64 * 1024,
	})
	if err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	defer m2.Close()

	var count int
	if err := m2.ScanRecords(func(r *codec.WALRecord) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("ScanRecords after reopen: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", count)
	}

	// The next record id must continue from where the previous run left off.
	id, err := m2.Append(codec.KindPut, "t", "k2", &v)
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if id != 2 {
		t.Fatalf("expected record id 2 after reopen, got %d", id)
	}
}

func TestSegmentRotation(t *testing.T) {
	dir := t.TempDir()
	m, err := Initialize(Config{
		Directory:   dir,
		Codec:       codec.NewBinaryCodec(),
		Logger:      logger.Nop(),
		SegmentSize: 256, // tiny, forces rotation quickly
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer m.Close()

	v := "0123456789"
	for i := 0; i < 20; i++ {
		if _, err := m.Append(codec.KindPut, "t", "k", &v); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}

	if m.ActiveSegmentID() == 0 {
		t.Fatalf("expected at least one rotation to have occurred")
	}

	var count int
	if err := m.ScanRecords(func(r *codec.WALRecord) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("ScanRecords: %v", err)
	}
	if count != 20 {
		t.Fatalf("expected 20 records across segments, got %d", count)
	}
}

func TestMoveCheckpointPrunesSegments(t *testing.T) {
	dir := t.TempDir()
	m, err := Initialize(Config{
		Directory:   dir,
		Codec:       codec.NewBinaryCodec(),
		Logger:      logger.Nop(),
		SegmentSize: 256,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer m.Close()

	v := "0123456789"
	for i := 0; i < 20; i++ {
		m.Append(codec.KindPut, "t", "k", &v)
	}

	active := m.ActiveSegmentID()
	if active == 0 {
		t.Fatalf("expected rotation before checkpoint test")
	}

	if err := m.MoveCheckpoint(active); err != nil {
		t.Fatalf("MoveCheckpoint: %v", err)
	}

	ids, err := seginfo.ListSegmentIDs(dir)
	if err != nil {
		t.Fatalf("ListSegmentIDs: %v", err)
	}
	if len(ids) == 0 || ids[0] != active {
		t.Fatalf("expected segments below %d to be pruned, got %v", active, ids)
	}

	var count int
	if err := m.ScanRecords(func(r *codec.WALRecord) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("ScanRecords after checkpoint: %v", err)
	}
	if count == 0 || count == 20 {
		t.Fatalf("expected scan to be limited to the active segment's records, got %d", count)
	}
}
