package disktable

import (
	"testing"

	"github.com/myyrakle/barus/pkg/logger"
)

func newTestManager(t *testing.T, pageSize, segmentSize uint64) *Manager {
	t.Helper()
	m, err := New(Config{
		Directory:   t.TempDir(),
		PageSize:    pageSize,
		SegmentSize: segmentSize,
		Logger:      logger.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.OpenTable("t"); err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAppendFindRoundTrip(t *testing.T) {
	m := newTestManager(t, 256, 4096)

	pos, err := m.AppendRecord("t", "alice", "v1")
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}

	flag, key, value, err := m.FindRecord("t", pos)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if flag != FlagAlive || key != "alice" || value != "v1" {
		t.Fatalf("unexpected record: flag=%v key=%q value=%q", flag, key, value)
	}
}

func TestMarkDeletedRecord(t *testing.T) {
	m := newTestManager(t, 256, 4096)

	pos, err := m.AppendRecord("t", "alice", "v1")
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if err := m.MarkDeletedRecord("t", pos); err != nil {
		t.Fatalf("MarkDeletedRecord: %v", err)
	}

	flag, _, _, err := m.FindRecord("t", pos)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if flag != FlagDeleted {
		t.Fatalf("expected FlagDeleted, got %v", flag)
	}
}

func TestAppendRotatesAcrossSegments(t *testing.T) {
	// Tiny page/segment sizes force a new segment every couple records.
	m := newTestManager(t, 64, 128)

	var positions []struct {
		segID uint64
		key   string
	}
	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		pos, err := m.AppendRecord("t", key, "0123456789")
		if err != nil {
			t.Fatalf("AppendRecord #%d: %v", i, err)
		}
		positions = append(positions, struct {
			segID uint64
			key   string
		}{pos.SegmentID, key})
	}

	segments := map[uint64]bool{}
	for _, p := range positions {
		segments[p.segID] = true
	}
	if len(segments) < 2 {
		t.Fatalf("expected rotation across multiple segments, saw %d", len(segments))
	}

	ids, err := m.ListSegments("t")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	var total int
	for _, id := range ids {
		recs, err := m.ScanSegmentFile("t", id)
		if err != nil {
			t.Fatalf("ScanSegmentFile(%d): %v", id, err)
		}
		total += len(recs)
	}
	if total != 10 {
		t.Fatalf("expected 10 records scanned across segments, got %d", total)
	}
}

func TestTruncateTableClearsData(t *testing.T) {
	m := newTestManager(t, 256, 4096)

	if _, err := m.AppendRecord("t", "k", "v"); err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if err := m.TruncateTable("t"); err != nil {
		t.Fatalf("TruncateTable: %v", err)
	}

	ids, err := m.ListSegments("t")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no segments after truncate, got %v", ids)
	}

	// The table must still accept writes after truncation.
	if _, err := m.AppendRecord("t", "k2", "v2"); err != nil {
		t.Fatalf("AppendRecord after truncate: %v", err)
	}
}

func TestRecoveryAfterReopen(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Config{Directory: dir, PageSize: 256, SegmentSize: 4096, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.OpenTable("t"); err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	if _, err := m.AppendRecord("t", "k1", "v1"); err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := New(Config{Directory: dir, PageSize: 256, SegmentSize: 4096, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("re-New: %v", err)
	}
	defer m2.Close()
	if err := m2.OpenTable("t"); err != nil {
		t.Fatalf("re-OpenTable: %v", err)
	}

	pos, err := m2.AppendRecord("t", "k2", "v2")
	if err != nil {
		t.Fatalf("AppendRecord after reopen: %v", err)
	}

	recs, err := m2.ScanSegmentFile("t", pos.SegmentID)
	if err != nil {
		t.Fatalf("ScanSegmentFile: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected both pre- and post-reopen records in the segment, got %d", len(recs))
	}
}
