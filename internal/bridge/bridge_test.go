package bridge

import (
	"testing"
	"time"

	"github.com/myyrakle/barus/internal/btree"
	"github.com/myyrakle/barus/internal/disktable"
	"github.com/myyrakle/barus/internal/memtable"
	"github.com/myyrakle/barus/internal/wal"
	"github.com/myyrakle/barus/pkg/codec"
	"github.com/myyrakle/barus/pkg/logger"
)

type testHarness struct {
	wal       *wal.Manager
	diskTable *disktable.Manager
	memtable  *memtable.Manager
	index     *btree.Index
	bridge    *Bridge
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	c := codec.NewBinaryCodec()

	walMgr, err := wal.Initialize(wal.Config{
		Directory:   t.TempDir(),
		Codec:       c,
		Logger:      logger.Nop(),
		SegmentSize: 64 * 1024,
	})
	if err != nil {
		t.Fatalf("wal.Initialize: %v", err)
	}

	diskMgr, err := disktable.New(disktable.Config{
		Directory:   t.TempDir(),
		PageSize:    4096,
		SegmentSize: 1024 * 1024,
		Logger:      logger.Nop(),
	})
	if err != nil {
		t.Fatalf("disktable.New: %v", err)
	}
	if err := diskMgr.OpenTable("t"); err != nil {
		t.Fatalf("OpenTable: %v", err)
	}

	idx, err := btree.Initialize(btree.Config{
		Directory: t.TempDir(),
		Order:     4,
		Codec:     c,
		Logger:    logger.Nop(),
	})
	if err != nil {
		t.Fatalf("btree.Initialize: %v", err)
	}

	memMgr, err := memtable.NewManager(30, 50, logger.Nop())
	if err != nil {
		t.Fatalf("memtable.NewManager: %v", err)
	}
	if err := memMgr.CreateTable("t"); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	b := Start(Config{
		Events:    memMgr.Events(),
		DiskTable: diskMgr,
		WAL:       walMgr,
		IndexFor:  func(table string) (*btree.Index, error) { return idx, nil },
		Logger:    logger.Nop(),
	})

	h := &testHarness{wal: walMgr, diskTable: diskMgr, memtable: memMgr, index: idx, bridge: b}
	t.Cleanup(func() {
		_ = b.Close()
		_ = walMgr.Close()
		_ = diskMgr.Close()
		_ = idx.Close()
	})
	return h
}

// waitUntil polls cond every few milliseconds up to a short timeout, since
// the bridge drains asynchronously on its own goroutine.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

func TestDrainWritesLiveEntryToDiskAndIndex(t *testing.T) {
	h := newHarness(t)

	checkpoint := memtable.Checkpoint{SegmentID: h.wal.ActiveSegmentID()}
	if err := h.memtable.Put("t", "alice", "v1", checkpoint); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := h.memtable.TriggerFlush(checkpoint); err != nil {
		t.Fatalf("TriggerFlush: %v", err)
	}

	waitUntil(t, func() bool {
		_, found, err := h.index.Find("alice")
		return err == nil && found
	})

	pos, found, err := h.index.Find("alice")
	if err != nil || !found {
		t.Fatalf("Find(alice): found=%v err=%v", found, err)
	}
	flag, _, value, err := h.diskTable.FindRecord("t", pos)
	if err != nil {
		t.Fatalf("FindRecord: %v", err)
	}
	if flag != disktable.FlagAlive || value != "v1" {
		t.Fatalf("got flag=%v value=%q, want Alive v1", flag, value)
	}
}

func TestDrainTombstoneMarksExistingRecordDeleted(t *testing.T) {
	h := newHarness(t)

	pos, err := h.diskTable.AppendRecord("t", "bob", "v0")
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if err := h.index.Insert("bob", pos); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	checkpoint := memtable.Checkpoint{SegmentID: h.wal.ActiveSegmentID()}
	if err := h.memtable.Delete("t", "bob"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := h.memtable.TriggerFlush(checkpoint); err != nil {
		t.Fatalf("TriggerFlush: %v", err)
	}

	waitUntil(t, func() bool {
		flag, _, _, err := h.diskTable.FindRecord("t", pos)
		return err == nil && flag == disktable.FlagDeleted
	})
}

func TestDrainOverwriteSupersedesPreviousRecord(t *testing.T) {
	h := newHarness(t)

	oldPos, err := h.diskTable.AppendRecord("t", "carol", "old")
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if err := h.index.Insert("carol", oldPos); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	checkpoint := memtable.Checkpoint{SegmentID: h.wal.ActiveSegmentID()}
	if err := h.memtable.Put("t", "carol", "new", checkpoint); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := h.memtable.TriggerFlush(checkpoint); err != nil {
		t.Fatalf("TriggerFlush: %v", err)
	}

	waitUntil(t, func() bool {
		pos, found, err := h.index.Find("carol")
		return err == nil && found && pos != oldPos
	})

	oldFlag, _, _, err := h.diskTable.FindRecord("t", oldPos)
	if err != nil {
		t.Fatalf("FindRecord(old): %v", err)
	}
	if oldFlag != disktable.FlagDeleted {
		t.Fatalf("expected superseded record marked deleted, got %v", oldFlag)
	}

	newPos, found, err := h.index.Find("carol")
	if err != nil || !found {
		t.Fatalf("Find(carol): found=%v err=%v", found, err)
	}
	newFlag, _, newValue, err := h.diskTable.FindRecord("t", newPos)
	if err != nil {
		t.Fatalf("FindRecord(new): %v", err)
	}
	if newFlag != disktable.FlagAlive || newValue != "new" {
		t.Fatalf("got flag=%v value=%q, want Alive new", newFlag, newValue)
	}
}

func TestDrainAdvancesWALCheckpoint(t *testing.T) {
	h := newHarness(t)

	// Each record is a 29-byte frame, so 5000 of them overflow the harness's
	// 64KiB segment size and force at least one rotation.
	for i := 0; i < 5000; i++ {
		if _, err := h.wal.Append(codec.KindPut, "t", "k", strPtr("v")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	checkpoint := memtable.Checkpoint{SegmentID: h.wal.ActiveSegmentID()}
	if checkpoint.SegmentID == 0 {
		t.Fatalf("expected the appends to rotate the WAL")
	}

	if err := h.memtable.Put("t", "x", "y", checkpoint); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := h.memtable.TriggerFlush(checkpoint); err != nil {
		t.Fatalf("TriggerFlush: %v", err)
	}

	waitUntil(t, func() bool {
		_, found, err := h.index.Find("x")
		return err == nil && found
	})

	// Moving the checkpoint to the active segment prunes every segment below
	// it, leaving only the active one.
	waitUntil(t, func() bool {
		size, err := h.wal.TotalFileSize()
		return err == nil && size == 64*1024
	})
}

func strPtr(s string) *string { return &s }
