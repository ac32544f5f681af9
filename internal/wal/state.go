package wal

import (
	"encoding/json"
	"os"
	"path/filepath"

	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// stateFileName is the JSON sidecar persisting the WAL's durable bookkeeping
// across restarts: which segment is active and how far the checkpoint has
// advanced.
const stateFileName = "wal_state.json"

// walState is the WAL's persisted global state. It is the single source of
// truth for where recovery should resume and which segments are safe to
// delete.
type walState struct {
	// ActiveSegmentID is the segment currently accepting writes.
	ActiveSegmentID uint64 `json:"activeSegmentId"`

	// CheckpointSegmentID is the lowest segment id that might still contain
	// records not yet reflected in a disk table. Segments below it have been
	// fully drained by the flush bridge and are safe to delete.
	CheckpointSegmentID uint64 `json:"checkpointSegmentId"`

	// NextRecordID is the record id to assign to the next appended record.
	NextRecordID uint64 `json:"nextRecordId"`
}

func statePath(dir string) string {
	return filepath.Join(dir, stateFileName)
}

// loadState reads the persisted state file. It returns (nil, nil) if the file
// doesn't exist yet; callers use this to distinguish "fresh WAL" from a
// corrupted or unreadable one.
func loadState(dir string) (*walState, error) {
	path := statePath(dir)
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, barusErrors.NewWALInitializationError(err, path)
	}

	var st walState
	if err := json.Unmarshal(contents, &st); err != nil {
		return nil, barusErrors.NewWALInitializationError(err, path)
	}
	return &st, nil
}

// saveState persists the state file, overwriting any previous contents.
func saveState(dir string, st *walState) error {
	path := statePath(dir)
	contents, err := json.Marshal(st)
	if err != nil {
		return barusErrors.NewWALInitializationError(err, path)
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return barusErrors.NewWALInitializationError(err, path)
	}
	return nil
}
