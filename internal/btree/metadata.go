package btree

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// metadataFileName is the JSON sidecar persisting the B-tree's root pointer
// and allocation cursor across restarts.
const metadataFileName = "index.metadata"

// metadata is the index's persisted global state: where the root node lives
// (if the tree is non-empty), the configured order, and the byte offset the
// next node block will be allocated at.
type metadata struct {
	RootPosition *codec.Position `json:"rootPosition"`
	Order        int             `json:"order"`
	NextOffset   int64           `json:"nextOffset"`
}

func metadataPath(dir string) string {
	return filepath.Join(dir, metadataFileName)
}

// loadMetadata reads the persisted metadata file. It returns (nil, nil) if
// the file doesn't exist yet.
func loadMetadata(dir string) (*metadata, error) {
	path := metadataPath(dir)
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "read index metadata").
			WithOperation("Initialize")
	}

	var m metadata
	if err := json.Unmarshal(contents, &m); err != nil {
		return nil, barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "parse index metadata").
			WithOperation("Initialize")
	}
	return &m, nil
}

// saveMetadata persists m, overwriting any previous contents.
func saveMetadata(dir string, m *metadata) error {
	path := metadataPath(dir)
	contents, err := json.Marshal(m)
	if err != nil {
		return barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "marshal index metadata").
			WithOperation("Persist")
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "write index metadata").
			WithOperation("Persist")
	}
	return nil
}

// defaultMetadata returns the metadata for a brand new, empty index.
func defaultMetadata(order int) *metadata {
	return &metadata{RootPosition: nil, Order: order, NextOffset: 0}
}

// consistent reports whether m's root-pointer/next-offset pair is one of the
// two valid shapes: an empty tree (no root, nothing allocated) or a non-empty
// tree (a root pointer into already-allocated space). Any other combination
// indicates a torn or hand-edited metadata file.
func (m *metadata) consistent() bool {
	if m.NextOffset == 0 {
		return m.RootPosition == nil
	}
	return m.RootPosition != nil
}
