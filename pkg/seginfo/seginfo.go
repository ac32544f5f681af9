// Package seginfo provides utilities for naming and discovering the fixed-width
// hex-identified segment files used by the WAL and disk-table layers.
//
// Filename Format: 16 uppercase hex characters, e.g. "0000000000000001".
// Segment identifiers are a single monotonic counter owned by whichever
// manager is creating the segment, so the filename alone determines both
// identity and sort order, with no embedded prefix or timestamp needed for
// uniqueness.
package seginfo

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/myyrakle/barus/pkg/filesys"
)

// NameWidth is the fixed width of a rendered segment identifier.
const NameWidth = 16

// GenerateName renders a segment id as its canonical 16-character uppercase hex
// filename.
func GenerateName(id uint64) string {
	return fmt.Sprintf("%0*X", NameWidth, id)
}

// ParseSegmentID parses a segment filename back into its numeric id. It rejects
// any name whose length isn't exactly NameWidth or that contains non-hex
// characters.
func ParseSegmentID(name string) (uint64, error) {
	if len(name) != NameWidth {
		return 0, fmt.Errorf("segment filename %q must be exactly %d characters", name, NameWidth)
	}
	id, err := strconv.ParseUint(name, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("segment filename %q is not valid hex: %w", name, err)
	}
	return id, nil
}

// ListSegmentIDs returns every segment id found directly inside dir, sorted in
// ascending order. Non-conforming filenames are skipped.
func ListSegmentIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, err := ParseSegmentID(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// LatestSegmentID returns the highest segment id found in dir, and whether any
// segment exists at all.
func LatestSegmentID(dir string) (uint64, bool, error) {
	ids, err := ListSegmentIDs(dir)
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[len(ids)-1], true, nil
}

// SegmentPath joins dir and the rendered filename for id.
func SegmentPath(dir string, id uint64) string {
	return filepath.Join(dir, GenerateName(id))
}

// RemoveSegmentsBelow deletes every segment file in dir whose id is strictly
// less than floor. Missing files are tolerated.
func RemoveSegmentsBelow(dir string, floor uint64) error {
	ids, err := ListSegmentIDs(dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id >= floor {
			continue
		}
		path := SegmentPath(dir, id)
		if err := filesys.DeleteFile(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// TotalFileSize sums the size in bytes of every segment file in dir.
func TotalFileSize(dir string) (int64, error) {
	ids, err := ListSegmentIDs(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		info, err := os.Stat(SegmentPath(dir, id))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
