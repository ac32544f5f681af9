package btree

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// NodeSize is the fixed size, in bytes, of every serialized node block:
// [4-byte BE payload length][payload][zero padding], totaling exactly
// NodeSize bytes.
const NodeSize = 8192

// SegmentSize is the logical size of one index.btree[.N] segment file. Node
// offsets are logical positions in an unbounded address space; offsetToSegment
// maps a logical offset onto the (segment number, offset-within-segment) pair
// that actually back it on disk.
const SegmentSize = 1 * 1024 * 1024 * 1024

// maxNodePayload is the largest payload a node block can hold once the
// length prefix is accounted for.
const maxNodePayload = NodeSize - 4

// corruptNodeSizeLimit is the threshold past which a declared node payload
// length is treated as impossible (and therefore corruption) rather than a
// legitimately oversized node. Real payloads are bounded by maxNodePayload;
// this only guards against reading garbage as a length.
const corruptNodeSizeLimit = 10 * 1024 * 1024

const indexBaseFileName = "index.btree"

func segmentFileName(n int64) string {
	if n == 0 {
		return indexBaseFileName
	}
	return fmt.Sprintf("%s.%d", indexBaseFileName, n)
}

func segmentPath(dir string, n int64) string {
	return filepath.Join(dir, segmentFileName(n))
}

// offsetToSegment maps a logical node offset onto its backing segment number
// and the byte offset within that segment.
func offsetToSegment(offset int64) (segmentNumber, segmentOffset int64) {
	return offset / SegmentSize, offset % SegmentSize
}

// fileCache opens and caches one *os.File per segment number, serializing
// access to each file behind its own mutex so concurrent readers/writers of
// different segments never block each other.
type fileCache struct {
	dir string

	mu    sync.RWMutex
	files map[int64]*cachedFile
}

type cachedFile struct {
	mu   sync.Mutex
	file *os.File
}

func newFileCache(dir string) *fileCache {
	return &fileCache{dir: dir, files: make(map[int64]*cachedFile)}
}

func (fc *fileCache) get(segmentNumber int64) (*cachedFile, error) {
	fc.mu.RLock()
	cf, ok := fc.files[segmentNumber]
	fc.mu.RUnlock()
	if ok {
		return cf, nil
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if cf, ok := fc.files[segmentNumber]; ok {
		return cf, nil
	}

	path := segmentPath(fc.dir, segmentNumber)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "open index segment file").
			WithSegmentID(uint64(segmentNumber))
	}

	cf = &cachedFile{file: f}
	fc.files[segmentNumber] = cf
	return cf, nil
}

// readBlock reads the node block at logical offset and returns its payload
// (the length-prefix and padding stripped off).
func (fc *fileCache) readBlock(offset int64) ([]byte, error) {
	segNum, segOff := offsetToSegment(offset)
	cf, err := fc.get(segNum)
	if err != nil {
		return nil, err
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()

	header := make([]byte, 4)
	if _, err := cf.file.ReadAt(header, segOff); err != nil {
		return nil, barusErrors.NewIndexCorruptionError("ReadNode", err).
			WithSegmentID(uint64(segNum)).WithOffset(offset).
			WithDetail("reason", "offset exceeds file bounds")
	}
	length := int(binary.BigEndian.Uint32(header))
	if length == 0 {
		return nil, barusErrors.NewIndexCorruptionError("ReadNode", nil).
			WithSegmentID(uint64(segNum)).WithOffset(offset).
			WithDetail("reason", "zero declared node size on a used offset")
	}
	if length > corruptNodeSizeLimit {
		return nil, barusErrors.NewIndexCorruptionError("ReadNode", nil).
			WithSegmentID(uint64(segNum)).WithOffset(offset).
			WithNodeSize(length).
			WithDetail("reason", "unreasonably large declared node size")
	}
	if int64(4+length) > NodeSize {
		return nil, barusErrors.NewIndexCorruptionError("ReadNode", nil).
			WithSegmentID(uint64(segNum)).WithOffset(offset).
			WithNodeSize(length).
			WithDetail("reason", "declared node size exceeds block size")
	}

	payload := make([]byte, length)
	if _, err := cf.file.ReadAt(payload, segOff+4); err != nil {
		return nil, barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "read index node payload").
			WithSegmentID(uint64(segNum)).WithOffset(offset)
	}
	return payload, nil
}

// writeBlock writes payload into the fixed-size block at logical offset,
// zero-padding the remainder. payload must be at most maxNodePayload bytes.
func (fc *fileCache) writeBlock(offset int64, payload []byte) error {
	if len(payload) > maxNodePayload {
		return barusErrors.NewIndexNodeTooLargeError(len(payload), maxNodePayload)
	}

	segNum, segOff := offsetToSegment(offset)
	cf, err := fc.get(segNum)
	if err != nil {
		return err
	}

	block := make([]byte, NodeSize)
	binary.BigEndian.PutUint32(block[:4], uint32(len(payload)))
	copy(block[4:], payload)

	cf.mu.Lock()
	defer cf.mu.Unlock()
	if _, err := cf.file.WriteAt(block, segOff); err != nil {
		return barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "write index node block").
			WithSegmentID(uint64(segNum)).WithOffset(offset)
	}
	return nil
}

// close closes every cached segment file handle.
func (fc *fileCache) close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var firstErr error
	for _, cf := range fc.files {
		if err := cf.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	fc.files = make(map[int64]*cachedFile)
	return firstErr
}

// removeAllSegmentFiles deletes every index.btree[.N] file in dir, used by
// self-healing reinitialization when the index is found corrupted.
func removeAllSegmentFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "list index directory").
			WithOperation("Initialize")
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name != indexBaseFileName && filepath.Ext(name) == "" {
			continue
		}
		matches := name == indexBaseFileName
		if !matches {
			base := indexBaseFileName + "."
			if len(name) > len(base) && name[:len(base)] == base {
				matches = true
			}
		}
		if !matches {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "remove index segment file").
				WithOperation("Initialize")
		}
	}
	return nil
}
