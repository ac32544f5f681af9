// Package btree implements the file-backed B-tree index that maps a table's
// keys to their disk-table record positions. Nodes live in fixed 8KiB blocks
// spread across 1GiB segment files (index.btree, index.btree.1, ...), with
// node payloads (de)serialized through pkg/codec. Splits are mid-point and
// propagate upward; a root split grows the tree by one level.
//
// Concurrency is coarser than a per-node-write scheme would allow: a single
// reader/writer lock serializes Insert/Delete against each other and against
// Find, while the underlying fileCache still gives every open segment file
// its own mutex so unrelated tables' indices never contend. See DESIGN.md
// for why this tradeoff was made.
package btree

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
	"github.com/myyrakle/barus/pkg/filesys"
)

// Config bundles everything Initialize needs to bring up an Index.
type Config struct {
	// Directory is where index.metadata and index.btree[.N] live.
	Directory string

	// Order is the maximum number of children an internal node may hold
	// before it splits. Defaults to 64 if zero.
	Order int

	Codec  codec.Codec
	Logger *zap.SugaredLogger
}

// Index is one table's file-backed B-tree: key -> disk-table record position.
type Index struct {
	dir    string
	codec  codec.Codec
	logger *zap.SugaredLogger
	order  int

	files *fileCache

	mu   sync.RWMutex
	meta *metadata
}

// Initialize opens dir (creating it if absent), loads or creates its
// metadata, and self-heals by wiping the index if the persisted state is
// inconsistent or the root node can't be read back.
func Initialize(cfg Config) (*Index, error) {
	order := cfg.Order
	if order == 0 {
		order = 64
	}

	if err := filesys.CreateDir(cfg.Directory, 0755, true); err != nil {
		return nil, barusErrors.NewIndexError(err, barusErrors.ErrorCodeIO, "create index directory").
			WithOperation("Initialize")
	}

	idx := &Index{
		dir:    cfg.Directory,
		codec:  cfg.Codec,
		logger: cfg.Logger,
		order:  order,
		files:  newFileCache(cfg.Directory),
	}

	meta, err := loadMetadata(cfg.Directory)
	if err != nil {
		return nil, err
	}

	if meta == nil {
		meta = defaultMetadata(order)
		if err := saveMetadata(cfg.Directory, meta); err != nil {
			return nil, err
		}
		idx.meta = meta
		return idx, nil
	}

	if !meta.consistent() {
		return idx.reinitialize(order, "metadata root_position/next_offset mismatch")
	}

	if meta.RootPosition != nil {
		if _, err := idx.readNodeFrom(meta.RootPosition.Offset); err != nil {
			return idx.reinitialize(order, err.Error())
		}
	}

	idx.meta = meta
	return idx, nil
}

// reinitialize deletes every index.btree[.N] file and starts fresh. The
// canonical data lives in the disk-table segments, so losing the index costs
// a rebuild, not data.
func (idx *Index) reinitialize(order int, reason string) (*Index, error) {
	if idx.logger != nil {
		idx.logger.Warnw("B-tree index corrupted, reinitializing", "directory", idx.dir, "reason", reason)
	}
	if err := idx.files.close(); err != nil {
		return nil, err
	}
	idx.files = newFileCache(idx.dir)

	if err := removeAllSegmentFiles(idx.dir); err != nil {
		return nil, err
	}

	fresh := defaultMetadata(order)
	if err := saveMetadata(idx.dir, fresh); err != nil {
		return nil, err
	}
	idx.meta = fresh
	return idx, nil
}

func (idx *Index) readNodeFrom(offset int64) (*codec.BTreeNode, error) {
	payload, err := idx.files.readBlock(offset)
	if err != nil {
		return nil, err
	}
	n, err := idx.codec.DecodeBTreeNode(payload)
	if err != nil {
		return nil, barusErrors.NewIndexDecodeError(err, 0, offset)
	}
	return n, nil
}

func (idx *Index) writeNodeAt(offset int64, n *codec.BTreeNode) error {
	size := idx.codec.SizeBTreeNode(n)
	if size > maxNodePayload {
		return barusErrors.NewIndexNodeTooLargeError(size, maxNodePayload)
	}
	buf := make([]byte, size)
	if _, err := idx.codec.EncodeBTreeNode(buf, n); err != nil {
		return err
	}
	return idx.files.writeBlock(offset, buf)
}

// allocate reserves the next node-sized offset. The caller must hold idx.mu
// for writing.
func (idx *Index) allocate() int64 {
	offset := idx.meta.NextOffset
	idx.meta.NextOffset += NodeSize
	return offset
}

func (idx *Index) persistMeta() error {
	return saveMetadata(idx.dir, idx.meta)
}

// childIndex implements the shared descent rule: find the smallest i such
// that entries[i].Key > key. The child to follow is leftmost when i==0, or
// entries[i-1]'s child otherwise (which also covers "no such i", i.e.
// i==len(entries), by naturally resolving to the last entry's child).
func childIndex(entries []codec.BTreeEntry, key string) int {
	return sort.Search(len(entries), func(i int) bool {
		return entries[i].Key > key
	})
}

func childOf(node *codec.BTreeNode, i int) codec.Position {
	if i == 0 {
		return node.LeftmostChild
	}
	return node.Entries[i-1].Position
}

// Find returns the record position stored for key, or (Position{}, false) if
// the index has no entry for it.
func (idx *Index) Find(key string) (codec.Position, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.meta.RootPosition == nil {
		return codec.Position{}, false, nil
	}

	offset := idx.meta.RootPosition.Offset
	for {
		node, err := idx.readNodeFrom(offset)
		if err != nil {
			return codec.Position{}, false, err
		}
		if node.Leaf {
			i := sort.Search(len(node.Entries), func(i int) bool { return node.Entries[i].Key >= key })
			if i < len(node.Entries) && node.Entries[i].Key == key {
				return node.Entries[i].Position, true, nil
			}
			return codec.Position{}, false, nil
		}
		i := childIndex(node.Entries, key)
		offset = childOf(node, i).Offset
	}
}

// Insert adds or overwrites the entry for key, splitting nodes bottom-up as
// needed. An empty tree gets its first leaf; a root split grows the tree by
// one level.
func (idx *Index) Insert(key string, pos codec.Position) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.meta.RootPosition == nil {
		offset := idx.allocate()
		leaf := &codec.BTreeNode{Leaf: true, Entries: []codec.BTreeEntry{{Key: key, Position: pos}}}
		if err := idx.writeNodeAt(offset, leaf); err != nil {
			return err
		}
		idx.meta.RootPosition = &codec.Position{Offset: offset}
		return idx.persistMeta()
	}

	splitKey, newOffset, didSplit, err := idx.insertInto(idx.meta.RootPosition.Offset, key, pos)
	if err != nil {
		return err
	}
	if !didSplit {
		return idx.persistMeta()
	}

	// The root split: grow the tree by one level.
	newRootOffset := idx.allocate()
	newRoot := &codec.BTreeNode{
		Leaf:          false,
		LeftmostChild: *idx.meta.RootPosition,
		Entries:       []codec.BTreeEntry{{Key: splitKey, Position: codec.Position{Offset: newOffset}}},
	}
	if err := idx.writeNodeAt(newRootOffset, newRoot); err != nil {
		return err
	}
	idx.meta.RootPosition = &codec.Position{Offset: newRootOffset}
	return idx.persistMeta()
}

// insertInto recursively descends to the leaf owning key, inserts or
// overwrites it, and propagates any split back up to the caller.
func (idx *Index) insertInto(offset int64, key string, pos codec.Position) (splitKey string, newOffset int64, didSplit bool, err error) {
	node, err := idx.readNodeFrom(offset)
	if err != nil {
		return "", 0, false, err
	}

	if node.Leaf {
		i := sort.Search(len(node.Entries), func(i int) bool { return node.Entries[i].Key >= key })
		switch {
		case i < len(node.Entries) && node.Entries[i].Key == key:
			node.Entries[i].Position = pos
		default:
			node.Entries = append(node.Entries, codec.BTreeEntry{})
			copy(node.Entries[i+1:], node.Entries[i:])
			node.Entries[i] = codec.BTreeEntry{Key: key, Position: pos}
		}

		if len(node.Entries) < idx.order-1 {
			return "", 0, false, idx.writeNodeAt(offset, node)
		}
		return idx.splitLeaf(offset, node)
	}

	i := childIndex(node.Entries, key)
	childOffset := childOf(node, i).Offset

	childSplitKey, childNewOffset, childDidSplit, err := idx.insertInto(childOffset, key, pos)
	if err != nil {
		return "", 0, false, err
	}
	if !childDidSplit {
		return "", 0, false, nil
	}

	newEntry := codec.BTreeEntry{Key: childSplitKey, Position: codec.Position{Offset: childNewOffset}}
	node.Entries = append(node.Entries, codec.BTreeEntry{})
	copy(node.Entries[i+1:], node.Entries[i:])
	node.Entries[i] = newEntry

	if len(node.Entries) < idx.order-1 {
		return "", 0, false, idx.writeNodeAt(offset, node)
	}
	return idx.splitInternal(offset, node)
}

// splitLeaf splits an overfull leaf in place: the left half stays at offset,
// the right half (entries[mid:]) moves to a freshly allocated node, and the
// right half's first key is promoted as the separator.
func (idx *Index) splitLeaf(offset int64, node *codec.BTreeNode) (splitKey string, newOffset int64, didSplit bool, err error) {
	mid := len(node.Entries) / 2
	splitKey = node.Entries[mid].Key

	right := &codec.BTreeNode{Leaf: true, Entries: append([]codec.BTreeEntry{}, node.Entries[mid:]...)}
	node.Entries = node.Entries[:mid]

	newOffset = idx.allocate()
	if err := idx.writeNodeAt(offset, node); err != nil {
		return "", 0, false, err
	}
	if err := idx.writeNodeAt(newOffset, right); err != nil {
		return "", 0, false, err
	}
	return splitKey, newOffset, true, nil
}

// splitInternal splits an overfull internal node. The promoted entry (at
// mid) is removed from both halves; its child becomes the new node's
// leftmost_child, and entries after it move to the new node unchanged. The
// original node's own leftmost_child is untouched.
func (idx *Index) splitInternal(offset int64, node *codec.BTreeNode) (splitKey string, newOffset int64, didSplit bool, err error) {
	mid := len(node.Entries) / 2
	splitKey = node.Entries[mid].Key

	right := &codec.BTreeNode{
		Leaf:          false,
		LeftmostChild: node.Entries[mid].Position,
		Entries:       append([]codec.BTreeEntry{}, node.Entries[mid+1:]...),
	}
	node.Entries = node.Entries[:mid]

	newOffset = idx.allocate()
	if err := idx.writeNodeAt(offset, node); err != nil {
		return "", 0, false, err
	}
	if err := idx.writeNodeAt(newOffset, right); err != nil {
		return "", 0, false, err
	}
	return splitKey, newOffset, true, nil
}

// Delete removes key's entry from its leaf, if present. This never rebalances
// or reclaims nodes: the index grows monotonically and sparse leaves are left
// in place.
func (idx *Index) Delete(key string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.meta.RootPosition == nil {
		return nil
	}

	offset := idx.meta.RootPosition.Offset
	for {
		node, err := idx.readNodeFrom(offset)
		if err != nil {
			return err
		}
		if node.Leaf {
			i := sort.Search(len(node.Entries), func(i int) bool { return node.Entries[i].Key >= key })
			if i < len(node.Entries) && node.Entries[i].Key == key {
				node.Entries = append(node.Entries[:i], node.Entries[i+1:]...)
				return idx.writeNodeAt(offset, node)
			}
			return nil
		}
		i := childIndex(node.Entries, key)
		offset = childOf(node, i).Offset
	}
}

// Update is defined as delete-then-insert.
func (idx *Index) Update(key string, pos codec.Position) error {
	if err := idx.Delete(key); err != nil {
		return err
	}
	return idx.Insert(key, pos)
}

// Close closes every open segment file handle.
func (idx *Index) Close() error {
	return idx.files.close()
}
