// Package wal implements the write-ahead log: segment rotation, mmap'd
// preallocated writes, periodic background sync, and crash recovery via
// forward frame scanning. There is always exactly one active segment; a
// frame is visible in the mapping as soon as Append returns, and durable
// once the mapping has been flushed.
package wal

import (
	"encoding/binary"
	"os"

	"github.com/edsrzf/mmap-go"

	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// frameHeaderSize is the width of the big-endian length prefix in front of
// every WAL record frame.
const frameHeaderSize = 4

// segment is a single memory-mapped, preallocated WAL segment file.
type segment struct {
	id   uint64
	path string

	file *os.File
	data mmap.MMap

	// cursor is the byte offset of the next free position in data. It is
	// recomputed by scanning on open, never persisted on its own.
	cursor int64
}

// createSegment creates, preallocates, zero-fills, and mmaps a brand new
// segment file of exactly size bytes.
func createSegment(path string, id uint64, size uint64) (*segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "create WAL segment file").
			WithSegmentID(path)
	}

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "preallocate WAL segment file").
			WithSegmentID(path)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "mmap WAL segment file").
			WithSegmentID(path)
	}

	return &segment{id: id, path: path, file: f, data: data, cursor: 0}, nil
}

// openSegment mmaps an existing segment file and recovers its write cursor by
// scanning forward through frames until it finds a zero-length header (the
// unwritten, still-zero-filled tail) or a truncated/undecodable frame.
func openSegment(path string, id uint64) (*segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "open WAL segment file").
			WithSegmentID(path)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "mmap WAL segment file").
			WithSegmentID(path)
	}

	s := &segment{id: id, path: path, file: f, data: data}
	s.cursor = s.recoverCursor()
	return s, nil
}

// recoverCursor scans frames from the start of the segment and returns the
// offset just past the last well-formed frame.
func (s *segment) recoverCursor() int64 {
	var offset int64
	for {
		if offset+frameHeaderSize > int64(len(s.data)) {
			return offset
		}
		length := binary.BigEndian.Uint32(s.data[offset : offset+frameHeaderSize])
		if length == 0 {
			return offset
		}
		next := offset + frameHeaderSize + int64(length)
		if next > int64(len(s.data)) {
			// Torn write: the header claims more payload than fits. Stop here;
			// this frame never completed.
			return offset
		}
		offset = next
	}
}

// remaining returns how many bytes are free in this segment.
func (s *segment) remaining() int64 {
	return int64(len(s.data)) - s.cursor
}

// append writes one frame (4-byte big-endian length prefix + payload) at the
// current cursor and advances it. The caller must have already checked
// remaining() >= frameHeaderSize+len(payload).
func (s *segment) append(payload []byte) (offset int64, err error) {
	offset = s.cursor
	binary.BigEndian.PutUint32(s.data[offset:offset+frameHeaderSize], uint32(len(payload)))
	copy(s.data[offset+frameHeaderSize:], payload)
	s.cursor = offset + frameHeaderSize + int64(len(payload))
	return offset, nil
}

// sync flushes the mmap'd region back to disk.
func (s *segment) sync() error {
	if err := s.data.Flush(); err != nil {
		return barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "sync WAL segment").
			WithSegmentID(s.path).WithOffset(s.cursor)
	}
	return nil
}

// close unmaps and closes the segment's file handle.
func (s *segment) close() error {
	if err := s.data.Unmap(); err != nil {
		s.file.Close()
		return barusErrors.NewWALError(err, barusErrors.ErrorCodeIO, "unmap WAL segment").
			WithSegmentID(s.path)
	}
	return s.file.Close()
}

// readFrame reads the frame at offset, returning its payload and the offset
// of the following frame. ok is false when offset points at the unwritten
// tail (zero-length header) or a torn frame; both signal "stop scanning".
func (s *segment) readFrame(offset int64) (payload []byte, next int64, ok bool) {
	if offset+frameHeaderSize > int64(len(s.data)) {
		return nil, offset, false
	}
	length := binary.BigEndian.Uint32(s.data[offset : offset+frameHeaderSize])
	if length == 0 {
		return nil, offset, false
	}
	end := offset + frameHeaderSize + int64(length)
	if end > int64(len(s.data)) {
		return nil, offset, false
	}
	payload = make([]byte, length)
	copy(payload, s.data[offset+frameHeaderSize:end])
	return payload, end, true
}
