package disktable

import (
	"encoding/binary"

	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// RecordFlag is the single byte at the front of every record frame that
// determines the frame's validity.
type RecordFlag byte

const (
	// FlagNothing marks unwritten, zero-filled space. Scanning stops at the
	// first FlagNothing byte within a page.
	FlagNothing RecordFlag = 0
	// FlagAlive marks a live record.
	FlagAlive RecordFlag = 1
	// FlagDeleted marks a record superseded by a later write or an explicit
	// delete.
	FlagDeleted RecordFlag = 2
)

// frameHeaderSize is the flag byte plus the big-endian payload length.
const frameHeaderSize = 1 + 4

func frameSize(payloadLen int) int64 {
	return int64(frameHeaderSize + payloadLen)
}

// encodeFrame writes [flag][len_be_u32][payload] into buf, which must be at
// least frameHeaderSize+len(payload) bytes.
func encodeFrame(buf []byte, flag RecordFlag, payload []byte) {
	buf[0] = byte(flag)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
}

// decodeFrameHeader reads the flag and declared payload length from the front
// of b. A flag byte outside {FlagNothing, FlagAlive, FlagDeleted} means the
// frame wasn't written by this format at all, which the writer never
// produces on its own and so is treated as segment corruption rather than a
// short read.
func decodeFrameHeader(b []byte) (RecordFlag, uint32, error) {
	if len(b) < frameHeaderSize {
		return 0, 0, barusErrors.NewStorageError(nil, barusErrors.ErrorCodeHeaderReadFailure, "short record frame header").
			WithDetail("available", len(b))
	}
	flag := RecordFlag(b[0])
	if flag != FlagNothing && flag != FlagAlive && flag != FlagDeleted {
		return 0, 0, barusErrors.NewStorageError(nil, barusErrors.ErrorCodeSegmentCorrupted, "unrecognized record frame flag").
			WithDetail("flag", b[0])
	}
	return flag, binary.BigEndian.Uint32(b[1:5]), nil
}

func encodeRecordPayload(key, value string) ([]byte, error) {
	c := codec.NewBinaryCodec()
	rec := &codec.DiskRecord{Key: key, Value: value}
	buf := make([]byte, c.SizeDiskRecord(rec))
	if _, err := c.EncodeDiskRecord(buf, rec); err != nil {
		return nil, barusErrors.NewEncodeError(err, "disktable_record")
	}
	return buf, nil
}

func decodeRecordPayload(b []byte) (key, value string, err error) {
	c := codec.NewBinaryCodec()
	rec, err := c.DecodeDiskRecord(b)
	if err != nil {
		return "", "", barusErrors.NewDecodeError(err, "disktable_record")
	}
	return rec.Key, rec.Value, nil
}
