package disktable

import (
	"os"

	"github.com/myyrakle/barus/pkg/codec"
	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// ScannedRecord is one non-empty frame recovered from a segment file scan.
type ScannedRecord struct {
	Position codec.Position
	Flag     RecordFlag
	Key      string
	Value    string
}

// scanSegmentPages walks file page by page (each page pageSize bytes long, the
// last page possibly partial if fileSize isn't a multiple of pageSize) and
// calls visit for every record whose flag isn't FlagNothing. Scanning a page
// stops at the first FlagNothing byte or any frame that doesn't fully fit in
// the remaining page space, since the writer never lets a record span a page
// boundary; scanning then continues with the next page.
//
// It returns the (pageIndex, offset) a writer should resume appending at: the
// gap in the last page, or the start of the page after it if the last page
// was completely full.
func scanSegmentPages(file *os.File, segmentID uint64, fileSize, pageSize int64, visit func(ScannedRecord) error) (resumePageIndex, resumeOffset int64, err error) {
	numPages := fileSize / pageSize

	for pageIndex := int64(0); pageIndex < numPages; pageIndex++ {
		base := pageIndex * pageSize
		offsetInPage := int64(0)
		resumePageIndex, resumeOffset = pageIndex+1, base+pageSize

		for {
			if offsetInPage+int64(frameHeaderSize) > pageSize {
				break
			}

			header := make([]byte, frameHeaderSize)
			if _, err := file.ReadAt(header, base+offsetInPage); err != nil {
				return 0, 0, barusErrors.NewStorageError(err, barusErrors.ErrorCodeHeaderReadFailure, "read record frame header").
					WithSegmentID(int(segmentID)).WithOffset(int(base + offsetInPage))
			}

			flag, length, err := decodeFrameHeader(header)
			if err != nil {
				return 0, 0, err
			}
			if flag == FlagNothing {
				resumePageIndex, resumeOffset = pageIndex, base+offsetInPage
				break
			}

			total := frameSize(int(length))
			if offsetInPage+total > pageSize {
				break
			}

			payload := make([]byte, length)
			if _, err := file.ReadAt(payload, base+offsetInPage+int64(frameHeaderSize)); err != nil {
				return 0, 0, barusErrors.NewStorageError(err, barusErrors.ErrorCodePayloadReadFailure, "read record payload").
					WithSegmentID(int(segmentID)).WithOffset(int(base + offsetInPage))
			}

			key, value, err := decodeRecordPayload(payload)
			if err != nil {
				return 0, 0, err
			}

			if err := visit(ScannedRecord{
				Position: codec.Position{SegmentID: segmentID, Offset: base + offsetInPage},
				Flag:     flag,
				Key:      key,
				Value:    value,
			}); err != nil {
				return 0, 0, err
			}

			offsetInPage += total
		}
	}

	return resumePageIndex, resumeOffset, nil
}
