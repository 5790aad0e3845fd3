// Package tfrecord reads and writes the TFRecord container format and the
// tf.train.Example messages stored in it.
//
// Each record on disk is framed as
//
//	uint64 length (little endian)
//	uint32 masked crc32c(length)
//	[length]byte data
//	uint32 masked crc32c(data)
package tfrecord

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// ErrCorrupt is returned for truncated records or checksum mismatches.
var ErrCorrupt = errors.New("corrupt tfrecord")

// maxRecordSize guards against allocating absurd buffers for garbage lengths.
const maxRecordSize = 1 << 30

const maskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Reader reads records sequentially.
type Reader struct {
	r        *bufio.Reader
	header   [12]byte
	footer   [4]byte
	verify   bool
	position int64
}

// NewReader returns a Reader verifying both checksums of every record.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<16), verify: true}
}

// SkipChecksums disables crc verification, for trusted local files.
func (r *Reader) SkipChecksums() *Reader {
	r.verify = false
	return r
}

// Next returns the next record payload, or io.EOF after the last one.
func (r *Reader) Next() ([]byte, error) {
	n, err := io.ReadFull(r.r, r.header[:])
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "truncated header at offset %d (%d bytes)", r.position, n)
	}
	length := binary.LittleEndian.Uint64(r.header[:8])
	if r.verify && maskedCRC(r.header[:8]) != binary.LittleEndian.Uint32(r.header[8:]) {
		return nil, errors.Wrapf(ErrCorrupt, "length checksum mismatch at offset %d", r.position)
	}
	if length > maxRecordSize {
		return nil, errors.Wrapf(ErrCorrupt, "record length %d at offset %d too large", length, r.position)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "truncated record at offset %d", r.position)
	}
	if _, err := io.ReadFull(r.r, r.footer[:]); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "truncated footer at offset %d", r.position)
	}
	if r.verify && maskedCRC(data) != binary.LittleEndian.Uint32(r.footer[:]) {
		return nil, errors.Wrapf(ErrCorrupt, "data checksum mismatch at offset %d", r.position)
	}
	r.position += int64(len(r.header)) + int64(length) + int64(len(r.footer))
	return data, nil
}

// Writer appends framed records to an io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record.
func (w *Writer) Write(data []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(data))

	if _, err := w.w.Write(header[:]); err != nil {
		return errors.Wrap(err, "writing record header")
	}
	if _, err := w.w.Write(data); err != nil {
		return errors.Wrap(err, "writing record data")
	}
	if _, err := w.w.Write(footer[:]); err != nil {
		return errors.Wrap(err, "writing record footer")
	}
	return nil
}
