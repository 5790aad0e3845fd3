package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/menta2k/srgan-data/internal/utils"
	"github.com/menta2k/srgan-data/pkg/tfrecord"
	"github.com/menta2k/srgan-data/pkg/types"
)

// ErrEmptySource is returned when a full pass over a source yields no records.
var ErrEmptySource = errors.New("source yielded no records")

// Source is a restartable sequence of records. Next returns io.EOF at the end
// of a pass and Reset rewinds to the first record. A Source is driven by a
// single goroutine.
type Source interface {
	Next(ctx context.Context) (types.Record, error)
	Reset() error
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []types.Record
	pos     int
}

// NewSliceSource creates a source over records.
func NewSliceSource(records ...types.Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) (types.Record, error) {
	if err := ctx.Err(); err != nil {
		return types.Record{}, err
	}
	if s.pos >= len(s.records) {
		return types.Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *SliceSource) Reset() error {
	s.pos = 0
	return nil
}

// Len is the number of records in one pass.
func (s *SliceSource) Len() int {
	return len(s.records)
}

// TFRecordSource reads tf.train.Example records from one or more TFRecord
// files, one file after another in sorted order.
type TFRecordSource struct {
	files   []string
	verify  bool
	index   int
	current *os.File
	reader  *tfrecord.Reader
}

// NewTFRecordSource expands the glob patterns into the list of files to read.
func NewTFRecordSource(patterns ...string) (*TFRecordSource, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad pattern %q", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no tfrecord files given")
	}
	sort.Strings(files)
	return &TFRecordSource{files: files, verify: true}, nil
}

// SkipChecksums disables crc verification on every file read afterwards.
func (s *TFRecordSource) SkipChecksums() *TFRecordSource {
	s.verify = false
	return s
}

// Files returns the resolved file list.
func (s *TFRecordSource) Files() []string {
	return append([]string(nil), s.files...)
}

func (s *TFRecordSource) Next(ctx context.Context) (types.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return types.Record{}, err
		}
		if s.reader == nil {
			if s.index >= len(s.files) {
				return types.Record{}, io.EOF
			}
			if err := s.open(s.files[s.index]); err != nil {
				return types.Record{}, err
			}
		}

		data, err := s.reader.Next()
		if err == io.EOF {
			s.closeCurrent()
			s.index++
			continue
		}
		if err != nil {
			return types.Record{}, errors.Wrapf(err, "reading %s", s.files[s.index])
		}
		ex, err := tfrecord.UnmarshalExample(data)
		if err != nil {
			return types.Record{}, errors.Wrapf(ErrDecode, "%s: %v", s.files[s.index], err)
		}
		return RecordFromExample(ex), nil
	}
}

func (s *TFRecordSource) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	klog.V(2).Infof("reading tfrecord file %s", path)
	s.current = f
	s.reader = tfrecord.NewReader(f)
	if !s.verify {
		s.reader.SkipChecksums()
	}
	return nil
}

func (s *TFRecordSource) closeCurrent() {
	if s.current != nil {
		s.current.Close()
	}
	s.current = nil
	s.reader = nil
}

func (s *TFRecordSource) Reset() error {
	s.closeCurrent()
	s.index = 0
	return nil
}

// Close releases the open file, if any.
func (s *TFRecordSource) Close() error {
	s.closeCurrent()
	return nil
}

// DirSource pairs the images of a high-res and a low-res directory by name
// and serves them as path records.
type DirSource struct {
	*SliceSource
	unmatched []string
}

// NewDirSource scans both directories once.
func NewDirSource(highResDir, lowResDir string) (*DirSource, error) {
	pairs, unmatched, err := utils.PairImageFiles(highResDir, lowResDir)
	if err != nil {
		return nil, errors.Wrap(err, "pairing image directories")
	}
	if len(unmatched) > 0 {
		klog.Warningf("%d images in %s / %s have no counterpart and are ignored", len(unmatched), highResDir, lowResDir)
	}
	records := make([]types.Record, len(pairs))
	for i, p := range pairs {
		records[i] = types.Record{Name: p.Name, HighResPath: p.HighRes, LowResPath: p.LowRes}
	}
	return &DirSource{SliceSource: NewSliceSource(records...), unmatched: unmatched}, nil
}

// Unmatched lists the images that were skipped for lack of a counterpart.
func (s *DirSource) Unmatched() []string {
	return append([]string(nil), s.unmatched...)
}
