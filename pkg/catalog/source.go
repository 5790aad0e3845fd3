package catalog

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/dataset"
	"github.com/menta2k/srgan-data/pkg/types"
)

const defaultPageSize = 256

var _ dataset.Source = (*Source)(nil)

// Source streams catalog records in insertion order, one page at a time.
type Source struct {
	catalog  *Catalog
	pageSize int
	lastID   int64
	page     []types.Record
	ids      []int64
	done     bool
}

// Source returns a dataset source over the catalog.
func (c *Catalog) Source() *Source {
	return &Source{catalog: c, pageSize: defaultPageSize}
}

// WithPageSize sets how many records are fetched per query.
func (s *Source) WithPageSize(n int) *Source {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

func (s *Source) Next(ctx context.Context) (types.Record, error) {
	if len(s.page) == 0 {
		if s.done {
			return types.Record{}, io.EOF
		}
		if err := s.fetch(ctx); err != nil {
			return types.Record{}, err
		}
		if len(s.page) == 0 {
			s.done = true
			return types.Record{}, io.EOF
		}
	}
	rec := s.page[0]
	s.lastID = s.ids[0]
	s.page = s.page[1:]
	s.ids = s.ids[1:]
	return rec, nil
}

func (s *Source) Reset() error {
	s.lastID = 0
	s.page = nil
	s.ids = nil
	s.done = false
	return nil
}

func (s *Source) fetch(ctx context.Context) error {
	rows, err := s.catalog.db.QueryContext(ctx,
		"SELECT id, name, hr_path, lr_path, hr_encoded, lr_encoded FROM records WHERE id > ? ORDER BY id LIMIT ?",
		s.lastID, s.pageSize)
	if err != nil {
		return errors.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var rec types.Record
		if err := rows.Scan(&id, &rec.Name, &rec.HighResPath, &rec.LowResPath, &rec.HighResBytes, &rec.LowResBytes); err != nil {
			return errors.Wrap(err, "failed to scan record")
		}
		s.ids = append(s.ids, id)
		s.page = append(s.page, rec)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to iterate records")
	}
	return nil
}
