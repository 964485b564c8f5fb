package etl

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/BartekS5/pg2es/pkg/models"
	"github.com/BartekS5/pg2es/pkg/state"
)

func newTestState(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(filepath.Join(t.TempDir(), "etl_state.json"))
}

func rowAt(id string, updated time.Time) models.FilmworkRow {
	return models.FilmworkRow{ID: id, Title: "Film " + id, LatestUpdate: updated}
}

// fakeCursor serves its rows in fetch-sized slices. A non-nil err is
// returned once in place of the fetch that would otherwise come up empty.
type fakeCursor struct {
	rows   []models.FilmworkRow
	err    error
	closed bool
}

func (c *fakeCursor) Fetch(n int) ([]models.FilmworkRow, error) {
	if len(c.rows) == 0 {
		if c.err != nil {
			e := c.err
			c.err = nil
			return nil, e
		}
		return nil, nil
	}
	if n > len(c.rows) {
		n = len(c.rows)
	}
	out := c.rows[:n]
	c.rows = c.rows[n:]
	return out, nil
}

func (c *fakeCursor) Close() error {
	c.closed = true
	return nil
}

// fakeSource answers one query with its scripted cursor. queryErr, when
// set, fails the first query instead.
type fakeSource struct {
	cursor   *fakeCursor
	queryErr error
	since    []models.Watermark
	closed   bool
}

func (s *fakeSource) Query(_ context.Context, since models.Watermark) (Cursor, error) {
	s.since = append(s.since, since)
	if s.queryErr != nil {
		e := s.queryErr
		s.queryErr = nil
		return nil, e
	}
	return s.cursor, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeSourceConnector hands out its sources in order.
type fakeSourceConnector struct {
	sources  []*fakeSource
	err      error
	connects int
}

func (c *fakeSourceConnector) Connect(context.Context) (Source, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.connects >= len(c.sources) {
		return nil, errors.New("fake connector exhausted")
	}
	s := c.sources[c.connects]
	c.connects++
	return s, nil
}

// fakeSink records ensure/bulk calls. The errs script fails bulk calls
// one by one before normal behavior resumes; failures are reported once
// on the next successful bulk.
type fakeSink struct {
	ensured  []string
	bulks    [][]models.Document
	errs     []error
	failures []BulkFailure
}

func (s *fakeSink) EnsureIndex(_ context.Context, index string, _ []byte) error {
	s.ensured = append(s.ensured, index)
	return nil
}

func (s *fakeSink) BulkUpsert(_ context.Context, _ string, docs []models.Document) (int, []BulkFailure, error) {
	if len(s.errs) > 0 {
		e := s.errs[0]
		s.errs = s.errs[1:]
		if e != nil {
			return 0, nil, e
		}
	}
	s.bulks = append(s.bulks, append([]models.Document(nil), docs...))
	f := s.failures
	s.failures = nil
	return len(docs) - len(f), f, nil
}

type fakeSinkConnector struct {
	sinks    []*fakeSink
	err      error
	connects int
}

func (c *fakeSinkConnector) Connect(context.Context) (Sink, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.connects >= len(c.sinks) {
		return nil, errors.New("fake connector exhausted")
	}
	s := c.sinks[c.connects]
	c.connects++
	return s, nil
}

// sliceDocs is a restartless in-memory document iterator.
type sliceDocs struct {
	docs []models.Document
	i    int
}

func (s *sliceDocs) Next() (models.Document, bool) {
	if s.i >= len(s.docs) {
		return models.Document{}, false
	}
	d := s.docs[s.i]
	s.i++
	return d, true
}
