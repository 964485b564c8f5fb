package etl

import (
	"context"

	"go.uber.org/zap"

	"github.com/BartekS5/pg2es/pkg/models"
	"github.com/BartekS5/pg2es/pkg/state"
)

// Extractor produces the incremental batch stream. Each reconnect cycle
// re-reads the persisted watermark, so a restart or reconnect resumes from
// the last committed point.
type Extractor struct {
	Connector  SourceConnector
	State      *state.Store
	BatchSize  int
	CommitMode CommitMode
	Logger     *zap.Logger
}

// Extract returns a lazy, pull-driven stream of batches. No query runs
// until the first Next call.
func (e *Extractor) Extract(ctx context.Context) *BatchStream {
	return &BatchStream{ext: e, ctx: ctx}
}

// BatchStream yields batches of film rows ordered by update time. In
// CommitAfterExtract mode the watermark of a yielded batch is persisted on
// the following pull, i.e. once the consumer has moved past it. In
// CommitAfterLoad mode nothing is persisted until Commit is called.
type BatchStream struct {
	ext     *Extractor
	ctx     context.Context
	source  Source
	cursor  Cursor
	pending models.Watermark // yielded but not yet persisted
	latest  models.Watermark // highest watermark handed downstream
	done    bool
	err     error
}

// Next returns the next batch, or ok=false on exhaustion or fatal error.
func (s *BatchStream) Next() ([]models.FilmworkRow, bool) {
	if s.done {
		return nil, false
	}
	if err := s.commitPending(); err != nil {
		s.fail(err)
		return nil, false
	}
	for {
		if s.cursor == nil {
			if err := s.connect(); err != nil {
				if isTransient(err) {
					s.ext.Logger.Warn("lost connection with postgres, reconnecting", zap.Error(err))
					s.teardown()
					continue
				}
				s.fail(err)
				return nil, false
			}
		}
		batch, err := s.cursor.Fetch(s.ext.BatchSize)
		if err != nil {
			if isTransient(err) {
				s.ext.Logger.Warn("lost connection with postgres, reconnecting", zap.Error(err))
				s.teardown()
				continue
			}
			s.fail(err)
			return nil, false
		}
		if len(batch) == 0 {
			s.finish()
			return nil, false
		}
		wm := batch[len(batch)-1].Watermark()
		s.latest = wm
		if s.ext.CommitMode == CommitAfterExtract {
			s.pending = wm
		}
		s.ext.Logger.Info("batch extracted",
			zap.Int("rows", len(batch)),
			zap.String("watermark", wm.String()))
		return batch, true
	}
}

// Close releases the source connection of a stream abandoned before
// exhaustion, e.g. when the loader fails mid-run. Safe to call twice.
func (s *BatchStream) Close() {
	s.teardown()
	s.done = true
}

// Err reports the fatal error that ended the stream early, if any.
func (s *BatchStream) Err() error {
	return s.err
}

// Latest is the highest watermark handed downstream so far.
func (s *BatchStream) Latest() models.Watermark {
	return s.latest
}

// Commit persists the highest watermark handed downstream. The pipeline
// calls it after a confirmed load when running in CommitAfterLoad mode.
func (s *BatchStream) Commit() error {
	if s.latest == "" {
		return nil
	}
	return s.ext.State.Set(state.LatestUpdateKey, s.latest.String())
}

// connect re-reads the watermark and opens a fresh query cursor.
func (s *BatchStream) connect() error {
	since := models.EpochWatermark
	if v, ok := s.ext.State.Get(state.LatestUpdateKey); ok {
		since = models.Watermark(v)
	}
	src, err := s.ext.Connector.Connect(s.ctx)
	if err != nil {
		return err
	}
	cur, err := src.Query(s.ctx, since)
	if err != nil {
		src.Close()
		return err
	}
	s.source = src
	s.cursor = cur
	s.ext.Logger.Info("extraction started", zap.String("since", since.String()))
	return nil
}

func (s *BatchStream) commitPending() error {
	if s.pending == "" {
		return nil
	}
	if err := s.ext.State.Set(state.LatestUpdateKey, s.pending.String()); err != nil {
		return err
	}
	s.ext.Logger.Info("checkpoint updated", zap.String("watermark", s.pending.String()))
	s.pending = ""
	return nil
}

func (s *BatchStream) fail(err error) {
	s.ext.Logger.Error("extraction failed", zap.Error(err))
	s.err = err
	s.finish()
}

func (s *BatchStream) finish() {
	s.teardown()
	s.done = true
}

func (s *BatchStream) teardown() {
	if s.cursor != nil {
		s.cursor.Close()
		s.cursor = nil
	}
	if s.source != nil {
		s.source.Close()
		s.source = nil
	}
}
