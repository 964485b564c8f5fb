package etl

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BartekS5/pg2es/pkg/backoff"
	"github.com/BartekS5/pg2es/pkg/models"
)

// Loader consumes the document stream in chunks and bulk-writes them to
// the sink. Connectivity failures trigger a full reconnect plus resubmit
// of the buffered chunk; upsert-by-id keeps that duplicate-safe.
type Loader struct {
	Connector SinkConnector
	Index     string
	Schema    []byte
	ChunkSize int
	Retry     backoff.Policy
	Logger    *zap.Logger
}

// Load drains docs and returns the number of documents durably written.
// On a fatal error it returns the count so far together with the error;
// whatever checkpoint the extractor persisted stands.
func (l *Loader) Load(ctx context.Context, docs DocumentIterator) (int, error) {
	sink, err := l.connect(ctx)
	if err != nil {
		return 0, err
	}

	total, rejected := 0, 0
	chunk := make([]models.Document, 0, l.ChunkSize)
	for {
		doc, ok := docs.Next()
		if ok {
			if doc.ID == "" {
				l.Logger.Error("skipping document without id", zap.String("title", doc.Title))
				continue
			}
			chunk = append(chunk, doc)
		}
		if len(chunk) >= l.ChunkSize || (!ok && len(chunk) > 0) {
			n, failures, err := l.submit(ctx, &sink, chunk)
			if err != nil {
				l.Logger.Error("bulk load aborted", zap.Error(err), zap.Int("synced", total))
				return total, err
			}
			total += n
			rejected += len(failures)
			for _, f := range failures {
				l.Logger.Warn("document rejected by sink",
					zap.String("id", f.ID),
					zap.Int("status", f.Status),
					zap.String("reason", f.Reason))
			}
			chunk = chunk[:0]
		}
		if !ok {
			break
		}
	}

	if rejected > 0 {
		l.Logger.Warn("run finished with rejected documents", zap.Int("rejected", rejected))
	}
	return total, nil
}

// submit bulk-writes one chunk under the operation-level retry budget.
// A transient failure reconnects (and re-ensures the index) before the
// next attempt, a 429 retries the chunk on the same connection, anything
// else stops the retries immediately.
func (l *Loader) submit(ctx context.Context, sink *Sink, chunk []models.Document) (int, []BulkFailure, error) {
	var n int
	var failures []BulkFailure
	err := l.Retry.Do(ctx, func() error {
		count, f, err := (*sink).BulkUpsert(ctx, l.Index, chunk)
		switch {
		case err == nil:
		case isBackpressure(err):
			l.Logger.Warn("sink backpressure, retrying chunk", zap.Error(err))
			return err
		case isTransient(err):
			l.Logger.Warn("lost connection with elasticsearch, reconnecting", zap.Error(err))
			fresh, cerr := l.connect(ctx)
			if cerr != nil {
				return backoff.Permanent(cerr)
			}
			*sink = fresh
			return err
		default:
			return backoff.Permanent(err)
		}
		if rejected := countBackpressured(f); rejected > 0 {
			// Resubmitting the whole chunk re-upserts the accepted
			// documents too, which is safe with id-routed actions.
			l.Logger.Warn("sink rejected part of the chunk with 429, retrying",
				zap.Int("rejected", rejected))
			return &statusError{status: http.StatusTooManyRequests, msg: "bulk items rejected: 429 Too Many Requests"}
		}
		n, failures = count, f
		return nil
	})
	return n, failures, err
}

func countBackpressured(failures []BulkFailure) int {
	n := 0
	for _, f := range failures {
		if f.Status == http.StatusTooManyRequests {
			n++
		}
	}
	return n
}

func (l *Loader) connect(ctx context.Context) (Sink, error) {
	sink, err := l.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := sink.EnsureIndex(ctx, l.Index, l.Schema); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	return sink, nil
}
