package etl

import (
	"context"

	"github.com/BartekS5/pg2es/pkg/models"
)

// Source is an established connection to the relational store.
type Source interface {
	// Query runs the incremental query for everything updated strictly
	// after since, ordered by derived update time ascending.
	Query(ctx context.Context, since models.Watermark) (Cursor, error)
	Close() error
}

// Cursor fetches rows from an executed query in bounded batches.
type Cursor interface {
	// Fetch returns up to n rows; an empty slice means exhaustion.
	Fetch(n int) ([]models.FilmworkRow, error)
	Close() error
}

// SourceConnector acquires a Source, retrying unreachable endpoints.
type SourceConnector interface {
	Connect(ctx context.Context) (Source, error)
}

// Sink is an established client for the search store.
type Sink interface {
	// EnsureIndex creates the target index from the schema blob; an
	// already existing index is not an error.
	EnsureIndex(ctx context.Context, index string, schema []byte) error
	// BulkUpsert writes docs keyed by their ID in one request and reports
	// the success count plus per-item rejections.
	BulkUpsert(ctx context.Context, index string, docs []models.Document) (int, []BulkFailure, error)
}

// SinkConnector acquires a Sink, retrying unreachable endpoints.
type SinkConnector interface {
	Connect(ctx context.Context) (Sink, error)
}

// BulkFailure is one document rejected inside an otherwise accepted bulk
// request.
type BulkFailure struct {
	ID     string
	Status int
	Reason string
}

// BatchIterator is the pull contract between extractor and transformer.
type BatchIterator interface {
	Next() ([]models.FilmworkRow, bool)
}

// DocumentIterator is the pull contract between transformer and loader.
type DocumentIterator interface {
	Next() (models.Document, bool)
}
