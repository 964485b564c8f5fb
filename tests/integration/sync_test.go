package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BartekS5/pg2es/internal/config"
	"github.com/BartekS5/pg2es/internal/etl"
	"github.com/BartekS5/pg2es/pkg/backoff"
	"github.com/BartekS5/pg2es/pkg/database"
	"github.com/BartekS5/pg2es/pkg/models"
	"github.com/BartekS5/pg2es/pkg/state"
)

// TestIncrementalSync runs one real catch-up pass against live Postgres
// and Elasticsearch instances. It expects the content schema to be in
// place (see the project's docker-compose setup) and is skipped unless
// PG2ES_INTEGRATION is set.
func TestIncrementalSync(t *testing.T) {
	if os.Getenv("PG2ES_INTEGRATION") == "" {
		t.Skip("set PG2ES_INTEGRATION=1 with live Postgres and Elasticsearch to run")
	}

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	schema, err := os.ReadFile(filepath.Join("..", "..", "configs", "es_schema.json"))
	require.NoError(t, err)

	logger := zap.NewNop()
	store := state.NewStore(filepath.Join(t.TempDir(), "etl_state.json"))

	build := func() *etl.Pipeline {
		return &etl.Pipeline{
			Extractor: &etl.Extractor{
				Connector: &etl.PostgresSourceConnector{
					Connector: &database.PostgresConnector{
						DSN:    cfg.PostgresDSN(),
						Policy: backoff.ConnectPolicy(),
						Logger: logger,
					},
				},
				State:     store,
				BatchSize: cfg.BatchSize,
				Logger:    logger,
			},
			Transformer: &etl.Transformer{},
			Loader: &etl.Loader{
				Connector: &etl.ElasticSinkConnector{
					Connector: &database.ElasticConnector{
						Addresses: []string{cfg.ElasticAddress()},
						Policy:    backoff.ConnectPolicy(),
						Logger:    logger,
					},
					Logger: logger,
				},
				Index:     "movies",
				Schema:    schema,
				ChunkSize: cfg.BatchSize,
				Retry:     backoff.BulkPolicy(),
				Logger:    logger,
			},
		}
	}

	p := build()
	p.Logger = logger

	count, err := p.Run(context.Background())
	require.NoError(t, err)

	if count > 0 {
		wm, ok := store.Get(state.LatestUpdateKey)
		require.True(t, ok, "watermark must be persisted after a non-empty run")
		_, err := models.Watermark(wm).Time()
		assert.NoError(t, err)
	}

	// A second pass over an unchanged source must find nothing new and
	// leave the checkpoint where it was.
	before, _ := store.Get(state.LatestUpdateKey)
	p2 := build()
	p2.Logger = logger
	count, err = p2.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	after, _ := store.Get(state.LatestUpdateKey)
	assert.Equal(t, before, after)
}
