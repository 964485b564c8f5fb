package cli

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BartekS5/pg2es/internal/config"
	"github.com/BartekS5/pg2es/internal/etl"
	"github.com/BartekS5/pg2es/pkg/backoff"
	"github.com/BartekS5/pg2es/pkg/database"
	"github.com/BartekS5/pg2es/pkg/state"
)

func runSync(ctx context.Context, opts *SyncOptions) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	batchSize := cfg.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}

	commitMode, err := etl.ParseCommitMode(opts.CommitMode)
	if err != nil {
		return err
	}

	schema, err := os.ReadFile(opts.SchemaFile)
	if err != nil {
		return fmt.Errorf("failed to read index schema: %w", err)
	}

	store := state.NewStore(opts.StateFile)

	extractor := &etl.Extractor{
		Connector: &etl.PostgresSourceConnector{
			Connector: &database.PostgresConnector{
				DSN:    cfg.PostgresDSN(),
				Policy: backoff.ConnectPolicy(),
				Logger: logger,
			},
		},
		State:      store,
		BatchSize:  batchSize,
		CommitMode: commitMode,
		Logger:     logger,
	}
	loader := &etl.Loader{
		Connector: &etl.ElasticSinkConnector{
			Connector: &database.ElasticConnector{
				Addresses: []string{cfg.ElasticAddress()},
				Policy:    backoff.ConnectPolicy(),
				Logger:    logger,
			},
			Logger: logger,
		},
		Index:     opts.Index,
		Schema:    schema,
		ChunkSize: batchSize,
		Retry:     backoff.BulkPolicy(),
		Logger:    logger,
	}

	pipeline := &etl.Pipeline{
		Extractor:   extractor,
		Transformer: &etl.Transformer{},
		Loader:      loader,
		Logger:      logger,
	}

	if _, err := pipeline.Run(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("PRETTY_LOGS") == "true" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
