// Package database bootstraps connections to the source and sink stores,
// retrying unreachable endpoints under a backoff policy.
package database

import (
	"context"
	"fmt"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/BartekS5/pg2es/pkg/backoff"
)

// PostgresConnector acquires a pinged sqlx handle for the source database.
type PostgresConnector struct {
	DSN    string
	Policy backoff.Policy
	Logger *zap.Logger
}

// Connect dials Postgres, retrying with backoff until a ping succeeds or
// the context is cancelled.
func (c *PostgresConnector) Connect(ctx context.Context) (*sqlx.DB, error) {
	var db *sqlx.DB
	err := c.Policy.Do(ctx, func() error {
		d, err := sqlx.Open("postgres", c.DSN)
		if err != nil {
			// A malformed DSN will not fix itself.
			return backoff.Permanent(fmt.Errorf("open postgres: %w", err))
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := d.PingContext(pingCtx); err != nil {
			d.Close()
			c.Logger.Warn("postgres unreachable, retrying", zap.Error(err))
			return err
		}
		db = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Logger.Info("connected to postgres")
	return db, nil
}

// ElasticConnector acquires a pinged Elasticsearch client for the sink.
type ElasticConnector struct {
	Addresses []string
	Policy    backoff.Policy
	Logger    *zap.Logger
}

// Connect builds the client and retries pinging the cluster with backoff
// until it responds or the context is cancelled.
func (c *ElasticConnector) Connect(ctx context.Context) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: c.Addresses})
	if err != nil {
		return nil, fmt.Errorf("build elasticsearch client: %w", err)
	}
	err = c.Policy.Do(ctx, func() error {
		res, err := client.Ping(client.Ping.WithContext(ctx))
		if err != nil {
			c.Logger.Warn("elasticsearch unreachable, retrying", zap.Error(err))
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			c.Logger.Warn("elasticsearch ping rejected, retrying", zap.String("status", res.Status()))
			return fmt.Errorf("elasticsearch ping: %s", res.Status())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect elasticsearch: %w", err)
	}
	c.Logger.Info("connected to elasticsearch")
	return client, nil
}
