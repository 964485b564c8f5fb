package etl

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/BartekS5/pg2es/pkg/database"
	"github.com/BartekS5/pg2es/pkg/models"
)

// incrementalQuery aggregates one film per row with its people and genres
// as jsonb arrays. latest_update is the greatest of the three updated_at
// timestamps and doubles as ordering key and watermark source. The single
// watermark parameter is applied to all three predicates.
const incrementalQuery = `
    SELECT
        fw.id, fw.rating, fw.title, fw.description,
        jsonb_agg(jsonb_build_object('id', p.id, 'full_name', p.full_name, 'role', pfw.role)) AS persons,
        jsonb_agg(jsonb_build_object('id', g.id, 'genre', g.name)) AS genres,
        GREATEST(fw.updated_at, MAX(p.updated_at), MAX(g.updated_at)) AS latest_update
    FROM content.film_work fw
    LEFT OUTER JOIN content.person_film_work pfw ON fw.id = pfw.film_work_id
    LEFT OUTER JOIN content.person p ON p.id = pfw.person_id
    LEFT OUTER JOIN content.genre_film_work gfw ON fw.id = gfw.film_work_id
    LEFT OUTER JOIN content.genre g ON gfw.genre_id = g.id
    WHERE fw.updated_at > $1 OR p.updated_at > $1 OR g.updated_at > $1
    GROUP BY fw.id
    ORDER BY latest_update`

// PostgresSource reads film rows from the relational store.
type PostgresSource struct {
	DB *sqlx.DB
}

func (s *PostgresSource) Query(ctx context.Context, since models.Watermark) (Cursor, error) {
	rows, err := s.DB.QueryxContext(ctx, incrementalQuery, since.String())
	if err != nil {
		return nil, fmt.Errorf("incremental query: %w", err)
	}
	return &postgresCursor{rows: rows}, nil
}

func (s *PostgresSource) Close() error {
	return s.DB.Close()
}

type postgresCursor struct {
	rows *sqlx.Rows
}

func (c *postgresCursor) Fetch(n int) ([]models.FilmworkRow, error) {
	batch := make([]models.FilmworkRow, 0, n)
	for len(batch) < n && c.rows.Next() {
		var row models.FilmworkRow
		if err := c.rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan film row: %w", err)
		}
		batch = append(batch, row)
	}
	if err := c.rows.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}

func (c *postgresCursor) Close() error {
	return c.rows.Close()
}

// PostgresSourceConnector adapts the database connector to the pipeline's
// SourceConnector contract.
type PostgresSourceConnector struct {
	Connector *database.PostgresConnector
}

func (c *PostgresSourceConnector) Connect(ctx context.Context) (Source, error) {
	db, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresSource{DB: db}, nil
}
