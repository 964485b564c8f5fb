// Package models defines the row and document shapes moved through the
// sync pipeline, plus the watermark value used for checkpointing.
package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// watermarkLayout matches the precision the source stores for updated_at.
const watermarkLayout = "2006-01-02 15:04:05.000000"

// Watermark is the timestamp boundary below which all source changes are
// known to be processed. Rendered as a string so it can be persisted and
// compared by the database without further conversion.
type Watermark string

// EpochWatermark is the default for a fresh deployment: everything after
// the Unix epoch is considered unsynced.
const EpochWatermark = Watermark("1970-01-01 00:00:00.000000")

func NewWatermark(t time.Time) Watermark {
	return Watermark(t.UTC().Format(watermarkLayout))
}

func (w Watermark) String() string {
	return string(w)
}

// Time parses the watermark back into a time.Time.
func (w Watermark) Time() (time.Time, error) {
	t, err := time.Parse(watermarkLayout, string(w))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid watermark %q: %w", string(w), err)
	}
	return t, nil
}

// Person is one entry of the persons jsonb aggregate. Rows produced by the
// outer joins may carry null members; json null leaves the zero value.
type Person struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Genre is one entry of the genres jsonb aggregate.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"genre"`
}

// PersonList scans a jsonb_agg column of persons.
type PersonList []Person

func (p *PersonList) Scan(src any) error {
	return scanJSONB(src, p)
}

// GenreList scans a jsonb_agg column of genres.
type GenreList []Genre

func (g *GenreList) Scan(src any) error {
	return scanJSONB(src, g)
}

func scanJSONB(src, dest any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("jsonb scan: expected []byte, got %T", src)
	}
	return json.Unmarshal(b, dest)
}

// FilmworkRow is one raw aggregated row of the incremental query: a film
// plus its people and genres, and the derived maximum update time used as
// ordering key and watermark source.
type FilmworkRow struct {
	ID           string          `db:"id"`
	Rating       sql.NullFloat64 `db:"rating"`
	Title        string          `db:"title"`
	Description  sql.NullString  `db:"description"`
	Persons      PersonList      `db:"persons"`
	Genres       GenreList       `db:"genres"`
	LatestUpdate time.Time       `db:"latest_update"`
}

// Watermark returns the row's derived update time as a watermark candidate.
func (r FilmworkRow) Watermark() Watermark {
	return NewWatermark(r.LatestUpdate)
}

// PersonRef is the structured {id, name} pair kept for actors and writers.
type PersonRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Document is the sink-facing record, keyed by ID for idempotent upsert.
// The bulk action metadata carries ID as the _id routing key; the payload
// repeats it as a regular field. Director and the joined name fields are
// omitted entirely when no names exist.
type Document struct {
	ID           string      `json:"id"`
	IMDBRating   *float64    `json:"imdb_rating"`
	Genre        string      `json:"genre"`
	Title        string      `json:"title"`
	Description  *string     `json:"description"`
	Director     *string     `json:"director,omitempty"`
	ActorsNames  []string    `json:"actors_names,omitempty"`
	WritersNames []string    `json:"writers_names,omitempty"`
	Actors       []PersonRef `json:"actors"`
	Writers      []PersonRef `json:"writers"`
}
