package etl

import (
	"strings"

	"github.com/BartekS5/pg2es/pkg/models"
)

// Transformer reshapes raw aggregated rows into sink documents. It is
// stateless; the same row always maps to the same document.
type Transformer struct{}

// Transform wraps a batch stream in a lazy one-document-at-a-time stream.
func (t *Transformer) Transform(batches BatchIterator) *DocumentStream {
	return &DocumentStream{batches: batches}
}

// DocumentStream pulls rows out of buffered batches on demand.
type DocumentStream struct {
	batches BatchIterator
	buf     []models.FilmworkRow
	next    int
}

func (d *DocumentStream) Next() (models.Document, bool) {
	for d.next >= len(d.buf) {
		batch, ok := d.batches.Next()
		if !ok {
			return models.Document{}, false
		}
		d.buf, d.next = batch, 0
	}
	row := d.buf[d.next]
	d.next++
	return TransformRow(row), true
}

// TransformRow maps one aggregated row to a flat document.
//
// Genres collapse to unique non-empty names joined by spaces. Persons are
// deduplicated by id (first occurrence keeps its position, last occurrence
// wins on conflicting data) and partitioned by role; entries without a
// role are dropped. Joined name fields render as one-element slices and
// are omitted entirely when empty, as is the director field.
func TransformRow(row models.FilmworkRow) models.Document {
	doc := models.Document{
		ID:      row.ID,
		Title:   row.Title,
		Genre:   joinGenres(row.Genres),
		Actors:  []models.PersonRef{},
		Writers: []models.PersonRef{},
	}
	if row.Rating.Valid {
		v := row.Rating.Float64
		doc.IMDBRating = &v
	}
	if row.Description.Valid {
		v := row.Description.String
		doc.Description = &v
	}

	var actorNames, writerNames, directorNames []string
	for _, p := range dedupePersons(row.Persons) {
		ref := models.PersonRef{ID: p.ID, Name: p.FullName}
		switch p.Role {
		case "actor":
			actorNames = append(actorNames, p.FullName)
			doc.Actors = append(doc.Actors, ref)
		case "writer":
			writerNames = append(writerNames, p.FullName)
			doc.Writers = append(doc.Writers, ref)
		case "director":
			directorNames = append(directorNames, p.FullName)
		}
	}
	if len(directorNames) > 0 {
		doc.Director = &directorNames[0]
	}
	if len(actorNames) > 0 {
		doc.ActorsNames = []string{strings.Join(actorNames, " ")}
	}
	if len(writerNames) > 0 {
		doc.WritersNames = []string{strings.Join(writerNames, " ")}
	}
	return doc
}

func joinGenres(genres models.GenreList) string {
	seen := make(map[string]bool, len(genres))
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		if g.Name == "" || seen[g.Name] {
			continue
		}
		seen[g.Name] = true
		names = append(names, g.Name)
	}
	return strings.Join(names, " ")
}

func dedupePersons(persons models.PersonList) []models.Person {
	order := make([]string, 0, len(persons))
	byID := make(map[string]models.Person, len(persons))
	for _, p := range persons {
		if _, ok := byID[p.ID]; !ok {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}
	// Dedup happens before role partitioning: a roleless last occurrence
	// shadows an earlier entry with a role.
	unique := make([]models.Person, 0, len(order))
	for _, id := range order {
		if p := byID[id]; p.Role != "" {
			unique = append(unique, p)
		}
	}
	return unique
}
