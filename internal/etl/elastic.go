package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/BartekS5/pg2es/pkg/database"
	"github.com/BartekS5/pg2es/pkg/models"
)

// ElasticSink writes documents to an Elasticsearch index via the bulk API.
type ElasticSink struct {
	Client *elasticsearch.Client
	Logger *zap.Logger
}

// EnsureIndex creates the index from the supplied schema blob. A 400
// response means the index already exists and is treated as success.
func (s *ElasticSink) EnsureIndex(ctx context.Context, index string, schema []byte) error {
	res, err := s.Client.Indices.Create(index,
		s.Client.Indices.Create.WithBody(bytes.NewReader(schema)),
		s.Client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("create index %s: %s", index, res.Status())
	}
	return nil
}

// BulkUpsert submits docs as one NDJSON bulk request, routing each action
// by the document id so repeated loads overwrite instead of duplicating.
func (s *ElasticSink) BulkUpsert(ctx context.Context, index string, docs []models.Document) (int, []BulkFailure, error) {
	if len(docs) == 0 {
		return 0, nil, nil
	}
	var buf bytes.Buffer
	for _, doc := range docs {
		meta, err := json.Marshal(bulkAction{Index: bulkActionMeta{Index: index, ID: doc.ID}})
		if err != nil {
			return 0, nil, err
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal document %s: %w", doc.ID, err)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(payload)
		buf.WriteByte('\n')
	}

	res, err := s.Client.Bulk(bytes.NewReader(buf.Bytes()), s.Client.Bulk.WithContext(ctx))
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, &statusError{status: res.StatusCode, msg: fmt.Sprintf("bulk request: %s", res.Status())}
	}

	var body bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, nil, fmt.Errorf("decode bulk response: %w", err)
	}
	var failures []BulkFailure
	success := 0
	for _, item := range body.Items {
		st, ok := item["index"]
		if !ok {
			continue
		}
		if st.Status >= 200 && st.Status < 300 {
			success++
			continue
		}
		failures = append(failures, BulkFailure{ID: st.ID, Status: st.Status, Reason: st.Error.Reason})
	}
	return success, failures, nil
}

type bulkAction struct {
	Index bulkActionMeta `json:"index"`
}

type bulkActionMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool                      `json:"errors"`
	Items  []map[string]bulkItemInfo `json:"items"`
}

type bulkItemInfo struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// ElasticSinkConnector adapts the database connector to the pipeline's
// SinkConnector contract.
type ElasticSinkConnector struct {
	Connector *database.ElasticConnector
	Logger    *zap.Logger
}

func (c *ElasticSinkConnector) Connect(ctx context.Context) (Sink, error) {
	client, err := c.Connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &ElasticSink{Client: client, Logger: c.Logger}, nil
}
