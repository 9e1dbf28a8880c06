package pgs

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// qdrantVectorStore is the alternate VectorStore backend, grounded on the
// teacher's qdrantVector (qdrant_vector.go): deterministic UUID point ids
// via uuid.NewSHA1 since chunk ids are not themselves UUIDs, with the
// original id carried in the payload under payloadIDField.
const payloadIDField = "_original_id"

type qdrantVectorStore struct {
	client     *qdrant.Client
	collection string
}

func newQdrantVectorStore(ctx context.Context, dsn string, dim int) (*qdrantVectorStore, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgs: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("pgs: invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("pgs: create qdrant client: %w", err)
	}

	const collection = "chunk_vectors"
	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pgs: check qdrant collection: %w", err)
	}
	if !exists {
		if dim <= 0 {
			client.Close()
			return nil, fmt.Errorf("pgs: qdrant requires EMBED_DIM > 0")
		}
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("pgs: create qdrant collection: %w", err)
		}
	}
	return &qdrantVectorStore{client: client, collection: collection}, nil
}

func chunkPointID(chunkID string) string {
	if _, err := uuid.Parse(chunkID); err == nil {
		return chunkID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func (q *qdrantVectorStore) UpsertChunkVector(ctx context.Context, workspaceID, connectionID, documentID, chunkID string, vector []float32) error {
	pointUUID := chunkPointID(chunkID)
	payload := map[string]any{
		"workspace_id":  workspaceID,
		"connection_id": connectionID,
		"document_id":   documentID,
	}
	if pointUUID != chunkID {
		payload[payloadIDField] = chunkID
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	return err
}

func (q *qdrantVectorStore) DeleteDocumentVectors(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	return err
}

func (q *qdrantVectorStore) SimilaritySearch(ctx context.Context, workspaceID string, connectionIDs []string, vector []float32, k int) ([]VectorHit, error) {
	if k <= 0 {
		k = 10
	}
	must := []*qdrant.Condition{qdrant.NewMatch("workspace_id", workspaceID)}
	var filter *qdrant.Filter
	if len(connectionIDs) > 0 {
		should := make([]*qdrant.Condition, len(connectionIDs))
		for i, id := range connectionIDs {
			should[i] = qdrant.NewMatch("connection_id", id)
		}
		filter = &qdrant.Filter{Must: must, Should: should}
	} else {
		filter = &qdrant.Filter{Must: must}
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	out := make([]VectorHit, 0, len(results))
	for _, hit := range results {
		chunkID := hit.Id.GetUuid()
		documentID := ""
		if hit.Payload != nil {
			if orig, ok := hit.Payload[payloadIDField]; ok {
				chunkID = orig.GetStringValue()
			}
			if doc, ok := hit.Payload["document_id"]; ok {
				documentID = doc.GetStringValue()
			}
		}
		out = append(out, VectorHit{ChunkID: chunkID, DocumentID: documentID, Score: float64(hit.Score)})
	}
	return out, nil
}

func (q *qdrantVectorStore) Close() error { return q.client.Close() }
