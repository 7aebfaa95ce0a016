package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"financial-transcripts-rag/internal/config"
	"financial-transcripts-rag/internal/corpus"
)

// QdrantStore talks to Qdrant over gRPC.
type QdrantStore struct {
	client *qdrant.Client
}

func NewQdrantStore(cfg *config.Config) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
		GrpcOptions: []grpc.DialOption{
			// Full-collection scrolls can exceed the 4MB gRPC default.
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(32 * 1024 * 1024)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.QdrantHost, cfg.QdrantPort, err)
	}
	return &QdrantStore{client: client}, nil
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return s.client.CollectionExists(ctx, collection)
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	return s.client.DeleteCollection(ctx, collection)
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointUUID(doc.ChunkID)),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				FieldChunkID:     doc.ChunkID,
				FieldDocumentID:  doc.DocumentID,
				FieldCompany:     doc.Company,
				FieldFilename:    doc.Filename,
				FieldDate:        doc.Date,
				FieldDateNum:     corpus.DateNum(doc.Date),
				FieldQuarter:     doc.Quarter,
				FieldChunkIndex:  doc.ChunkIndex,
				FieldTotalChunks: doc.TotalChunks,
				FieldContent:     doc.Content,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float64, dates *DateFilter) ([]SearchResult, error) {
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if threshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(float32(threshold))
	}
	if filter := dateRangeFilter(dates); filter != nil {
		query.Filter = filter
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search in %s failed: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		results = append(results, SearchResult{
			ChunkID:    payload[FieldChunkID].GetStringValue(),
			DocumentID: payload[FieldDocumentID].GetStringValue(),
			Company:    payload[FieldCompany].GetStringValue(),
			Filename:   payload[FieldFilename].GetStringValue(),
			Date:       payload[FieldDate].GetStringValue(),
			Quarter:    payload[FieldQuarter].GetStringValue(),
			ChunkIndex: int(payload[FieldChunkIndex].GetIntegerValue()),
			Content:    payload[FieldContent].GetStringValue(),
			Similarity: float64(point.GetScore()),
		})
	}
	return results, nil
}

// dateRangeFilter builds a numeric range condition on date_num. Chunks
// with an unknown date carry date_num 0 and fall outside any window.
func dateRangeFilter(dates *DateFilter) *qdrant.Filter {
	if dates == nil {
		return nil
	}

	dateRange := &qdrant.Range{}
	bounded := false
	if dates.Start != "" {
		if num := corpus.DateNum(dates.Start); num > 0 {
			dateRange.Gte = qdrant.PtrOf(float64(num))
			bounded = true
		}
	}
	if dates.End != "" {
		if num := corpus.DateNum(dates.End); num > 0 {
			dateRange.Lte = qdrant.PtrOf(float64(num))
			bounded = true
		}
	}
	if !bounded {
		return nil
	}

	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewRange(FieldDateNum, dateRange)},
	}
}

func (s *QdrantStore) Count(ctx context.Context, collection string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count in %s failed: %w", collection, err)
	}
	return count, nil
}

func (s *QdrantStore) ListDocuments(ctx context.Context, collection string) ([]DocumentInfo, error) {
	byID := make(map[string]*DocumentInfo)

	limit := uint32(256)
	var offset *qdrant.PointId
	for {
		resp, err := s.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude(FieldDocumentID, FieldFilename, FieldDate),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll in %s failed: %w", collection, err)
		}

		for _, point := range resp.GetResult() {
			payload := point.GetPayload()
			id := payload[FieldDocumentID].GetStringValue()
			if id == "" {
				continue
			}
			info, ok := byID[id]
			if !ok {
				info = &DocumentInfo{
					DocumentID: id,
					Filename:   payload[FieldFilename].GetStringValue(),
					Date:       payload[FieldDate].GetStringValue(),
				}
				byID[id] = info
			}
			info.ChunkCount++
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	docs := make([]DocumentInfo, 0, len(byID))
	for _, info := range byID {
		docs = append(docs, *info)
	}
	sortDocumentInfos(docs)
	return docs, nil
}

func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return err
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
