package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"financial-transcripts-rag/internal/logger"
	"financial-transcripts-rag/models"
)

// QueryLogService records every processed query in MongoDB. All methods
// are no-ops when the service was built without a database.
type QueryLogService struct {
	col *mongo.Collection
}

func NewQueryLogService(db *mongo.Database) *QueryLogService {
	svc := &QueryLogService{}
	if db != nil {
		svc.col = db.Collection("query_logs")
	}
	return svc
}

// Record inserts a log entry. Failures are logged, never propagated;
// query logging must not affect the caller's response.
func (s *QueryLogService) Record(entry *models.QueryLogEntry) {
	if s.col == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.col.InsertOne(ctx, entry); err != nil {
		logger.Warn("Failed to record query log", "error", err)
	}
}

// Recent returns the newest entries, most recent first.
func (s *QueryLogService) Recent(ctx context.Context, limit int) ([]models.QueryLogEntry, error) {
	if s.col == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.QueryLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Since returns entries created at or after the given time, oldest
// first, for export.
func (s *QueryLogService) Since(ctx context.Context, since time.Time) ([]models.QueryLogEntry, error) {
	if s.col == nil {
		return nil, nil
	}

	filter := bson.M{"created_at": bson.M{"$gte": since}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.QueryLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// PurgeOlderThan deletes entries created before the cutoff and returns
// how many were removed.
func (s *QueryLogService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.col == nil {
		return 0, nil
	}

	res, err := s.col.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
