package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	QueryStatusSuccess   = "success"
	QueryStatusNoContext = "no_context"
	QueryStatusError     = "error"
)

// QueryLogEntry is the Mongo record written for every processed query.
type QueryLogEntry struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Question       string             `bson:"question" json:"question"`
	Answer         string             `bson:"answer" json:"answer"`
	Companies      []string           `bson:"companies,omitempty" json:"companies,omitempty"`
	SourceCount    int                `bson:"source_count" json:"source_count"`
	TokensUsed     int                `bson:"tokens_used" json:"tokens_used"`
	ProcessingSecs float64            `bson:"processing_seconds" json:"processing_seconds"`
	Cached         bool               `bson:"cached" json:"cached"`
	Status         string             `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

type RecentQueriesResponse struct {
	Queries []QueryLogEntry `json:"queries"`
	Total   int             `json:"total"`
}
