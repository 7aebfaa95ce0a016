package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Query log collection indexes
	queryLogsCollection := db.Collection("query_logs")
	queryLogIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "companies", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "cached", Value: 1}},
		},
	}
	_, err := queryLogsCollection.Indexes().CreateMany(context.Background(), queryLogIndexes)
	if err != nil {
		return err
	}

	// Ingest run collection indexes
	ingestRunsCollection := db.Collection("ingest_runs")
	ingestRunIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "company", Value: 1}, {Key: "started_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}
	_, err = ingestRunsCollection.Indexes().CreateMany(context.Background(), ingestRunIndexes)
	if err != nil {
		return err
	}

	return nil
}
