// Package mongodb persists flagged records in a MongoDB collection.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/types"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Options configures the connection.
type Options struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Store bulk-inserts flagged records.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Open connects and verifies the server is reachable.
func Open(ctx context.Context, opts Options) (*Store, error) {
	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
		clientOpts.SetServerSelectionTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}

	return &Store{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// InsertFlagged writes records with one InsertMany. An empty batch is a no-op.
func (s *Store) InsertFlagged(ctx context.Context, records []*types.PacketRecord) error {
	docs := documents(records)
	if len(docs) == 0 {
		return nil
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert flagged records: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func documents(records []*types.PacketRecord) []interface{} {
	docs := make([]interface{}, 0, len(records))
	for _, r := range records {
		if r != nil {
			docs = append(docs, r)
		}
	}
	return docs
}
