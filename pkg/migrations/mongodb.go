package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureDeadLetterIndexes prepares the dead-letter collection for the
// lookups operators run when inspecting failures.
func EnsureDeadLetterIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("idx_dead_letters_event_id"),
		},
		{
			Keys:    bson.D{{Key: "failed_at", Value: -1}},
			Options: options.Index().SetName("idx_dead_letters_failed_at"),
		},
		{
			Keys:    bson.D{{Key: "channel", Value: 1}, {Key: "failed_at", Value: -1}},
			Options: options.Index().SetName("idx_dead_letters_channel_failed_at"),
		},
	}

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
	}

	return nil
}
