package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const writeTimeout = 10 * time.Second

type commandDocument struct {
	SessionID string    `bson:"session_id"`
	BatchID   string    `bson:"batch_id"`
	Sequence  int       `bson:"sequence"`
	StoredAt  time.Time `bson:"stored_at"`

	entity.AuditReplayCommand `bson:",inline"`
}

type CommandRepositoryMongoDB struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewCommandMongoDBRepository(client *mongo.Client, database, collection string) *CommandRepositoryMongoDB {
	return &CommandRepositoryMongoDB{
		collection: client.Database(database).Collection(collection),
		now:        time.Now,
	}
}

func (r *CommandRepositoryMongoDB) Save(sessionID string, commands []entity.AuditReplayCommand) error {
	if len(commands) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	docs := newCommandDocuments(sessionID, uuid.NewString(), r.now().UTC(), commands)
	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("insert of %d commands failed: %w", len(commands), err)
	}
	return nil
}

func newCommandDocuments(sessionID, batchID string, storedAt time.Time, commands []entity.AuditReplayCommand) []any {
	docs := make([]any, 0, len(commands))
	for i, command := range commands {
		docs = append(docs, commandDocument{
			SessionID:          sessionID,
			BatchID:            batchID,
			Sequence:           i,
			StoredAt:           storedAt,
			AuditReplayCommand: command,
		})
	}
	return docs
}
