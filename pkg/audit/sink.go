package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Sink records module-level activity for the dashboard audit trail.
// Writes are best-effort: a failed write is logged and dropped, never
// surfaced to the caller.
type Sink interface {
	Log(module, action string, success bool, payload map[string]interface{})
}

// Entry is a single audit record
type Entry struct {
	Module    string                 `bson:"module" json:"module"`
	Action    string                 `bson:"action" json:"action"`
	Success   bool                   `bson:"success" json:"success"`
	Payload   map[string]interface{} `bson:"payload,omitempty" json:"payload,omitempty"`
	Timestamp time.Time              `bson:"timestamp" json:"timestamp"`
}

// MongoSink writes audit entries to a MongoDB collection
type MongoSink struct {
	collection *mongo.Collection
	logger     *zap.Logger
	timeout    time.Duration
}

// NewMongoSink creates an audit sink backed by the given collection
func NewMongoSink(collection *mongo.Collection, logger *zap.Logger) *MongoSink {
	return &MongoSink{
		collection: collection,
		logger:     logger,
		timeout:    5 * time.Second,
	}
}

// Log writes one audit entry asynchronously
func (s *MongoSink) Log(module, action string, success bool, payload map[string]interface{}) {
	entry := Entry{
		Module:    module,
		Action:    action,
		Success:   success,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.collection.InsertOne(ctx, entry); err != nil {
			s.logger.Warn("Failed to write audit entry",
				zap.String("module", module),
				zap.String("action", action),
				zap.Error(err))
		}
	}()
}

// NoopSink discards all entries. Used when audit storage is not configured.
type NoopSink struct{}

func (NoopSink) Log(module, action string, success bool, payload map[string]interface{}) {}
