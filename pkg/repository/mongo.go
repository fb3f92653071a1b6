package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/notify"
)

const (
	auditService        = "storefront"
	defaultHistoryLimit = 50
)

// MongoRepository keeps the audit trail of cart, order and product events.
type MongoRepository struct {
	client *mongo.Client
	events *mongo.Collection
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	m := &MongoRepository{
		client: client,
		events: client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *MongoRepository) ensureIndexes(ctx context.Context) error {
	_, err := m.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit index: %w", err)
	}
	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type AuditLog struct {
	ID        string    `bson:"_id,omitempty"`
	Service   string    `bson:"service"`
	Action    string    `bson:"action"`
	EntityID  string    `bson:"entity_id"`
	OwnerID   string    `bson:"owner_id,omitempty"`
	Data      bson.M    `bson:"data,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func auditLogOf(e notify.Event) *AuditLog {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &AuditLog{
		Service:   auditService,
		Action:    e.Type,
		EntityID:  e.EntityID,
		OwnerID:   e.OwnerID,
		Data:      bson.M(e.Data),
		CreatedAt: at,
	}
}

func (l *AuditLog) event() notify.Event {
	return notify.Event{
		Type:     l.Action,
		EntityID: l.EntityID,
		OwnerID:  l.OwnerID,
		Data:     map[string]interface{}(l.Data),
		At:       l.CreatedAt,
	}
}

// RecordEvent makes the repository the audit actor's sink.
func (m *MongoRepository) RecordEvent(ctx context.Context, e notify.Event) error {
	if _, err := m.events.InsertOne(ctx, auditLogOf(e)); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// History returns the newest events recorded for an order, cart or product id.
func (m *MongoRepository) History(ctx context.Context, entityID string, limit int64) ([]notify.Event, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.events.Find(ctx, bson.M{"entity_id": entityID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	events := make([]notify.Event, len(logs))
	for i, l := range logs {
		events[i] = l.event()
	}
	return events, nil
}
