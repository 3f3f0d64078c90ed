package repository

import (
	"context"
	"fmt"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSubscriptionRepository implements the SubscriptionRepository interface
type MongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new MongoDB subscription repository
func NewMongoSubscriptionRepository(db *mongo.Database) repository.SubscriptionRepository {
	collection := db.Collection("deviceSubscriptions")

	ctx := context.Background()

	// One subscription per (registration, deviceId)
	keyIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "registration", Value: 1},
			{Key: "deviceId", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	// Fan-out lookup
	activeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "registration", Value: 1},
			{Key: "active", Value: 1},
		},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		keyIndex,
		activeIndex,
	})

	return &MongoSubscriptionRepository{
		collection: collection,
	}
}

// Upsert creates or replaces the subscription for (registration, deviceId).
// Re-subscribing reactivates a previously deactivated endpoint.
func (r *MongoSubscriptionRepository) Upsert(ctx context.Context, sub *entity.DeviceSubscription) error {
	now := time.Now()

	filter := bson.M{
		"registration": sub.Registration,
		"deviceId":     sub.DeviceID,
	}
	update := bson.M{
		"$set": bson.M{
			"endpoint":  sub.Endpoint,
			"active":    true,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID().Hex(),
			"createdAt": now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// FindActiveByVehicle returns the active subscriptions for one registration.
func (r *MongoSubscriptionRepository) FindActiveByVehicle(ctx context.Context, registration string) ([]*entity.DeviceSubscription, error) {
	filter := bson.M{
		"registration": registration,
		"active":       true,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []*entity.DeviceSubscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}

	return subs, nil
}

// Deactivate marks a subscription inactive after a permanent delivery
// failure. The document is kept.
func (r *MongoSubscriptionRepository) Deactivate(ctx context.Context, registration, deviceID string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"registration": registration, "deviceId": deviceID},
		bson.M{"$set": bson.M{
			"active":    false,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	return nil
}

// MarkNotified records a successful delivery.
func (r *MongoSubscriptionRepository) MarkNotified(ctx context.Context, registration, deviceID string, at time.Time) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"registration": registration, "deviceId": deviceID},
		bson.M{"$set": bson.M{
			"lastNotifiedAt": at,
			"updatedAt":      time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark subscription notified: %w", err)
	}
	return nil
}

// Delete hard-deletes one device's subscription.
func (r *MongoSubscriptionRepository) Delete(ctx context.Context, registration, deviceID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{
		"registration": registration,
		"deviceId":     deviceID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: subscription %s/%s", entity.ErrNotFound, registration, deviceID)
	}

	return nil
}

// DeleteByVehicle removes every subscription for a registration.
func (r *MongoSubscriptionRepository) DeleteByVehicle(ctx context.Context, registration string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"registration": registration})
	if err != nil {
		return fmt.Errorf("failed to delete subscriptions for %s: %w", registration, err)
	}
	return nil
}
