// internal/interface/repository/vehicle_repo.go
package repository

import (
	"context"
	"fmt"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoVehicleRepository implements the VehicleRepository interface
type MongoVehicleRepository struct {
	collection *mongo.Collection
}

// NewMongoVehicleRepository creates a new MongoDB vehicle repository
func NewMongoVehicleRepository(db *mongo.Database) repository.VehicleRepository {
	collection := db.Collection("trackedVehicles")

	// Indexes for the scheduler scan and the pending-update lookups
	ctx := context.Background()

	enabledIndex := mongo.IndexModel{
		Keys: bson.M{"enabled": 1},
	}

	pendingIndex := mongo.IndexModel{
		Keys: bson.M{"pendingUpdate": 1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		enabledIndex,
		pendingIndex,
	})

	return &MongoVehicleRepository{
		collection: collection,
	}
}

// Create inserts a new tracking record. A concurrent insert of the same
// registration is treated as success; subscribe is idempotent.
func (r *MongoVehicleRepository) Create(ctx context.Context, vehicle *entity.TrackedVehicle) error {
	now := time.Now()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, vehicle)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

// FindByRegistration finds a tracking record, returning (nil, nil) when the
// registration is not subscribed.
func (r *MongoVehicleRepository) FindByRegistration(ctx context.Context, registration string) (*entity.TrackedVehicle, error) {
	var vehicle entity.TrackedVehicle
	err := r.collection.FindOne(ctx, bson.M{"_id": registration}).Decode(&vehicle)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &vehicle, nil
}

// ListEnabled returns every vehicle the scheduler should check.
func (r *MongoVehicleRepository) ListEnabled(ctx context.Context) ([]*entity.TrackedVehicle, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"enabled": true}, &options.FindOptions{
		Sort: bson.D{{Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vehicles []*entity.TrackedVehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}

	return vehicles, nil
}

// RecordCheckOutcome writes one scheduler pass as a single update.
// lastCheckedAt advances on every call; the baseline, pending flag and
// details are set together only when the outcome carries an update, so a
// pending flag can never exist without its details.
func (r *MongoVehicleRepository) RecordCheckOutcome(ctx context.Context, registration string, outcome *entity.CheckOutcome) error {
	set := bson.M{
		"lastCheckedAt":  outcome.CheckedAt,
		"lastCheckError": outcome.CheckError,
		"updatedAt":      time.Now(),
	}

	if outcome.Update != nil {
		set["baselineTestDate"] = outcome.NewBaseline
		set["pendingUpdate"] = true
		set["pendingUpdateDetails"] = outcome.Update
		set["pendingUpdateDetectedAt"] = outcome.CheckedAt
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": registration},
		bson.M{"$set": set},
	)

	if err != nil {
		return fmt.Errorf("failed to record check outcome: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}

	return nil
}

// SeedBaseline sets the baseline without raising a pending update, for the
// best-effort fetch at subscribe time.
func (r *MongoVehicleRepository) SeedBaseline(ctx context.Context, registration string, baseline time.Time) error {
	now := time.Now()

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": registration},
		bson.M{"$set": bson.M{
			"baselineTestDate": baseline,
			"lastCheckedAt":    now,
			"updatedAt":        now,
		}},
	)

	if err != nil {
		return fmt.Errorf("failed to seed baseline: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}

	return nil
}

// ClaimPendingUpdate performs the atomic compare-and-clear. The filter on
// pendingUpdate=true and the clear run as one FindOneAndUpdate, so under N
// concurrent pollers exactly one observes the pre-clear document.
func (r *MongoVehicleRepository) ClaimPendingUpdate(ctx context.Context, registration string) (*entity.UpdateDetails, error) {
	filter := bson.M{
		"_id":           registration,
		"pendingUpdate": true,
	}
	update := bson.M{
		"$set": bson.M{
			"pendingUpdate": false,
			"updatedAt":     time.Now(),
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var vehicle entity.TrackedVehicle
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&vehicle)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Nothing pending, or another poller claimed it first
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim pending update: %w", err)
	}

	return vehicle.PendingUpdateDetails, nil
}

// Delete removes a tracking record.
func (r *MongoVehicleRepository) Delete(ctx context.Context, registration string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": registration})
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}

	return nil
}
