package persistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"motwatch-service/internal/domain/entity"
)

const (
	connectAttempts = 3
	connectBaseWait = 2 * time.Second
)

// NewMongoClient creates a new MongoDB client and verifies the connection.
// Connect and ping are retried with exponential backoff; after the last
// attempt the error wraps entity.ErrPersistence so callers can classify it.
func NewMongoClient(ctx context.Context, uri, dbName, username, password string) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(uri)

	if username != "" && password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: username,
			Password: password,
		})
	}

	var lastErr error
	wait := connectBaseWait

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		client, err := connect(ctx, clientOptions)
		if err == nil {
			return client, client.Database(dbName), nil
		}
		lastErr = err

		if attempt < connectAttempts {
			select {
			case <-ctx.Done():
				return nil, nil, fmt.Errorf("%w: %v", entity.ErrPersistence, ctx.Err())
			case <-time.After(wait):
			}
			wait *= 2
		}
	}

	return nil, nil, fmt.Errorf("%w: %v", entity.ErrPersistence, lastErr)
}

func connect(ctx context.Context, clientOptions *options.ClientOptions) (*mongo.Client, error) {
	// Bound each attempt independently of the parent context
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping to check connection
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}
