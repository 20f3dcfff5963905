package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoDBAdapter implements the DatabaseAdapter interface for MongoDB
type MongoDBAdapter struct {
	client      *mongo.Client
	db          *mongo.Database
	config      *ports.MongoDBConfig
	requestRepo ports.RequestRepository
	sensorRepo  ports.SensorRepository
	userRepo    ports.UserRepository
}

// NewMongoDBAdapter creates a new MongoDB database adapter
func NewMongoDBAdapter(config *ports.MongoDBConfig) *MongoDBAdapter {
	return &MongoDBAdapter{
		config: config,
	}
}

// Connect establishes a connection to the MongoDB database
func (a *MongoDBAdapter) Connect(ctx context.Context) error {
	clientOpts := options.Client().ApplyURI(a.config.URI)

	// Configure connection pool
	if a.config.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(uint64(a.config.MaxPoolSize))
	}
	if a.config.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(uint64(a.config.MinPoolSize))
	}
	if a.config.MaxConnIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(time.Duration(a.config.MaxConnIdleTime) * time.Second)
	}
	if a.config.ServerTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(time.Duration(a.config.ServerTimeout) * time.Second)
	}
	if a.config.SocketTimeout > 0 {
		clientOpts.SetSocketTimeout(time.Duration(a.config.SocketTimeout) * time.Second)
	}

	// Set read preference
	if a.config.ReadPreference != "" {
		switch a.config.ReadPreference {
		case "primary":
			clientOpts.SetReadPreference(readpref.Primary())
		case "secondary":
			clientOpts.SetReadPreference(readpref.Secondary())
		case "primaryPreferred":
			clientOpts.SetReadPreference(readpref.PrimaryPreferred())
		case "secondaryPreferred":
			clientOpts.SetReadPreference(readpref.SecondaryPreferred())
		}
	}

	// Set write concern
	if a.config.WriteConcern != "" {
		switch a.config.WriteConcern {
		case "majority":
			clientOpts.SetWriteConcern(writeconcern.Majority())
		}
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	a.client = client
	a.db = client.Database(a.config.Database)

	// Initialize repositories
	a.requestRepo = NewRequestRepository(a.db)
	a.sensorRepo = NewSensorRepository(a.db)
	a.userRepo = NewUserRepository(a.db)

	// Create indexes
	if err = a.createIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Disconnect closes the database connection
func (a *MongoDBAdapter) Disconnect(ctx context.Context) error {
	if a.client != nil {
		return a.client.Disconnect(ctx)
	}
	return nil
}

// Ping checks if the database connection is alive
func (a *MongoDBAdapter) Ping(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("database not connected")
	}
	return a.client.Ping(ctx, nil)
}

// GetType returns the database type
func (a *MongoDBAdapter) GetType() ports.DatabaseType {
	return ports.DatabaseTypeMongoDB
}

// BeginTransaction starts a new database transaction (session). The repos it
// hands out are session-bound so their operations join the transaction
// instead of autocommitting individually.
func (a *MongoDBAdapter) BeginTransaction(ctx context.Context) (ports.Transaction, error) {
	session, err := a.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	err = session.StartTransaction()
	if err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	return &mongoTransaction{
		session: session,
		db:      a.db,
		requestRepo: &sessionRequestRepository{
			session: session,
			inner:   NewRequestRepository(a.db),
		},
		sensorRepo: &sessionSensorRepository{
			session: session,
			inner:   NewSensorRepository(a.db),
		},
	}, nil
}

// GetRequestRepository returns the request repository
func (a *MongoDBAdapter) GetRequestRepository() ports.RequestRepository {
	return a.requestRepo
}

// GetSensorRepository returns the sensor repository
func (a *MongoDBAdapter) GetSensorRepository() ports.SensorRepository {
	return a.sensorRepo
}

// GetUserRepository returns the user repository
func (a *MongoDBAdapter) GetUserRepository() ports.UserRepository {
	return a.userRepo
}

// HealthCheck performs a health check on the database
func (a *MongoDBAdapter) HealthCheck(ctx context.Context) error {
	if err := a.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	// Test a simple query
	_, err := a.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// GetConnectionStats returns database connection statistics
func (a *MongoDBAdapter) GetConnectionStats() ports.ConnectionStats {
	healthy := a.Ping(context.Background()) == nil

	return ports.ConnectionStats{
		OpenConnections:  -1, // MongoDB driver doesn't expose this easily
		IdleConnections:  -1,
		MaxConnections:   a.config.MaxPoolSize,
		DatabaseType:     string(ports.DatabaseTypeMongoDB),
		ConnectionString: a.config.Database, // Don't expose full URI
		Healthy:          healthy,
	}
}

// createIndexes creates necessary indexes for optimal performance
func (a *MongoDBAdapter) createIndexes(ctx context.Context) error {
	requestIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "request_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "end_time", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "sensor_id", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "end_time", Value: 1},
			},
		},
	}

	_, err := a.db.Collection("bypass_requests").Indexes().CreateMany(ctx, requestIndexes)
	if err != nil {
		return fmt.Errorf("failed to create request indexes: %w", err)
	}

	sensorIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tag", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "equipment_id", Value: 1}},
		},
	}

	_, err = a.db.Collection("sensors").Indexes().CreateMany(ctx, sensorIndexes)
	if err != nil {
		return fmt.Errorf("failed to create sensor indexes: %w", err)
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
	}

	_, err = a.db.Collection("users").Indexes().CreateMany(ctx, userIndexes)
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}

// mongoTransaction implements the Transaction interface
type mongoTransaction struct {
	session     mongo.Session
	db          *mongo.Database
	requestRepo ports.RequestRepository
	sensorRepo  ports.SensorRepository
}

// Commit commits the transaction
func (t *mongoTransaction) Commit(ctx context.Context) error {
	err := t.session.CommitTransaction(ctx)
	t.session.EndSession(ctx)
	return err
}

// Rollback rolls back the transaction
func (t *mongoTransaction) Rollback(ctx context.Context) error {
	err := t.session.AbortTransaction(ctx)
	t.session.EndSession(ctx)
	return err
}

// GetRequestRepository returns a transactional request repository
func (t *mongoTransaction) GetRequestRepository() ports.RequestRepository {
	return t.requestRepo
}

// GetSensorRepository returns a transactional sensor repository
func (t *mongoTransaction) GetSensorRepository() ports.SensorRepository {
	return t.sensorRepo
}
