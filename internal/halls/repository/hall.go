package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	hallserrors "hallbook/internal/halls/errors"
	"hallbook/pkg/config"
	mongotx "hallbook/pkg/db/mongo"
	"hallbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Halls"
)

type HallRepository interface {
	Create(ctx context.Context, hall *model.Hall) error
	FindByKey(ctx context.Context, key string) (*model.Hall, error)
	FindAll(ctx context.Context) ([]*model.Hall, error)
	// AppendReservation commits a reservation conditioned on the hall
	// version observed during the conflict check. A version mismatch means
	// another writer got there first; callers re-read and re-check.
	AppendReservation(ctx context.Context, key string, version int64, res model.Reservation) error
	// RemoveReservationBySource releases the reservation committed for the
	// given booking request, freeing the slot immediately.
	RemoveReservationBySource(ctx context.Context, key string, sourceRequestID string) error
	// SweepExpired drops reservations whose end has elapsed and recomputes
	// each hall's occupied flag from what remains. Returns the number of
	// reservations removed.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoHallRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoHallRepository(cfg *config.Config) HallRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoHallRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// SessionContext cannot be wrapped without breaking transaction semantics.
func (r *mongoHallRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoHallRepository) Create(ctx context.Context, hall *model.Hall) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	existing := r.collection.FindOne(ctx, bson.M{"name_key": hall.NameKey})
	if existing.Err() == nil {
		return hallserrors.ErrDuplicateName
	}
	if !errors.Is(existing.Err(), mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to check hall name uniqueness: %w", existing.Err())
	}

	hall.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if hall.Reservations == nil {
		hall.Reservations = []model.Reservation{}
	}
	result, err := r.collection.InsertOne(ctx, hall)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return hallserrors.ErrDuplicateName
		}
		return fmt.Errorf("failed to create hall: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		hall.ID = oid.Hex()
	}
	return nil
}

func (r *mongoHallRepository) FindByKey(ctx context.Context, key string) (*model.Hall, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var hall model.Hall
	err := r.collection.FindOne(ctx, bson.M{"name_key": key}).Decode(&hall)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, hallserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find hall: %w", err)
	}

	return &hall, nil
}

func (r *mongoHallRepository) FindAll(ctx context.Context) ([]*model.Hall, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find halls: %w", err)
	}
	defer cursor.Close(ctx)

	var halls []*model.Hall
	if err = cursor.All(ctx, &halls); err != nil {
		return nil, fmt.Errorf("failed to decode halls: %w", err)
	}

	return halls, nil
}

func (r *mongoHallRepository) AppendReservation(ctx context.Context, key string, version int64, res model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"name_key": key, "version": version}
	update := bson.M{
		"$push": bson.M{"reservations": res},
		"$inc":  bson.M{"version": 1},
		"$set":  bson.M{"occupied": true},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to append reservation: %w", err)
	}

	if result.MatchedCount == 0 {
		// Either the hall is gone or its version moved on.
		exists, err := r.collection.CountDocuments(ctx, bson.M{"name_key": key})
		if err == nil && exists == 0 {
			return hallserrors.ErrNotFound
		}
		return hallserrors.ErrVersionConflict
	}

	return nil
}

func (r *mongoHallRepository) RemoveReservationBySource(ctx context.Context, key string, sourceRequestID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"name_key": key}
	update := bson.A{
		bson.M{"$set": bson.M{
			"reservations": bson.M{"$filter": bson.M{
				"input": "$reservations",
				"as":    "r",
				"cond":  bson.M{"$ne": bson.A{"$$r.source_request_id", sourceRequestID}},
			}},
		}},
		bson.M{"$set": bson.M{
			"occupied": bson.M{"$gt": bson.A{bson.M{"$size": "$reservations"}, 0}},
			"version":  bson.M{"$add": bson.A{"$version", 1}},
		}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove reservation: %w", err)
	}

	if result.MatchedCount == 0 {
		return hallserrors.ErrNotFound
	}

	return nil
}

func (r *mongoHallRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	// Count first so the sweep result is reportable; the count and the
	// update are not atomic, which only skews the log counter.
	countPipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$reservations"}},
		{{Key: "$match", Value: bson.M{"reservations.end_time": bson.M{"$lte": cutoff}}}},
		{{Key: "$count", Value: "n"}},
	}
	cursor, err := r.collection.Aggregate(ctx, countPipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired reservations: %w", err)
	}
	var counts []struct {
		N int64 `bson:"n"`
	}
	if err := cursor.All(ctx, &counts); err != nil {
		return 0, fmt.Errorf("failed to decode expired reservation count: %w", err)
	}
	var removed int64
	if len(counts) > 0 {
		removed = counts[0].N
	}
	if removed == 0 {
		return 0, nil
	}

	filter := bson.M{"reservations": bson.M{"$elemMatch": bson.M{"end_time": bson.M{"$lte": cutoff}}}}
	update := bson.A{
		bson.M{"$set": bson.M{
			"reservations": bson.M{"$filter": bson.M{
				"input": "$reservations",
				"as":    "r",
				"cond":  bson.M{"$gt": bson.A{"$$r.end_time", cutoff}},
			}},
		}},
		bson.M{"$set": bson.M{
			"occupied": bson.M{"$gt": bson.A{bson.M{"$size": "$reservations"}, 0}},
			"version":  bson.M{"$add": bson.A{"$version", 1}},
		}},
	}

	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return 0, fmt.Errorf("failed to sweep expired reservations: %w", err)
	}

	return removed, nil
}

func (r *mongoHallRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
