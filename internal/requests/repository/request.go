package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	requestserrors "hallbook/internal/requests/errors"
	"hallbook/pkg/config"
	mongotx "hallbook/pkg/db/mongo"
	"hallbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "BookingRequests"
)

type RequestRepository interface {
	Create(ctx context.Context, req *model.BookingRequest) error
	FindByID(ctx context.Context, id string) (*model.BookingRequest, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.BookingRequest, error)
	Count(ctx context.Context) (int64, error)
	// FindPending returns pending requests oldest-first, optionally scoped
	// to one hall key. The ordering gives earlier requests first claim on a
	// contested slot during bulk processing.
	FindPending(ctx context.Context, hallKey string) ([]*model.BookingRequest, error)
	// FindByToken resolves a live token: exact match, unexpired, and still
	// in the status the link was issued for. Any miss is ErrTokenNotFound.
	FindByToken(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error)
	// ConsumeToken is the atomic compare-and-clear step: it matches the
	// token under the same conditions as FindByToken and, in the same
	// update, sets the new status and removes the token. A concurrent
	// consumer makes the filter miss, which surfaces as ErrTokenNotFound.
	ConsumeToken(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error)
	// TransitionStatus moves a request from one status to another only if
	// it is still in the expected status, clearing any token in the same
	// update. A filter miss surfaces as ErrStatusChanged.
	TransitionStatus(ctx context.Context, id string, from, to model.Status) error
	// ReclassifyOverlapping demotes approved/left requests overlapping the
	// window on the given hall back to auto_booked, so a new clash is
	// visible to admins. Returns the number of requests demoted.
	ReclassifyOverlapping(ctx context.Context, hallKey string, start, end time.Time) (int64, error)
	DeleteElapsed(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoRequestRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoRequestRepository(cfg *config.Config) RequestRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRequestRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// SessionContext cannot be wrapped without breaking transaction semantics.
func (r *mongoRequestRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoRequestRepository) Create(ctx context.Context, req *model.BookingRequest) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	req.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create booking request: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		req.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRequestRepository) FindByID(ctx context.Context, id string) (*model.BookingRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", requestserrors.ErrInvalidID, id)
	}

	var req model.BookingRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, requestserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking request: %w", err)
	}

	return &req, nil
}

func (r *mongoRequestRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.BookingRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*model.BookingRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode booking requests: %w", err)
	}

	return requests, nil
}

func (r *mongoRequestRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count booking requests: %w", err)
	}

	return count, nil
}

func (r *mongoRequestRepository) FindPending(ctx context.Context, hallKey string) ([]*model.BookingRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"status": model.StatusPending}
	if hallKey != "" {
		filter["hall_key"] = hallKey
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*model.BookingRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode pending requests: %w", err)
	}

	return requests, nil
}

func tokenFilter(token string, expected model.Status, now time.Time) bson.M {
	return bson.M{
		"token":        token,
		"status":       expected,
		"token_expiry": bson.M{"$gt": now},
	}
}

func (r *mongoRequestRepository) FindByToken(ctx context.Context, token string, expected model.Status, now time.Time) (*model.BookingRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if token == "" {
		return nil, requestserrors.ErrTokenNotFound
	}

	var req model.BookingRequest
	err := r.collection.FindOne(ctx, tokenFilter(token, expected, now)).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, requestserrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to find request by token: %w", err)
	}

	return &req, nil
}

func (r *mongoRequestRepository) ConsumeToken(ctx context.Context, token string, expected model.Status, now time.Time, next model.Status) (*model.BookingRequest, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if token == "" {
		return nil, requestserrors.ErrTokenNotFound
	}

	update := bson.M{
		"$set":   bson.M{"status": next},
		"$unset": bson.M{"token": "", "token_expiry": ""},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var req model.BookingRequest
	err := r.collection.FindOneAndUpdate(ctx, tokenFilter(token, expected, now), update, opts).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, requestserrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	return &req, nil
}

func (r *mongoRequestRepository) TransitionStatus(ctx context.Context, id string, from, to model.Status) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", requestserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": from}
	update := bson.M{
		"$set":   bson.M{"status": to},
		"$unset": bson.M{"token": "", "token_expiry": ""},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to transition request status: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if err == nil && exists == 0 {
			return requestserrors.ErrNotFound
		}
		return requestserrors.ErrStatusChanged
	}

	return nil
}

func (r *mongoRequestRepository) ReclassifyOverlapping(ctx context.Context, hallKey string, start, end time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"hall_key":   hallKey,
		"status":     bson.M{"$in": []model.Status{model.StatusApproved, model.StatusLeft}},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}
	update := bson.M{
		"$set": bson.M{"status": model.StatusAutoBooked},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to reclassify overlapping requests: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *mongoRequestRepository) DeleteElapsed(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"end_time": bson.M{"$lte": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete elapsed requests: %w", err)
	}

	return result.DeletedCount, nil
}

func (r *mongoRequestRepository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.StatusPending,
		"start_time": bson.M{"$lte": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale pending requests: %w", err)
	}

	return result.DeletedCount, nil
}

func (r *mongoRequestRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
