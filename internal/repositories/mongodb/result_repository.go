package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ArowuTest/xoso-live-backend/internal/models"
	"github.com/ArowuTest/xoso-live-backend/internal/repositories"
)

// ResultRepository implements the repositories.ResultRepository interface
type ResultRepository struct {
	collection *mongo.Collection
}

// NewResultRepository creates a new ResultRepository
func NewResultRepository(db *mongo.Database) repositories.ResultRepository {
	return &ResultRepository{
		collection: db.Collection("results"),
	}
}

// FindByDateAndRegion finds the result document for one draw. A missing
// document yields (nil, nil) so the caller can distinguish "unknown draw"
// from a store failure.
func (r *ResultRepository) FindByDateAndRegion(ctx context.Context, date, tinh string) (*models.DrawResult, error) {
	var result models.DrawResult
	filter := bson.M{"drawDate": date, "tinh": tinh}
	err := r.collection.FindOne(ctx, filter).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindByDate finds every region's result for one date
func (r *ResultRepository) FindByDate(ctx context.Context, date string) ([]*models.DrawResult, error) {
	filter := bson.M{"drawDate": date}
	opts := options.Find().SetSort(bson.M{"tinh": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []*models.DrawResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = []*models.DrawResult{}
	}
	return results, nil
}

// Upsert writes the full current state of a draw result, creating the
// document on first observation
func (r *ResultRepository) Upsert(ctx context.Context, result *models.DrawResult) error {
	now := time.Now()
	result.UpdatedAt = now

	filter := bson.M{"drawDate": result.DrawDate, "tinh": result.Tinh}
	update := bson.M{
		"$set": bson.M{
			"station":     result.Station,
			"tentinh":     result.Tentinh,
			"year":        result.Year,
			"month":       result.Month,
			"slots":       result.Slots,
			"complete":    result.Complete,
			"lastUpdated": result.LastUpdated,
			"updatedAt":   result.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	return err
}
