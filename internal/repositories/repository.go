package repositories

import (
	"context"

	"github.com/ArowuTest/xoso-live-backend/internal/models"
)

// ResultRepository defines the interface for durable draw-result storage.
// The backing store only needs find/upsert semantics; everything else in
// the system treats it as opaque.
type ResultRepository interface {
	FindByDateAndRegion(ctx context.Context, date, tinh string) (*models.DrawResult, error)
	FindByDate(ctx context.Context, date string) ([]*models.DrawResult, error)
	Upsert(ctx context.Context, result *models.DrawResult) error
}
