package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ArowuTest/xoso-live-backend/internal/fabric"
	"github.com/ArowuTest/xoso-live-backend/internal/models"
	"github.com/ArowuTest/xoso-live-backend/internal/repositories"
)

// ResultService defines the interface for draw-result state operations
type ResultService interface {
	// Snapshot returns the current known state of a draw, including
	// placeholders for slots not yet observed.
	Snapshot(ctx context.Context, date string, region *models.Region) (*models.DrawResult, error)

	// Merge folds newly-observed slot values into the stored state and
	// returns the updated result plus the slots that changed. A merge that
	// changes nothing performs no writes. The durable store is committed
	// before the cache: when Merge returns a non-empty changed list together
	// with an error, the durable write succeeded and the caller must still
	// publish those slots, because the next cycle's change detection reads
	// the committed state and will not flag them again.
	Merge(ctx context.Context, date string, region *models.Region, observed models.SlotValues) (*models.DrawResult, []string, error)

	// History returns every stored result for a date from the durable
	// store.
	History(ctx context.Context, date string) ([]*models.DrawResult, error)
}

// NewResultService creates a new ResultService backed by the fabric cache
// and the durable repository
func NewResultService(fab fabric.Fabric, repo repositories.ResultRepository, cacheTTL time.Duration) ResultService {
	return &resultService{fabric: fab, repo: repo, cacheTTL: cacheTTL}
}

type resultService struct {
	fabric   fabric.Fabric
	repo     repositories.ResultRepository
	cacheTTL time.Duration
}

func (s *resultService) Snapshot(ctx context.Context, date string, region *models.Region) (*models.DrawResult, error) {
	key := models.ChannelKey(region.Station, date, region.Tinh)
	hash, err := s.fabric.HGetAll(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(hash) > 0 {
		result := models.NewDrawResult(date, region)
		decodeHash(result, hash)
		meta, err := s.fabric.HGetAll(ctx, models.MetaKey(region.Station, date, region.Tinh))
		if err == nil {
			decodeMeta(result, meta)
		}
		return result, nil
	}

	// cache miss: fall back to the durable store
	stored, err := s.repo.FindByDateAndRegion(ctx, date, region.Tinh)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		// rebuild placeholder entries for slots the stored document lacks
		for _, slot := range region.SlotNames() {
			if _, ok := stored.Slots[slot]; !ok {
				stored.Slots[slot] = nil
			}
		}
		return stored, nil
	}
	return models.NewDrawResult(date, region), nil
}

func (s *resultService) Merge(ctx context.Context, date string, region *models.Region, observed models.SlotValues) (*models.DrawResult, []string, error) {
	result, err := s.Snapshot(ctx, date, region)
	if err != nil {
		return nil, nil, err
	}

	changed := result.Merge(observed)
	wasComplete := result.Complete
	result.Complete = result.IsComplete(region.Minimums())

	if len(changed) == 0 && result.Complete == wasComplete {
		// byte-identical with stored state: skip the write and any
		// downstream publish
		return result, nil, nil
	}

	// durable store first. A failure here leaves both stores untouched, so
	// the next cycle recomputes the same changed set and retries.
	if err := s.repo.Upsert(ctx, result); err != nil {
		return nil, nil, err
	}

	// cache writes are best effort from here on: the changed list is
	// returned alongside any error so the caller still publishes, and reads
	// fall back to the durable store until the cache is rebuilt
	meta := map[string]string{
		"tentinh":     result.Tentinh,
		"tinh":        result.Tinh,
		"year":        strconv.Itoa(result.Year),
		"month":       strconv.Itoa(result.Month),
		"complete":    strconv.FormatBool(result.Complete),
		"lastUpdated": result.LastUpdated.Format(time.RFC3339),
	}
	if err := s.fabric.HSet(ctx, models.MetaKey(region.Station, date, region.Tinh), meta, s.cacheTTL); err != nil {
		return result, changed, err
	}

	// write every known slot, not just the changed ones, so a cache rebuilt
	// after an expiry or a failed write is never partial
	key := models.ChannelKey(region.Station, date, region.Tinh)
	fields := make(map[string]string, len(result.Slots))
	for _, slot := range region.SlotNames() {
		if len(result.Slots[slot]) > 0 {
			fields[slot] = result.SlotValue(slot)
		}
	}
	if len(fields) > 0 {
		if err := s.fabric.HSet(ctx, key, fields, s.cacheTTL); err != nil {
			return result, changed, err
		}
	}
	return result, changed, nil
}

func (s *resultService) History(ctx context.Context, date string) ([]*models.DrawResult, error) {
	return s.repo.FindByDate(ctx, date)
}

// decodeHash rebuilds slot state from the fabric hash. Fields hold either
// the placeholder literal or a JSON array of codes.
func decodeHash(result *models.DrawResult, hash map[string]string) {
	for field, raw := range hash {
		if raw == models.Placeholder || raw == "" {
			continue
		}
		var codes []string
		if err := json.Unmarshal([]byte(raw), &codes); err != nil {
			continue
		}
		result.Slots[field] = codes
	}
}

func decodeMeta(result *models.DrawResult, meta map[string]string) {
	if v := meta["tentinh"]; v != "" {
		result.Tentinh = v
	}
	if v := meta["complete"]; v != "" {
		result.Complete = v == "true"
	}
	if v := meta["lastUpdated"]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			result.LastUpdated = t
		}
	}
}
