package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArowuTest/xoso-live-backend/internal/fabric"
	"github.com/ArowuTest/xoso-live-backend/internal/models"
)

const testDate = "02-08-2026"

// stubRepo is an in-memory repositories.ResultRepository.
type stubRepo struct {
	mu      sync.Mutex
	docs    map[string]*models.DrawResult
	upserts int
}

func newStubRepo() *stubRepo {
	return &stubRepo{docs: make(map[string]*models.DrawResult)}
}

func (r *stubRepo) FindByDateAndRegion(ctx context.Context, date, tinh string) (*models.DrawResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[date+"|"+tinh]
	if !ok {
		return nil, nil
	}
	clone := *doc
	clone.Slots = make(models.SlotValues, len(doc.Slots))
	for k, v := range doc.Slots {
		clone.Slots[k] = append([]string(nil), v...)
	}
	return &clone, nil
}

func (r *stubRepo) FindByDate(ctx context.Context, date string) ([]*models.DrawResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DrawResult
	for _, doc := range r.docs {
		if doc.DrawDate == date {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *stubRepo) Upsert(ctx context.Context, result *models.DrawResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *result
	clone.Slots = make(models.SlotValues, len(result.Slots))
	for k, v := range result.Slots {
		clone.Slots[k] = append([]string(nil), v...)
	}
	r.docs[result.DrawDate+"|"+result.Tinh] = &clone
	r.upserts++
	return nil
}

func region(t *testing.T) *models.Region {
	t.Helper()
	r, ok := models.FindRegion("hue")
	require.True(t, ok)
	return r
}

func TestSnapshotOfUnknownDrawIsAllPlaceholders(t *testing.T) {
	svc := NewResultService(fabric.NewMemoryFabric(), newStubRepo(), time.Hour)

	snap, err := svc.Snapshot(context.Background(), testDate, region(t))
	require.NoError(t, err)
	for _, slot := range region(t).SlotNames() {
		assert.Equal(t, models.Placeholder, snap.SlotValue(slot))
	}
	assert.False(t, snap.Complete)
}

func TestMergeWritesCacheAndDurableStore(t *testing.T) {
	fab := fabric.NewMemoryFabric()
	repo := newStubRepo()
	svc := NewResultService(fab, repo, time.Hour)

	_, changed, err := svc.Merge(context.Background(), testDate, region(t), models.SlotValues{
		models.SlotSpecial: {"123456"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.SlotSpecial}, changed)

	// fabric hash carries the slot value
	key := models.ChannelKey("xsmt", testDate, "hue")
	hash, err := fab.HGetAll(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, `["123456"]`, hash[models.SlotSpecial])

	// meta hash carries the display metadata
	meta, err := fab.HGetAll(context.Background(), models.MetaKey("xsmt", testDate, "hue"))
	require.NoError(t, err)
	assert.Equal(t, "hue", meta["tinh"])
	assert.Equal(t, "false", meta["complete"])

	// durable store has the document
	stored, err := repo.FindByDateAndRegion(context.Background(), testDate, "hue")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"123456"}, stored.Slots[models.SlotSpecial])
	assert.Equal(t, 1, repo.upserts)
}

func TestMergeIdenticalStateSkipsWrites(t *testing.T) {
	fab := fabric.NewMemoryFabric()
	repo := newStubRepo()
	svc := NewResultService(fab, repo, time.Hour)

	observed := models.SlotValues{models.SlotSpecial: {"123456"}}
	_, _, err := svc.Merge(context.Background(), testDate, region(t), observed)
	require.NoError(t, err)

	_, changed, err := svc.Merge(context.Background(), testDate, region(t), observed)
	require.NoError(t, err)
	assert.Empty(t, changed, "identical merge must report no changes")
	assert.Equal(t, 1, repo.upserts, "identical merge must not write")
}

func TestSnapshotPrefersCacheThenFallsBackToStore(t *testing.T) {
	fab := fabric.NewMemoryFabric()
	repo := newStubRepo()
	svc := NewResultService(fab, repo, time.Hour)

	_, _, err := svc.Merge(context.Background(), testDate, region(t), models.SlotValues{
		models.SlotSpecial: {"123456"},
		models.SlotEighth:  {"77"},
	})
	require.NoError(t, err)

	// cache hit
	snap, err := svc.Snapshot(context.Background(), testDate, region(t))
	require.NoError(t, err)
	assert.Equal(t, `["123456"]`, snap.SlotValue(models.SlotSpecial))

	// cold cache: a fresh fabric simulates expiry, the durable store answers
	svcCold := NewResultService(fabric.NewMemoryFabric(), repo, time.Hour)
	snap, err = svcCold.Snapshot(context.Background(), testDate, region(t))
	require.NoError(t, err)
	assert.Equal(t, `["77"]`, snap.SlotValue(models.SlotEighth))
	// slots the stored document lacks come back as placeholders
	assert.Equal(t, models.Placeholder, snap.SlotValue(models.SlotFourth))
}

func TestMergeFlipsCompleteOnLastSlot(t *testing.T) {
	fab := fabric.NewMemoryFabric()
	repo := newStubRepo()
	svc := NewResultService(fab, repo, time.Hour)

	full := models.SlotValues{
		models.SlotSpecial: {"123456"},
		models.SlotFirst:   {"654321"},
		models.SlotSecond:  {"11111"},
		models.SlotThird:   {"22222", "33333"},
		models.SlotFourth:  {"10001", "10002", "10003", "10004", "10005", "10006", "10007"},
		models.SlotFifth:   {"4444"},
		models.SlotSixth:   {"5551", "5552", "5553"},
		models.SlotSeventh: {"666"},
	}
	result, _, err := svc.Merge(context.Background(), testDate, region(t), full)
	require.NoError(t, err)
	assert.False(t, result.Complete)

	result, changed, err := svc.Merge(context.Background(), testDate, region(t), models.SlotValues{
		models.SlotEighth: {"77"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{models.SlotEighth}, changed)
	assert.True(t, result.Complete)

	meta, err := fab.HGetAll(context.Background(), models.MetaKey("xsmt", testDate, "hue"))
	require.NoError(t, err)
	assert.Equal(t, "true", meta["complete"])
}

// flakyFabric fails the first HSet against a meta key, then behaves.
type flakyFabric struct {
	*fabric.MemoryFabric
	failedOnce bool
}

func (f *flakyFabric) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if !f.failedOnce && strings.HasSuffix(key, ":meta") {
		f.failedOnce = true
		return errors.New("write timeout")
	}
	return f.MemoryFabric.HSet(ctx, key, fields, ttl)
}

// failingOnceRepo fails its first Upsert, then behaves.
type failingOnceRepo struct {
	*stubRepo
	failedOnce bool
}

func (r *failingOnceRepo) Upsert(ctx context.Context, result *models.DrawResult) error {
	if !r.failedOnce {
		r.failedOnce = true
		return errors.New("server selection timeout")
	}
	return r.stubRepo.Upsert(ctx, result)
}

func TestMergeCacheFailureStillCommitsAndReportsChanges(t *testing.T) {
	fab := &flakyFabric{MemoryFabric: fabric.NewMemoryFabric()}
	repo := newStubRepo()
	svc := NewResultService(fab, repo, time.Hour)

	observed := models.SlotValues{models.SlotSpecial: {"123456"}}

	// the cache write fails, but the durable store is already committed and
	// the changed slots are reported so the caller can still publish
	_, changed, err := svc.Merge(context.Background(), testDate, region(t), observed)
	require.Error(t, err)
	assert.Equal(t, []string{models.SlotSpecial}, changed)
	assert.Equal(t, 1, repo.upserts)

	// the committed state is readable straight away
	snap, err := svc.Snapshot(context.Background(), testDate, region(t))
	require.NoError(t, err)
	assert.Equal(t, `["123456"]`, snap.SlotValue(models.SlotSpecial))

	// a healthy repeat of the same observation is a plain no-op, not a
	// lost update
	_, changed, err = svc.Merge(context.Background(), testDate, region(t), observed)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, 1, repo.upserts)
}

func TestMergeRetriesAfterDurableWriteFailure(t *testing.T) {
	fab := fabric.NewMemoryFabric()
	repo := &failingOnceRepo{stubRepo: newStubRepo()}
	svc := NewResultService(fab, repo, time.Hour)

	observed := models.SlotValues{models.SlotSpecial: {"123456"}}

	_, changed, err := svc.Merge(context.Background(), testDate, region(t), observed)
	require.Error(t, err)
	assert.Empty(t, changed, "nothing committed, nothing to publish")

	// the failed merge must not leave slots in the cache, or the retry
	// would see them as unchanged
	hash, err := fab.HGetAll(context.Background(), models.ChannelKey("xsmt", testDate, "hue"))
	require.NoError(t, err)
	assert.Empty(t, hash)

	// the next cycle re-detects the same slots and commits them
	_, changed, err = svc.Merge(context.Background(), testDate, region(t), observed)
	require.NoError(t, err)
	assert.Equal(t, []string{models.SlotSpecial}, changed)
	assert.Equal(t, 1, repo.upserts)
}

func TestHistoryReadsDurableStore(t *testing.T) {
	fab := fabric.NewMemoryFabric()
	repo := newStubRepo()
	svc := NewResultService(fab, repo, time.Hour)

	_, _, err := svc.Merge(context.Background(), testDate, region(t), models.SlotValues{
		models.SlotSpecial: {"123456"},
	})
	require.NoError(t, err)

	results, err := svc.History(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hue", results[0].Tinh)
}
