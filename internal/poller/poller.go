// Package poller runs one scrape task per in-flight (date, region) pair.
// Each task repeatedly fetches the live page, merges newly-revealed prize
// numbers into the result store, publishes the deltas on the fabric, and
// stops once the draw is complete or its wall-clock budget runs out.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ArowuTest/xoso-live-backend/internal/config"
	"github.com/ArowuTest/xoso-live-backend/internal/fabric"
	"github.com/ArowuTest/xoso-live-backend/internal/models"
	"github.com/ArowuTest/xoso-live-backend/internal/services"
)

var (
	// ErrAlreadyPolling is returned when a task for the channel key is
	// already running in this process.
	ErrAlreadyPolling = errors.New("poller: task already running for key")

	// ErrBusy is returned when another process holds the scrape lease for
	// the channel key.
	ErrBusy = errors.New("poller: lease held elsewhere")
)

// Fetcher fetches and parses the live page for one draw.
type Fetcher interface {
	FetchResults(ctx context.Context, region *models.Region, date string) (models.SlotValues, error)
}

// leaseKey namespaces the scrape lease away from the result hash.
func leaseKey(station, date, tinh string) string {
	return "lease:" + models.ChannelKey(station, date, tinh)
}

// Manager owns the set of running poll tasks, at most one per channel key.
type Manager struct {
	cfg     config.PollerConfig
	fetcher Fetcher
	results services.ResultService
	fabric  fabric.Fabric
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup
}

// NewManager creates a poll task manager.
func NewManager(cfg config.PollerConfig, fetcher Fetcher, results services.ResultService, fab fabric.Fabric, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		fetcher: fetcher,
		results: results,
		fabric:  fab,
		logger:  logger,
		now:     time.Now,
		tasks:   make(map[string]context.CancelFunc),
	}
}

// Start launches a poll task for the given draw. It fails fast with
// ErrAlreadyPolling when this process already runs one for the key, and
// with ErrBusy when the distributed lease is held elsewhere, so duplicate
// concurrent scrapes never produce interleaved writes.
func (m *Manager) Start(ctx context.Context, date string, region *models.Region) error {
	key := models.ChannelKey(region.Station, date, region.Tinh)

	taskCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if _, running := m.tasks[key]; running {
		m.mu.Unlock()
		cancel()
		return ErrAlreadyPolling
	}
	// the real cancel is filed before the lease round-trip, so a concurrent
	// Start for the same key fails fast and a Stop arriving while the lease
	// is being acquired aborts the pending task
	m.tasks[key] = cancel
	m.mu.Unlock()

	// a caller abort during the round-trip also cancels the pending task
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	lease, err := m.acquireLease(taskCtx, date, region)
	if err != nil {
		cancel()
		m.remove(key)
		return err
	}
	if taskCtx.Err() != nil {
		// stopped between acquisition and launch; hand the lease back
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = lease.Release(releaseCtx)
		releaseCancel()
		m.remove(key)
		return taskCtx.Err()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.remove(key)
		defer cancel()
		m.run(taskCtx, date, region, lease)
	}()
	return nil
}

// acquireLease tries the distributed lease a few times before reporting
// the key busy.
func (m *Manager) acquireLease(ctx context.Context, date string, region *models.Region) (fabric.Lease, error) {
	key := leaseKey(region.Station, date, region.Tinh)
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		lease, err := m.fabric.AcquireLease(ctx, key, m.cfg.LeaseTTL)
		if err == nil {
			return lease, nil
		}
		if errors.Is(err, fabric.ErrLeaseHeld) {
			return nil, ErrBusy
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// Stop cancels the task for a channel key, if any.
func (m *Manager) Stop(station, date, tinh string) bool {
	key := models.ChannelKey(station, date, tinh)
	m.mu.Lock()
	cancel, ok := m.tasks[key]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the channel keys with a running task in this process.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.tasks))
	for k := range m.tasks {
		keys = append(keys, k)
	}
	return keys
}

// Shutdown cancels every task and waits for them to release their leases.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, cancel := range m.tasks {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) remove(key string) {
	m.mu.Lock()
	delete(m.tasks, key)
	m.mu.Unlock()
}

// run is the task loop: fetch, merge, publish, then sleep for the cadence
// chosen from the current wall clock. It terminates when the draw is
// complete, the deadline passes, or the task is cancelled; the lease is
// released on every path.
func (m *Manager) run(ctx context.Context, date string, region *models.Region, lease fabric.Lease) {
	key := models.ChannelKey(region.Station, date, region.Tinh)
	logger := m.logger.With("key", key)
	deadline := m.now().Add(m.cfg.Deadline)

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			logger.Warn("lease release failed", "error", err)
		}
	}()

	logger.Info("poll task started", "deadline", deadline)

	for {
		complete := m.cycle(ctx, date, region, logger)
		if complete {
			logger.Info("draw complete, poll task stopping")
			return
		}
		if m.now().After(deadline) {
			logger.Warn("poll task deadline reached before completion")
			return
		}

		if err := lease.Refresh(ctx, m.cfg.LeaseTTL); err != nil {
			logger.Warn("lease lost, poll task stopping", "error", err)
			return
		}

		interval := CadenceAt(m.now(), region, m.cfg.LiveInterval, m.cfg.IdleInterval)
		select {
		case <-ctx.Done():
			logger.Info("poll task cancelled")
			return
		case <-time.After(interval):
		}
	}
}

// cycle performs one fetch-merge-publish pass and reports whether the draw
// is now complete. A failed fetch abandons the cycle without writing; the
// next cycle tries again.
func (m *Manager) cycle(ctx context.Context, date string, region *models.Region, logger *slog.Logger) bool {
	observed, err := m.fetcher.FetchResults(ctx, region, date)
	if err != nil {
		logger.Warn("fetch cycle abandoned", "error", err)
		return false
	}

	result, changed, err := m.results.Merge(ctx, date, region, observed)
	if err != nil {
		if len(changed) == 0 {
			logger.Error("result merge failed", "error", err)
			return false
		}
		// the durable write committed before the cache failure, so these
		// slots will not be flagged again; publishing must happen now
		logger.Warn("cache write failed after durable commit", "error", err)
	}
	if len(changed) == 0 {
		return result.Complete
	}

	// persist happened above; publish strictly after, one message per
	// changed slot. A publish failure is logged but does not roll back the
	// committed write: the stored state stays authoritative for replays.
	topic := models.ChannelKey(region.Station, date, region.Tinh)
	for _, slot := range changed {
		payload, err := json.Marshal(models.NewLiveMessage(result, slot))
		if err != nil {
			continue
		}
		if err := m.fabric.Publish(ctx, topic, payload); err != nil {
			logger.Warn("publish failed", "slot", slot, "error", err)
		}
	}
	if result.Complete {
		payload, err := json.Marshal(models.LiveMessage{
			PrizeType: models.EventComplete,
			PrizeData: "true",
			Tentinh:   result.Tentinh,
			Tinh:      result.Tinh,
			Year:      result.Year,
			Month:     result.Month,
			DrawDate:  result.DrawDate,
		})
		if err == nil {
			if err := m.fabric.Publish(ctx, topic, payload); err != nil {
				logger.Warn("completion publish failed", "error", err)
			}
		}
	}
	logger.Info("published slot updates", "slots", changed, "complete", result.Complete)
	return result.Complete
}
