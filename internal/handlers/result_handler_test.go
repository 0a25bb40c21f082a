package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArowuTest/xoso-live-backend/internal/broadcast"
	"github.com/ArowuTest/xoso-live-backend/internal/config"
	"github.com/ArowuTest/xoso-live-backend/internal/fabric"
	"github.com/ArowuTest/xoso-live-backend/internal/models"
	"github.com/ArowuTest/xoso-live-backend/internal/services"
)

const testDate = "02-08-2026"

// stubRepo is an in-memory repositories.ResultRepository.
type stubRepo struct {
	mu   sync.Mutex
	docs map[string]*models.DrawResult
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
	return doc, nil
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
	r.docs[result.DrawDate+"|"+result.Tinh] = result
	return nil
}

type fixture struct {
	router   *gin.Engine
	fab      *fabric.MemoryFabric
	registry *broadcast.Registry
	service  services.ResultService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fab := fabric.NewMemoryFabric()
	svc := services.NewResultService(fab, newStubRepo(), time.Hour)

	streamCfg := config.StreamConfig{
		HeartbeatInterval: 30 * time.Millisecond,
		IdleTimeout:       5 * time.Minute,
		SweepInterval:     time.Minute,
		DedupWindow:       10 * time.Minute,
		FanoutChunkSize:   64,
		SessionBuffer:     32,
	}
	logger := slog.New(slog.NewTextHandler(handlerTestWriter{t}, nil))
	registry := broadcast.NewRegistry(streamCfg, fab, logger)
	t.Cleanup(registry.Close)

	h := NewResultHandler(svc, registry, streamCfg)
	router := gin.New()
	router.GET("/results/live", h.Live)
	router.GET("/results/current", h.Current)
	router.GET("/results/:date", h.History)

	return &fixture{router: router, fab: fab, registry: registry, service: svc}
}

type handlerTestWriter struct{ t *testing.T }

func (w handlerTestWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestLiveRejectsInvalidParamsBeforeStreaming(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		url  string
	}{
		{"missing params", "/results/live"},
		{"bad date format", "/results/live?date=2026-08-02&station=xsmt&tinh=hue"},
		{"unknown region", "/results/live?date=02-08-2026&station=xsmt&tinh=nowhere"},
		{"wrong station", "/results/live?date=02-08-2026&station=xsmn&tinh=hue"},
		{"no draw that weekday", "/results/live?date=04-08-2026&station=xsmt&tinh=hue"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			f.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotContains(t, w.Header().Get("Content-Type"), "text/event-stream")
		})
	}
}

func TestCurrentReturnsSnapshotJSON(t *testing.T) {
	f := newFixture(t)

	region, _ := models.FindRegion("hue")
	_, _, err := f.service.Merge(context.Background(), testDate, region, models.SlotValues{
		models.SlotSpecial: {"123456"},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/results/current?date=02-08-2026&station=xsmt&tinh=hue", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		DrawDate string            `json:"drawDate"`
		Tinh     string            `json:"tinh"`
		Complete bool              `json:"complete"`
		Slots    map[string]string `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, testDate, body.DrawDate)
	assert.Equal(t, "hue", body.Tinh)
	assert.False(t, body.Complete)
	assert.Equal(t, `["123456"]`, body.Slots[models.SlotSpecial])
	assert.Equal(t, models.Placeholder, body.Slots[models.SlotEighth])
	assert.Len(t, body.Slots, 9)
}

func TestLiveReplaysKnownStateBeforeLiveEvents(t *testing.T) {
	f := newFixture(t)

	region, _ := models.FindRegion("hue")
	_, _, err := f.service.Merge(context.Background(), testDate, region, models.SlotValues{
		models.SlotSpecial: {"123456"},
		models.SlotFirst:   {"654321"},
	})
	require.NoError(t, err)

	key := models.ChannelKey("xsmt", testDate, "hue")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/results/live?date=02-08-2026&station=xsmt&tinh=hue", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.router.ServeHTTP(w, req)
	}()

	// wait for the session to register, then publish a live update
	waitFor(t, func() bool { return f.registry.SessionCount(key) == 1 })
	payload, _ := json.Marshal(models.LiveMessage{
		PrizeType: models.SlotSecond,
		PrizeData: `["11111"]`,
		Tinh:      "hue",
		Tentinh:   region.Tentinh,
		DrawDate:  testDate,
	})
	require.NoError(t, f.fab.Publish(context.Background(), key, payload))

	// give the live event time to flow through, then close the transport
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	// replay covers every slot, placeholders included
	assert.Contains(t, body, `"special":"[\"123456\"]"`)
	assert.Contains(t, body, `"first":"[\"654321\"]"`)
	assert.Contains(t, body, `"eighth":"..."`)

	// the live event arrives after the full replay
	liveIdx := strings.Index(body, `"second":"[\"11111\"]"`)
	require.GreaterOrEqual(t, liveIdx, 0, "live event missing from stream")
	for _, slot := range region.SlotNames() {
		replayIdx := strings.Index(body, `"`+slot+`"`)
		require.GreaterOrEqual(t, replayIdx, 0)
		if slot != models.SlotSecond {
			assert.Less(t, replayIdx, liveIdx, "replay for %s must precede the live event", slot)
		}
	}

	// heartbeat comment lines keep the connection warm
	assert.Contains(t, body, ": ping")

	// deregistration is synchronous with transport close
	waitFor(t, func() bool { return f.registry.SessionCount(key) == 0 })
}

func TestHistoryListsStoredResults(t *testing.T) {
	f := newFixture(t)

	region, _ := models.FindRegion("hue")
	_, _, err := f.service.Merge(context.Background(), testDate, region, models.SlotValues{
		models.SlotSpecial: {"123456"},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/results/"+testDate, nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var results []models.DrawResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "hue", results[0].Tinh)

	// malformed date is rejected
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/results/not-a-date", nil)
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
