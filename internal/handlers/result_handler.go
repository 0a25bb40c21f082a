package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/xoso-live-backend/internal/broadcast"
	"github.com/ArowuTest/xoso-live-backend/internal/config"
	"github.com/ArowuTest/xoso-live-backend/internal/models"
	"github.com/ArowuTest/xoso-live-backend/internal/services"
)

// ResultHandler handles subscriber-facing result requests: the live event
// stream, the point-in-time snapshot, and the per-date history lookup.
type ResultHandler struct {
	resultService services.ResultService
	registry      *broadcast.Registry
	streamCfg     config.StreamConfig
}

// NewResultHandler creates a new ResultHandler
func NewResultHandler(resultService services.ResultService, registry *broadcast.Registry, streamCfg config.StreamConfig) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		registry:      registry,
		streamCfg:     streamCfg,
	}
}

// parseStreamQuery validates the date/station/tinh triple shared by the
// stream and snapshot endpoints. Invalid parameters are rejected before any
// stream output is produced.
func parseStreamQuery(c *gin.Context) (string, *models.Region, bool) {
	date := c.Query("date")
	station := c.Query("station")
	tinh := c.Query("tinh")

	day, err := models.ParseDrawDate(date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be DD-MM-YYYY"})
		return "", nil, false
	}
	region, ok := models.ValidRegion(station, tinh, day)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no draw for this station/tinh on the given date"})
		return "", nil, false
	}
	return date, region, true
}

// slotEvent shapes one SSE event payload: the slot keyed by its own name
// plus the record metadata.
func slotEvent(slot, value string, result *models.DrawResult) gin.H {
	return gin.H{
		slot:          value,
		"drawDate":    result.DrawDate,
		"tentinh":     result.Tentinh,
		"tinh":        result.Tinh,
		"year":        result.Year,
		"month":       result.Month,
		"lastUpdated": result.LastUpdated.Format(time.RFC3339),
	}
}

// Live handles GET /results/live. The session registers before the state
// read: an update published while the replay is being written is buffered
// in the session channel and delivered right after it, so nothing falls
// between the snapshot and the first live message, and the replay still
// strictly precedes every live delivery.
func (h *ResultHandler) Live(c *gin.Context) {
	date, region, ok := parseStreamQuery(c)
	if !ok {
		return
	}

	key := models.ChannelKey(region.Station, date, region.Tinh)
	session, err := h.registry.Register(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "live updates unavailable"})
		return
	}
	defer h.registry.Deregister(session)

	snapshot, err := h.resultService.Snapshot(c.Request.Context(), date, region)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "result store unavailable"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	for _, slot := range region.SlotNames() {
		c.SSEvent("message", slotEvent(slot, snapshot.SlotValue(slot), snapshot))
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.streamCfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			// comment line keeps intermediaries from closing an idle
			// connection
			if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
			session.Touch()
		case msg, open := <-session.Events():
			if !open {
				return
			}
			snapshot.LastUpdated = time.Now()
			c.SSEvent("message", gin.H{
				msg.PrizeType: msg.PrizeData,
				"drawDate":    msg.DrawDate,
				"tentinh":     msg.Tentinh,
				"tinh":        msg.Tinh,
				"year":        msg.Year,
				"month":       msg.Month,
				"lastUpdated": snapshot.LastUpdated.Format(time.RFC3339),
			})
			c.Writer.Flush()
			session.Touch()
		}
	}
}

// Current handles GET /results/current: the same known state the stream
// replays, as a single JSON document for snapshot-only clients.
func (h *ResultHandler) Current(c *gin.Context) {
	date, region, ok := parseStreamQuery(c)
	if !ok {
		return
	}

	snapshot, err := h.resultService.Snapshot(c.Request.Context(), date, region)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "result store unavailable"})
		return
	}

	slots := make(gin.H, len(region.SlotNames()))
	for _, slot := range region.SlotNames() {
		slots[slot] = snapshot.SlotValue(slot)
	}
	c.JSON(http.StatusOK, gin.H{
		"drawDate":    snapshot.DrawDate,
		"tentinh":     snapshot.Tentinh,
		"tinh":        snapshot.Tinh,
		"year":        snapshot.Year,
		"month":       snapshot.Month,
		"complete":    snapshot.Complete,
		"lastUpdated": snapshot.LastUpdated.Format(time.RFC3339),
		"slots":       slots,
	})
}

// History handles GET /results/:date, listing every stored region result
// for one date from the durable store.
func (h *ResultHandler) History(c *gin.Context) {
	date := c.Param("date")
	if _, err := models.ParseDrawDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be DD-MM-YYYY"})
		return
	}

	results, err := h.resultService.History(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "result store unavailable"})
		return
	}
	c.JSON(http.StatusOK, results)
}
