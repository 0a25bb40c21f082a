package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArowuTest/xoso-live-backend/internal/models"
	"github.com/ArowuTest/xoso-live-backend/internal/poller"
)

// PollHandler handles the admin poll-control endpoints
type PollHandler struct {
	manager *poller.Manager
}

// NewPollHandler creates a new PollHandler
func NewPollHandler(manager *poller.Manager) *PollHandler {
	return &PollHandler{manager: manager}
}

// StartPollRequest is the body for POST /polls/start
type StartPollRequest struct {
	Date string `json:"date" binding:"required"`
	Tinh string `json:"tinh" binding:"required"`
}

// Start handles POST /polls/start
func (h *PollHandler) Start(c *gin.Context) {
	var req StartPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date and tinh are required"})
		return
	}

	day, err := models.ParseDrawDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be DD-MM-YYYY"})
		return
	}
	region, ok := models.FindRegion(req.Tinh)
	if !ok || !region.DrawsOn(day) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no draw for this tinh on the given date"})
		return
	}

	if err := h.manager.Start(c.Request.Context(), req.Date, region); err != nil {
		switch {
		case errors.Is(err, poller.ErrAlreadyPolling), errors.Is(err, poller.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "a poll task is already running for this draw"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start poll task"})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"key": models.ChannelKey(region.Station, req.Date, region.Tinh),
	})
}

// Stop handles POST /polls/stop
func (h *PollHandler) Stop(c *gin.Context) {
	var req StartPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date and tinh are required"})
		return
	}
	region, ok := models.FindRegion(req.Tinh)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tinh"})
		return
	}

	if stopped := h.manager.Stop(region.Station, req.Date, region.Tinh); !stopped {
		c.JSON(http.StatusNotFound, gin.H{"error": "no running poll task for this draw"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

// List handles GET /polls
func (h *PollHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active": h.manager.Active()})
}
