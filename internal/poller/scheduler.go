package poller

import (
	"time"

	"github.com/ArowuTest/xoso-live-backend/internal/models"
)

// CadenceAt selects the polling interval for a cycle starting at t. During
// the region's live broadcast window the short interval applies; outside it
// the long one. The decision is recomputed from the wall clock every cycle,
// never cached, so a task that straddles the window boundary tightens or
// relaxes on its next cycle.
func CadenceAt(t time.Time, region *models.Region, live, idle time.Duration) time.Duration {
	startMin, endMin := region.LiveWindow()
	minute := t.Hour()*60 + t.Minute()
	if minute >= startMin && minute < endMin {
		return live
	}
	return idle
}
