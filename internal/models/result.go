package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Placeholder is the sentinel value for a prize slot whose numbers have not
// been published yet.
const Placeholder = "..."

// Prize slot names, in broadcast order (highest tier first).
const (
	SlotSpecial = "special"
	SlotFirst   = "first"
	SlotSecond  = "second"
	SlotThird   = "third"
	SlotFourth  = "fourth"
	SlotFifth   = "fifth"
	SlotSixth   = "sixth"
	SlotSeventh = "seventh"
	SlotEighth  = "eighth"
)

// SlotValues maps a prize slot name to the numeric codes observed for it so
// far. A missing or empty entry means the slot is still at the placeholder.
type SlotValues map[string][]string

// DrawResult represents the (possibly partial) result of one draw for one
// region on one date.
type DrawResult struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	DrawDate    string             `bson:"drawDate" json:"drawDate"` // DD-MM-YYYY
	Station     string             `bson:"station" json:"station"`   // xsmb, xsmt, xsmn
	Tinh        string             `bson:"tinh" json:"tinh"`         // region slug
	Tentinh     string             `bson:"tentinh" json:"tentinh"`   // region display name
	Year        int                `bson:"year" json:"year"`
	Month       int                `bson:"month" json:"month"`
	Slots       SlotValues         `bson:"slots" json:"slots"`
	Complete    bool               `bson:"complete" json:"complete"`
	LastUpdated time.Time          `bson:"lastUpdated" json:"lastUpdated"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewDrawResult creates an empty DrawResult with every slot at the
// placeholder for the given region and date.
func NewDrawResult(date string, region *Region) *DrawResult {
	slots := make(SlotValues, len(region.SlotNames()))
	for _, name := range region.SlotNames() {
		slots[name] = nil
	}
	year, month := YearMonthOf(date)
	return &DrawResult{
		DrawDate:    date,
		Station:     region.Station,
		Tinh:        region.Tinh,
		Tentinh:     region.Tentinh,
		Year:        year,
		Month:       month,
		Slots:       slots,
		LastUpdated: time.Now(),
	}
}

// SlotValue returns the JSON-encoded value for a slot as stored in the
// fabric hash: a JSON array of codes, or the placeholder literal when the
// slot has no observed codes yet.
func (r *DrawResult) SlotValue(slot string) string {
	codes := r.Slots[slot]
	if len(codes) == 0 {
		return Placeholder
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return Placeholder
	}
	return string(b)
}

// Merge folds newly-observed slot values into the result. Slot values are
// monotonic: a slot never shrinks and never reverts to the placeholder, and
// codes already present are not duplicated. Merge returns the names of the
// slots whose stored value changed.
func (r *DrawResult) Merge(observed SlotValues) []string {
	var changed []string
	for slot, codes := range observed {
		if len(codes) == 0 {
			continue
		}
		existing := r.Slots[slot]
		seen := make(map[string]struct{}, len(existing))
		for _, c := range existing {
			seen[c] = struct{}{}
		}
		grew := false
		for _, c := range codes {
			if c == "" || c == Placeholder {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			existing = append(existing, c)
			seen[c] = struct{}{}
			grew = true
		}
		if grew {
			r.Slots[slot] = existing
			changed = append(changed, slot)
		}
	}
	if len(changed) > 0 {
		r.LastUpdated = time.Now()
	}
	return changed
}

// IsComplete reports whether every slot meets the minimum code count for
// the given threshold table. It has no side effects and is safe to evaluate
// repeatedly.
func (r *DrawResult) IsComplete(minimums map[string]int) bool {
	for slot, min := range minimums {
		if len(r.Slots[slot]) < min {
			return false
		}
	}
	return true
}

// EventComplete is the prizeType of the terminal message published once a
// draw meets every minimum, telling subscribers no further deltas follow.
const EventComplete = "complete"

// LiveMessage is the payload published on the fabric topic for one changed
// prize slot.
type LiveMessage struct {
	PrizeType string `json:"prizeType"`
	PrizeData string `json:"prizeData"`
	Tentinh   string `json:"tentinh"`
	Tinh      string `json:"tinh"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	DrawDate  string `json:"drawDate"`
}

// NewLiveMessage builds the publish payload for one slot of a result.
func NewLiveMessage(r *DrawResult, slot string) LiveMessage {
	return LiveMessage{
		PrizeType: slot,
		PrizeData: r.SlotValue(slot),
		Tentinh:   r.Tentinh,
		Tinh:      r.Tinh,
		Year:      r.Year,
		Month:     r.Month,
		DrawDate:  r.DrawDate,
	}
}
