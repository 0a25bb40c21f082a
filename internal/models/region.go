package models

import (
	"time"
)

// Station identifiers for the three regional draw feeds.
const (
	StationNorth   = "xsmb" // northern draw
	StationCentral = "xsmt" // central provinces
	StationSouth   = "xsmn" // southern provinces
)

// Region describes one province's draw feed: its slugs, which station
// publishes it, and the weekdays it draws on.
type Region struct {
	Tinh     string // URL slug, e.g. "hue"
	Tentinh  string // display name, e.g. "Thừa Thiên Huế"
	Station  string
	Weekdays []time.Weekday
}

// SlotNames returns the prize slots this region's draw publishes, in
// broadcast order.
func (r *Region) SlotNames() []string {
	if r.Station == StationNorth {
		return northSlots
	}
	return southSlots
}

// Minimums returns the per-slot minimum code counts that define a complete
// draw for this region. The north and south/central formats differ and are
// kept as separate tables.
func (r *Region) Minimums() map[string]int {
	if r.Station == StationNorth {
		return northMinimums
	}
	return southMinimums
}

// LiveWindow returns the wall-clock window (local time, minutes since
// midnight) during which this region's draw is broadcast live.
func (r *Region) LiveWindow() (startMin, endMin int) {
	switch r.Station {
	case StationNorth:
		return 18*60 + 10, 18*60 + 40
	case StationCentral:
		return 17*60 + 10, 17*60 + 40
	default:
		return 16*60 + 10, 16*60 + 40
	}
}

// DrawsOn reports whether the region holds a draw on the given date.
func (r *Region) DrawsOn(date time.Time) bool {
	for _, wd := range r.Weekdays {
		if wd == date.Weekday() {
			return true
		}
	}
	return false
}

var southSlots = []string{
	SlotSpecial, SlotFirst, SlotSecond, SlotThird, SlotFourth,
	SlotFifth, SlotSixth, SlotSeventh, SlotEighth,
}

var northSlots = []string{
	SlotSpecial, SlotFirst, SlotSecond, SlotThird, SlotFourth,
	SlotFifth, SlotSixth, SlotSeventh,
}

// southMinimums is the complete-draw threshold table for the south and
// central station formats.
var southMinimums = map[string]int{
	SlotSpecial: 1,
	SlotFirst:   1,
	SlotSecond:  1,
	SlotThird:   2,
	SlotFourth:  7,
	SlotFifth:   1,
	SlotSixth:   3,
	SlotSeventh: 1,
	SlotEighth:  1,
}

// northMinimums is the complete-draw threshold table for the northern
// station format.
var northMinimums = map[string]int{
	SlotSpecial: 1,
	SlotFirst:   1,
	SlotSecond:  2,
	SlotThird:   6,
	SlotFourth:  4,
	SlotFifth:   6,
	SlotSixth:   3,
	SlotSeventh: 4,
}

var everyDay = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// regions is the full schedule table. The northern feed is a single
// rotating draw published every day; central and southern provinces each
// draw on fixed weekdays.
var regions = []Region{
	{Tinh: "mien-bac", Tentinh: "Miền Bắc", Station: StationNorth, Weekdays: everyDay},

	// Central
	{Tinh: "hue", Tentinh: "Thừa Thiên Huế", Station: StationCentral, Weekdays: []time.Weekday{time.Sunday, time.Monday}},
	{Tinh: "phu-yen", Tentinh: "Phú Yên", Station: StationCentral, Weekdays: []time.Weekday{time.Monday}},
	{Tinh: "dak-lak", Tentinh: "Đắk Lắk", Station: StationCentral, Weekdays: []time.Weekday{time.Tuesday}},
	{Tinh: "quang-nam", Tentinh: "Quảng Nam", Station: StationCentral, Weekdays: []time.Weekday{time.Tuesday}},
	{Tinh: "da-nang", Tentinh: "Đà Nẵng", Station: StationCentral, Weekdays: []time.Weekday{time.Wednesday, time.Saturday}},
	{Tinh: "khanh-hoa", Tentinh: "Khánh Hòa", Station: StationCentral, Weekdays: []time.Weekday{time.Wednesday, time.Sunday}},
	{Tinh: "binh-dinh", Tentinh: "Bình Định", Station: StationCentral, Weekdays: []time.Weekday{time.Thursday}},
	{Tinh: "quang-tri", Tentinh: "Quảng Trị", Station: StationCentral, Weekdays: []time.Weekday{time.Thursday}},
	{Tinh: "quang-binh", Tentinh: "Quảng Bình", Station: StationCentral, Weekdays: []time.Weekday{time.Thursday}},
	{Tinh: "gia-lai", Tentinh: "Gia Lai", Station: StationCentral, Weekdays: []time.Weekday{time.Friday}},
	{Tinh: "ninh-thuan", Tentinh: "Ninh Thuận", Station: StationCentral, Weekdays: []time.Weekday{time.Friday}},
	{Tinh: "quang-ngai", Tentinh: "Quảng Ngãi", Station: StationCentral, Weekdays: []time.Weekday{time.Saturday}},
	{Tinh: "dak-nong", Tentinh: "Đắk Nông", Station: StationCentral, Weekdays: []time.Weekday{time.Saturday}},
	{Tinh: "kon-tum", Tentinh: "Kon Tum", Station: StationCentral, Weekdays: []time.Weekday{time.Sunday}},

	// South
	{Tinh: "tphcm", Tentinh: "TP. HCM", Station: StationSouth, Weekdays: []time.Weekday{time.Monday, time.Saturday}},
	{Tinh: "dong-thap", Tentinh: "Đồng Tháp", Station: StationSouth, Weekdays: []time.Weekday{time.Monday}},
	{Tinh: "ca-mau", Tentinh: "Cà Mau", Station: StationSouth, Weekdays: []time.Weekday{time.Monday}},
	{Tinh: "ben-tre", Tentinh: "Bến Tre", Station: StationSouth, Weekdays: []time.Weekday{time.Tuesday}},
	{Tinh: "vung-tau", Tentinh: "Vũng Tàu", Station: StationSouth, Weekdays: []time.Weekday{time.Tuesday}},
	{Tinh: "bac-lieu", Tentinh: "Bạc Liêu", Station: StationSouth, Weekdays: []time.Weekday{time.Tuesday}},
	{Tinh: "dong-nai", Tentinh: "Đồng Nai", Station: StationSouth, Weekdays: []time.Weekday{time.Wednesday}},
	{Tinh: "can-tho", Tentinh: "Cần Thơ", Station: StationSouth, Weekdays: []time.Weekday{time.Wednesday}},
	{Tinh: "soc-trang", Tentinh: "Sóc Trăng", Station: StationSouth, Weekdays: []time.Weekday{time.Wednesday}},
	{Tinh: "tay-ninh", Tentinh: "Tây Ninh", Station: StationSouth, Weekdays: []time.Weekday{time.Thursday}},
	{Tinh: "an-giang", Tentinh: "An Giang", Station: StationSouth, Weekdays: []time.Weekday{time.Thursday}},
	{Tinh: "binh-thuan", Tentinh: "Bình Thuận", Station: StationSouth, Weekdays: []time.Weekday{time.Thursday}},
	{Tinh: "vinh-long", Tentinh: "Vĩnh Long", Station: StationSouth, Weekdays: []time.Weekday{time.Friday}},
	{Tinh: "binh-duong", Tentinh: "Bình Dương", Station: StationSouth, Weekdays: []time.Weekday{time.Friday}},
	{Tinh: "tra-vinh", Tentinh: "Trà Vinh", Station: StationSouth, Weekdays: []time.Weekday{time.Friday}},
	{Tinh: "long-an", Tentinh: "Long An", Station: StationSouth, Weekdays: []time.Weekday{time.Saturday}},
	{Tinh: "hau-giang", Tentinh: "Hậu Giang", Station: StationSouth, Weekdays: []time.Weekday{time.Saturday}},
	{Tinh: "tien-giang", Tentinh: "Tiền Giang", Station: StationSouth, Weekdays: []time.Weekday{time.Sunday}},
	{Tinh: "kien-giang", Tentinh: "Kiên Giang", Station: StationSouth, Weekdays: []time.Weekday{time.Sunday}},
	{Tinh: "da-lat", Tentinh: "Đà Lạt", Station: StationSouth, Weekdays: []time.Weekday{time.Sunday}},
}

// FindRegion looks up a region by its tinh slug.
func FindRegion(tinh string) (*Region, bool) {
	for i := range regions {
		if regions[i].Tinh == tinh {
			return &regions[i], true
		}
	}
	return nil, false
}

// RegionsForDate returns every region that holds a draw on the given date.
func RegionsForDate(date time.Time) []*Region {
	var out []*Region
	for i := range regions {
		if regions[i].DrawsOn(date) {
			out = append(out, &regions[i])
		}
	}
	return out
}

// ValidRegion reports whether the region identified by tinh exists, belongs
// to the given station, and draws on the given date.
func ValidRegion(station, tinh string, date time.Time) (*Region, bool) {
	region, ok := FindRegion(tinh)
	if !ok || region.Station != station || !region.DrawsOn(date) {
		return nil, false
	}
	return region, true
}
