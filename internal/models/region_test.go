package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDrawDate(t *testing.T) {
	day, err := ParseDrawDate("02-08-2026")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day.Weekday())
	assert.Equal(t, 2026, day.Year())

	_, err = ParseDrawDate("2026-08-02")
	assert.Error(t, err)

	_, err = ParseDrawDate("32-01-2026")
	assert.Error(t, err)
}

func TestChannelKeyFormat(t *testing.T) {
	assert.Equal(t, "xsmt:02-08-2026:hue", ChannelKey("xsmt", "02-08-2026", "hue"))
	assert.Equal(t, "xsmt:02-08-2026:hue:meta", MetaKey("xsmt", "02-08-2026", "hue"))
}

func TestValidRegion(t *testing.T) {
	sunday, err := ParseDrawDate("02-08-2026")
	require.NoError(t, err)

	region, ok := ValidRegion(StationCentral, "hue", sunday)
	require.True(t, ok)
	assert.Equal(t, "Thừa Thiên Huế", region.Tentinh)

	// right region, wrong station
	_, ok = ValidRegion(StationSouth, "hue", sunday)
	assert.False(t, ok)

	// region exists but does not draw on this weekday
	tuesday := sunday.AddDate(0, 0, 2)
	_, ok = ValidRegion(StationCentral, "hue", tuesday)
	assert.False(t, ok)

	_, ok = ValidRegion(StationCentral, "nowhere", sunday)
	assert.False(t, ok)
}

func TestRegionsForDateIncludesNorthEveryDay(t *testing.T) {
	for d := 0; d < 7; d++ {
		day := time.Date(2026, 8, 2+d, 0, 0, 0, 0, time.UTC)
		regions := RegionsForDate(day)
		found := false
		for _, r := range regions {
			if r.Tinh == "mien-bac" {
				found = true
			}
		}
		assert.True(t, found, "mien-bac must draw on %s", day.Weekday())
	}
}

func TestSlotNamesPerStation(t *testing.T) {
	north, _ := FindRegion("mien-bac")
	south, _ := FindRegion("tphcm")

	assert.Len(t, north.SlotNames(), 8)
	assert.NotContains(t, north.SlotNames(), SlotEighth)
	assert.Len(t, south.SlotNames(), 9)
	assert.Contains(t, south.SlotNames(), SlotEighth)
}

func TestMinimumTablesStaySeparate(t *testing.T) {
	north, _ := FindRegion("mien-bac")
	south, _ := FindRegion("hue")

	assert.Equal(t, 2, north.Minimums()[SlotSecond])
	assert.Equal(t, 1, south.Minimums()[SlotSecond])
	assert.Equal(t, 7, south.Minimums()[SlotFourth])
	assert.Equal(t, 4, north.Minimums()[SlotFourth])
}

func TestLiveWindowPerStation(t *testing.T) {
	north, _ := FindRegion("mien-bac")
	south, _ := FindRegion("tphcm")

	nStart, nEnd := north.LiveWindow()
	assert.Equal(t, 18*60+10, nStart)
	assert.Equal(t, 18*60+40, nEnd)

	sStart, _ := south.LiveWindow()
	assert.Equal(t, 16*60+10, sStart)
}
