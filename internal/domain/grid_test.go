package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRasterGrid_Validate(t *testing.T) {
	g := NewRasterGrid[float32](3, 2, "a", "b")
	require.NoError(t, g.Validate())

	g.Channels["b"] = g.Channels["b"][:5]
	err := g.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), `"b"`)
}

func TestRasterGrid_CloneDoesNotAlias(t *testing.T) {
	g := NewRasterGrid[uint8](2, 2, ChannelCodes)
	g.Channels[ChannelCodes][0] = 10

	c := g.Clone()
	c.Channels[ChannelCodes][0] = 20

	assert.Equal(t, uint8(10), g.Channels[ChannelCodes][0])
	assert.Equal(t, uint8(20), c.Channels[ChannelCodes][0])
}

func TestSoilGrid_ValidateRequiresAllChannels(t *testing.T) {
	s := NewSoilGrid(2, 2)
	require.NoError(t, s.Validate())
	assert.Equal(t, "pH", s.Units[ChannelPH])

	delete(s.Channels, ChannelSilt)
	assert.ErrorContains(t, s.Validate(), "silt")
}

func TestSoilGrid_Clone(t *testing.T) {
	s := NewSoilGrid(1, 1)
	s.Channels[ChannelPH][0] = 6.2

	c := s.Clone()
	c.Channels[ChannelPH][0] = 4
	c.Units[ChannelPH] = "changed"

	assert.InDelta(t, 6.2, s.Channels[ChannelPH][0], 1e-6)
	assert.Equal(t, "pH", s.Units[ChannelPH])
}

func TestWeatherGrid_Accessors(t *testing.T) {
	w := NewWeatherGrid(2, 1)
	w.Precipitation()[1] = 3.5
	w.Temperature()[0] = 11

	require.NoError(t, w.Validate())
	assert.Equal(t, []float32{0, 3.5}, w.Channels[ChannelPrecipitation])
	assert.Equal(t, []float32{11, 0}, w.Channels[ChannelTemperature])
}

func TestLandCoverGrid_ValidateMissingCodes(t *testing.T) {
	l := LandCoverGrid{RasterGrid: NewRasterGrid[uint8](1, 1)}
	assert.ErrorContains(t, l.Validate(), "codes")
}

func TestSuitabilityResult_MarkFallback(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)))
	defer SetClock(nil)

	r := NewSuitabilityResult(7, BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}, 2, 3)
	assert.Len(t, r.Scores, 6)
	assert.Len(t, r.WeatherMask, 6)
	assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), r.ComputedAt)
	assert.False(t, r.Degraded)

	r.MarkFallback(LayerFallback{Weather: true})
	assert.True(t, r.Degraded)
	assert.True(t, r.Summary().Fallback.Weather)
}

func TestSuitabilityResult_JSONUsesNames(t *testing.T) {
	r := NewSuitabilityResult(1, BoundingBox{MaxLon: 1, MaxLat: 1}, 2, 1)
	r.Categories[0] = CategoryIdeal
	r.WeatherMask[1] = WeatherDry

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"categories":["ideal","poor"]`)
	assert.Contains(t, string(data), `"weather_mask":["neutral","dry"]`)

	var back SuitabilityResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Categories, back.Categories)
	assert.Equal(t, r.WeatherMask, back.WeatherMask)
}

func TestCategoryCounts_Add(t *testing.T) {
	var c CategoryCounts
	for _, cat := range []Category{CategoryIdeal, CategoryPoor, CategoryPoor, CategoryCaution} {
		c.Add(cat)
	}
	assert.Equal(t, CategoryCounts{Ideal: 1, Caution: 1, Poor: 2}, c)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "ideal", LandIdeal.String())
	assert.Equal(t, "LandClass(9)", LandClass(9).String())
	assert.Equal(t, "caution", CategoryCaution.String())
	assert.Equal(t, "favourable", WeatherFavourable.String())

	var cat Category
	assert.Error(t, cat.UnmarshalText([]byte("great")))
}
