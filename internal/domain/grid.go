package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrShapeMismatch is returned when a channel's length differs from width*height.
var ErrShapeMismatch = errors.New("grid channel length does not match width*height")

// Soil channel names.
const (
	ChannelOrganicCarbon = "orcdrc"
	ChannelPH            = "phh2o"
	ChannelBulkDensity   = "bdod"
	ChannelSand          = "sand"
	ChannelClay          = "clay"
	ChannelSilt          = "silt"
)

// Land cover and weather channel names.
const (
	ChannelCodes         = "codes"
	ChannelPrecipitation = "precipitation"
	ChannelTemperature   = "temperature"
)

// SoilChannels lists every channel of a SoilGrid in a stable order.
var SoilChannels = []string{
	ChannelOrganicCarbon,
	ChannelPH,
	ChannelBulkDensity,
	ChannelSand,
	ChannelClay,
	ChannelSilt,
}

// Sample is the set of element types a RasterGrid can hold.
type Sample interface {
	~float32 | ~uint8
}

// RasterGrid is a row-major grid of named channels, row 0 northernmost.
type RasterGrid[T Sample] struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Channels map[string][]T `json:"channels"`
}

// NewRasterGrid allocates a zeroed grid with the named channels.
func NewRasterGrid[T Sample](width, height int, channels ...string) RasterGrid[T] {
	g := RasterGrid[T]{
		Width:    width,
		Height:   height,
		Channels: make(map[string][]T, len(channels)),
	}
	for _, name := range channels {
		g.Channels[name] = make([]T, width*height)
	}
	return g
}

// Len returns width*height.
func (g RasterGrid[T]) Len() int { return g.Width * g.Height }

// Channel returns the named channel, or nil if absent.
func (g RasterGrid[T]) Channel(name string) []T { return g.Channels[name] }

// Validate checks the shape contract of every channel.
func (g RasterGrid[T]) Validate() error {
	if g.Width < 0 || g.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", ErrShapeMismatch, g.Width, g.Height)
	}
	want := g.Len()
	for _, name := range slices.Sorted(maps.Keys(g.Channels)) {
		if got := len(g.Channels[name]); got != want {
			return fmt.Errorf("%w: channel %q has %d values, want %d", ErrShapeMismatch, name, got, want)
		}
	}
	return nil
}

// Clone returns a deep copy so the receiver can be handed off without aliasing.
func (g RasterGrid[T]) Clone() RasterGrid[T] {
	out := RasterGrid[T]{
		Width:    g.Width,
		Height:   g.Height,
		Channels: make(map[string][]T, len(g.Channels)),
	}
	for name, data := range g.Channels {
		out.Channels[name] = slices.Clone(data)
	}
	return out
}

// SoilGrid carries the six soil property channels plus their unit labels.
type SoilGrid struct {
	RasterGrid[float32]
	Units map[string]string `json:"units"`
}

// NewSoilGrid allocates a soil grid with every soil channel and the standard unit labels.
func NewSoilGrid(width, height int) SoilGrid {
	return SoilGrid{
		RasterGrid: NewRasterGrid[float32](width, height, SoilChannels...),
		Units:      SoilUnits(),
	}
}

// SoilUnits returns the unit label of each soil channel after conversion.
func SoilUnits() map[string]string {
	return map[string]string{
		ChannelOrganicCarbon: "g/kg",
		ChannelPH:            "pH",
		ChannelBulkDensity:   "kg/m³",
		ChannelSand:          "g/kg",
		ChannelClay:          "g/kg",
		ChannelSilt:          "g/kg",
	}
}

// Validate checks the shape and that every soil channel is present.
func (s SoilGrid) Validate() error {
	for _, name := range SoilChannels {
		if _, ok := s.Channels[name]; !ok {
			return fmt.Errorf("soil grid missing channel %q", name)
		}
	}
	return s.RasterGrid.Validate()
}

// Clone returns a deep copy.
func (s SoilGrid) Clone() SoilGrid {
	return SoilGrid{RasterGrid: s.RasterGrid.Clone(), Units: maps.Clone(s.Units)}
}

// LandCoverGrid carries a single channel of land cover class codes.
type LandCoverGrid struct {
	RasterGrid[uint8]
}

// NewLandCoverGrid allocates a land cover grid with a zeroed codes channel.
func NewLandCoverGrid(width, height int) LandCoverGrid {
	return LandCoverGrid{RasterGrid: NewRasterGrid[uint8](width, height, ChannelCodes)}
}

// Codes returns the codes channel.
func (l LandCoverGrid) Codes() []uint8 { return l.Channels[ChannelCodes] }

// Validate checks the shape and that the codes channel is present.
func (l LandCoverGrid) Validate() error {
	if _, ok := l.Channels[ChannelCodes]; !ok {
		return fmt.Errorf("land cover grid missing channel %q", ChannelCodes)
	}
	return l.RasterGrid.Validate()
}

// Clone returns a deep copy.
func (l LandCoverGrid) Clone() LandCoverGrid {
	return LandCoverGrid{RasterGrid: l.RasterGrid.Clone()}
}

// WeatherGrid carries precipitation (mm) and temperature (°C) channels.
type WeatherGrid struct {
	RasterGrid[float32]
}

// NewWeatherGrid allocates a weather grid with zeroed channels.
func NewWeatherGrid(width, height int) WeatherGrid {
	return WeatherGrid{RasterGrid: NewRasterGrid[float32](width, height, ChannelPrecipitation, ChannelTemperature)}
}

// Precipitation returns the precipitation channel.
func (w WeatherGrid) Precipitation() []float32 { return w.Channels[ChannelPrecipitation] }

// Temperature returns the temperature channel.
func (w WeatherGrid) Temperature() []float32 { return w.Channels[ChannelTemperature] }

// Validate checks the shape and that both weather channels are present.
func (w WeatherGrid) Validate() error {
	for _, name := range []string{ChannelPrecipitation, ChannelTemperature} {
		if _, ok := w.Channels[name]; !ok {
			return fmt.Errorf("weather grid missing channel %q", name)
		}
	}
	return w.RasterGrid.Validate()
}

// Clone returns a deep copy.
func (w WeatherGrid) Clone() WeatherGrid {
	return WeatherGrid{RasterGrid: w.RasterGrid.Clone()}
}
