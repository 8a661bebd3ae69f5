package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBox_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bbox    BoundingBox
		wantErr string
	}{
		{"valid", BoundingBox{MinLon: -3, MinLat: 50, MaxLon: -2, MaxLat: 51}, ""},
		{"lon reversed", BoundingBox{MinLon: -2, MinLat: 50, MaxLon: -3, MaxLat: 51}, "min_lon"},
		{"lat equal", BoundingBox{MinLon: -3, MinLat: 50, MaxLon: -2, MaxLat: 50}, "min_lat"},
		{"nan", BoundingBox{MinLon: math.NaN(), MinLat: 50, MaxLon: -2, MaxLat: 51}, "non-finite"},
		{"lat out of range", BoundingBox{MinLon: -3, MinLat: 50, MaxLon: -2, MaxLat: 91}, "latitude"},
		{"lon out of range", BoundingBox{MinLon: -181, MinLat: 50, MaxLon: -2, MaxLat: 51}, "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bbox.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidBBox)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBoundingBox_CellCenter(t *testing.T) {
	b := BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 4, MaxLat: 2}

	lat, lon := b.CellCenter(0, 0, 4, 2)
	assert.InDelta(t, 1.5, lat, 1e-12)
	assert.InDelta(t, 0.5, lon, 1e-12)

	lat, lon = b.CellCenter(3, 1, 4, 2)
	assert.InDelta(t, 0.5, lat, 1e-12)
	assert.InDelta(t, 3.5, lon, 1e-12)
}

func TestBoundingBox_Center(t *testing.T) {
	lat, lon := BoundingBox{MinLon: -4, MinLat: 50, MaxLon: 2, MaxLat: 54}.Center()
	assert.InDelta(t, 52.0, lat, 1e-12)
	assert.InDelta(t, -1.0, lon, 1e-12)
}

func TestParseBoundingBox(t *testing.T) {
	b, err := ParseBoundingBox("-9.6, 49.0,3.2,60")
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{MinLon: -9.6, MinLat: 49, MaxLon: 3.2, MaxLat: 60}, b)

	_, err = ParseBoundingBox("1,2,3")
	assert.ErrorIs(t, err, ErrInvalidBBox)

	_, err = ParseBoundingBox("a,2,3,4")
	assert.ErrorIs(t, err, ErrInvalidBBox)

	_, err = ParseBoundingBox("3,2,1,4")
	assert.ErrorIs(t, err, ErrInvalidBBox)
}

func TestBoundingBox_StringRoundTrip(t *testing.T) {
	b := BoundingBox{MinLon: -2.25, MinLat: 51.5, MaxLon: -1.75, MaxLat: 52}
	parsed, err := ParseBoundingBox(b.String())
	require.NoError(t, err)
	assert.Equal(t, b, parsed)
}
