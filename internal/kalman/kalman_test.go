package kalman

import (
	"testing"

	"github.com/adsbnet/mlat-tracker/internal/geodesy"
	"github.com/stretchr/testify/assert"
)

func unitCov() *[3][3]float64 {
	return &[3][3]float64{{100, 0, 0}, {0, 100, 0}, {0, 0, 100}}
}

func TestFilter_FirstUpdate_SeedsPositionExactly(t *testing.T) {
	f := New()
	pos := geodesy.ECEF{1000, 2000, 3000}

	ok := f.Update(10, nil, 0, 0, pos, unitCov(), 4, 1)
	assert.True(t, ok)
	assert.Equal(t, pos, f.Position())
}

func TestFilter_RepeatedIdenticalObservation_NoMotion(t *testing.T) {
	f := New()
	pos := geodesy.ECEF{1000, 2000, 3000}

	f.Update(10, nil, 0, 0, pos, unitCov(), 4, 1)
	ok := f.Update(11, nil, 0, 0, pos, unitCov(), 4, 1)
	assert.True(t, ok)
	assert.InDelta(t, pos[0], f.Position()[0], 1e-6)
	assert.InDelta(t, pos[1], f.Position()[1], 1e-6)
	assert.InDelta(t, pos[2], f.Position()[2], 1e-6)
}

func TestFilter_LargeJump_RejectedAsOutlier(t *testing.T) {
	f := New()
	f.Update(10, nil, 0, 0, geodesy.ECEF{0, 0, 0}, unitCov(), 4, 1)

	ok := f.Update(11, nil, 0, 0, geodesy.ECEF{1e6, 1e6, 1e6}, unitCov(), 4, 1)
	assert.False(t, ok)
	assert.Equal(t, geodesy.ECEF{0, 0, 0}, f.Position())
}

func TestFilter_SameWallTime_DoesNotPanic(t *testing.T) {
	f := New()
	f.Update(10, nil, 0, 0, geodesy.ECEF{0, 0, 0}, unitCov(), 4, 1)
	assert.NotPanics(t, func() {
		f.Update(10, nil, 0, 0, geodesy.ECEF{1, 1, 1}, unitCov(), 4, 1)
	})
}
