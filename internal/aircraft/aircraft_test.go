package aircraft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_RegisterIsIdempotent(t *testing.T) {
	tr := New()
	a1 := tr.Register(0xABCDEF)
	a2 := tr.Register(0xABCDEF)
	assert.Same(t, a1, a2)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_Register_DefaultsAllowMlatAndKalman(t *testing.T) {
	tr := New()
	ac := tr.Register(1)
	assert.True(t, ac.AllowMlat)
	assert.NotNil(t, ac.Kalman)
}

func TestTracker_Get_UnknownAddress(t *testing.T) {
	tr := New()
	_, ok := tr.Get(0x1234)
	assert.False(t, ok)
}

func TestTracker_EvictIdle_RemovesOnlyStale(t *testing.T) {
	tr := New()
	fresh := tr.Register(1)
	stale := tr.Register(2)

	fresh.Seen = float64(time.Now().UnixNano()) / 1e9
	stale.Seen = fresh.Seen - 3600

	n := tr.EvictIdle(time.Minute)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, tr.Len())

	_, ok := tr.Get(1)
	assert.True(t, ok)
	_, ok = tr.Get(2)
	assert.False(t, ok)
}
