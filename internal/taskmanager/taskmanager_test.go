package taskmanager

import (
	"testing"
	"time"

	"github.com/adsbnet/mlat-tracker/internal/aircraft"
	"github.com/stretchr/testify/assert"
)

// TestStart_ZeroDurationsRegisterNoJobs exercises the "interval == 0
// disables the job" convention: Start must not panic or block when both
// periodic jobs are turned off, and Shutdown must still succeed.
func TestStart_ZeroDurationsRegisterNoJobs(t *testing.T) {
	assert.NotPanics(t, func() {
		Start(Deps{})
	})
	Shutdown()
}

// TestStart_NilCollaboratorsSkipRegistration covers the nil-guard: a
// positive interval paired with a nil collaborator must not register a job
// that would panic when it eventually fires.
func TestStart_NilCollaboratorsSkipRegistration(t *testing.T) {
	assert.NotPanics(t, func() {
		Start(Deps{DirectoryResync: time.Second, AircraftMaxIdle: time.Second})
	})
	Shutdown()
}

// TestStart_WithRealTrackerDoesNotPanic registers the eviction job against
// a live aircraft.Tracker. The job itself runs on a one-minute cadence
// (registerAircraftEviction), so this only checks registration succeeds
// without blocking or panicking; the eviction logic itself is covered
// directly by aircraft.TestTracker_EvictIdle_RemovesOnlyStale.
func TestStart_WithRealTrackerDoesNotPanic(t *testing.T) {
	tr := aircraft.New()
	tr.Register(1)

	assert.NotPanics(t, func() {
		Start(Deps{Aircraft: tr, AircraftMaxIdle: time.Minute})
	})
	Shutdown()
}

func TestShutdown_WithoutStartIsNoop(t *testing.T) {
	s = nil
	assert.NotPanics(t, func() { Shutdown() })
}
