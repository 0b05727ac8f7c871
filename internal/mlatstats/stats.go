// Package mlatstats exposes the mlat tracker's pipeline-gate counters as
// Prometheus metrics, backing the mlat.Stats interface the tracker
// reports to. Counter names and the overall registration pattern follow
// the teacher's use of github.com/prometheus/client_golang for exposing
// counters via promhttp.
package mlatstats

import "github.com/prometheus/client_golang/prometheus"

// Collector implements mlat.Stats against the prometheus registerer
// passed to NewCollector, so it can be registered once at startup and
// scraped from the admin mux's /metrics endpoint.
type Collector struct {
	mlatMsgs      prometheus.Counter
	validGroups   prometheus.Counter
	normalize     prometheus.Counter
	solveAttempt  prometheus.Counter
	solveSuccess  prometheus.Counter
	solveUsed     prometheus.Counter
	cohortRotated prometheus.Counter
}

// NewCollector builds and registers every mlat counter against reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mlatMsgs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlat",
			Name:      "msgs_total",
			Help:      "Observations passed to receiver_mlat.",
		}),
		validGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlat",
			Name:      "valid_groups_total",
			Help:      "Groups that decoded to a known, mlat-eligible aircraft.",
		}),
		normalize: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlat",
			Name:      "normalize_total",
			Help:      "Clock-normalize calls issued to the clock tracker.",
		}),
		solveAttempt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlat",
			Name:      "solve_attempt_total",
			Help:      "Solver invocations.",
		}),
		solveSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlat",
			Name:      "solve_success_total",
			Help:      "Solver invocations that returned a usable covariance within the error bound.",
		}),
		solveUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlat",
			Name:      "solve_used_total",
			Help:      "Solves accepted after the output-rate throttle.",
		}),
		cohortRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mlat",
			Name:      "cohort_rotations_total",
			Help:      "Cohort rotations triggered by the age or group-count cap.",
		}),
	}

	reg.MustRegister(c.mlatMsgs, c.validGroups, c.normalize, c.solveAttempt, c.solveSuccess, c.solveUsed, c.cohortRotated)
	return c
}

func (c *Collector) IncMlatMsgs()     { c.mlatMsgs.Inc() }
func (c *Collector) IncValidGroups()  { c.validGroups.Inc() }
func (c *Collector) IncNormalize()    { c.normalize.Inc() }
func (c *Collector) IncSolveAttempt() { c.solveAttempt.Inc() }
func (c *Collector) IncSolveSuccess() { c.solveSuccess.Inc() }
func (c *Collector) IncSolveUsed()    { c.solveUsed.Inc() }
func (c *Collector) IncCohortRotated() { c.cohortRotated.Inc() }
