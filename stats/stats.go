// Package stats tracks per-node counters using prometheus client types
// (spec-adjacent ambient concern; see SPEC_FULL.md §11). Counters are
// never exposed over HTTP — the wire protocol stays TCP-only per spec
// §1 — they are periodically rendered to the log the way aistore's stats
// runner narrates its counters.
package stats

import (
	"github.com/adamjohannes/ouroboros-fs/cmn/nlog"
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every counter/gauge this node maintains.
type Collector struct {
	reg *prometheus.Registry

	pushBytes prometheus.Counter
	pullBytes prometheus.Counter
	pushCount prometheus.Counter
	pullCount prometheus.Counter
	healCount prometheus.Counter
	probeFail prometheus.Counter
	probeOK   prometheus.Counter
}

func New(nodeAddr string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		pushBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ouroboros_push_bytes_total", Help: "bytes stored locally from FILE PUSH/RELAY-STREAM bodies",
			ConstLabels: prometheus.Labels{"node": nodeAddr},
		}),
		pullBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ouroboros_pull_bytes_total", Help: "bytes streamed to clients for FILE PULL requests",
			ConstLabels: prometheus.Labels{"node": nodeAddr},
		}),
		pushCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ouroboros_push_total", Help: "chunks stored locally from FILE PUSH/RELAY-STREAM bodies",
			ConstLabels: prometheus.Labels{"node": nodeAddr},
		}),
		pullCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ouroboros_pull_total", Help: "FILE PULL requests handled",
			ConstLabels: prometheus.Labels{"node": nodeAddr},
		}),
		healCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ouroboros_heal_total", Help: "successful successor-heal cycles completed",
			ConstLabels: prometheus.Labels{"node": nodeAddr},
		}),
		probeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ouroboros_probe_fail_total", Help: "successor NODE PING probes that failed",
			ConstLabels: prometheus.Labels{"node": nodeAddr},
		}),
		probeOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ouroboros_probe_ok_total", Help: "successor NODE PING probes that succeeded",
			ConstLabels: prometheus.Labels{"node": nodeAddr},
		}),
	}
	reg.MustRegister(c.pushBytes, c.pullBytes, c.pushCount, c.pullCount, c.healCount, c.probeFail, c.probeOK)
	return c
}

func (c *Collector) AddPushBytes(n int64) { c.pushCount.Inc(); c.pushBytes.Add(float64(n)) }
func (c *Collector) AddPullBytes(n int64) { c.pullBytes.Add(float64(n)) }
func (c *Collector) IncPull()             { c.pullCount.Inc() }
func (c *Collector) IncHeal()             { c.healCount.Inc() }
func (c *Collector) IncProbeOK()          { c.probeOK.Inc() }
func (c *Collector) IncProbeFail()        { c.probeFail.Inc() }

// Snapshot gathers the current counter values for the maintenance
// heartbeat log (SPEC_FULL.md §12).
type Snapshot struct {
	PushBytes, PullBytes            float64
	PushCount, PullCount, HealCount float64
	ProbeOK, ProbeFail              float64
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		PushBytes: readCounter(c.pushBytes), PullBytes: readCounter(c.pullBytes),
		PushCount: readCounter(c.pushCount), PullCount: readCounter(c.pullCount),
		HealCount: readCounter(c.healCount),
		ProbeOK:   readCounter(c.probeOK), ProbeFail: readCounter(c.probeFail),
	}
}

func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	_ = c.Write(&m)
	return m.GetCounter().GetValue()
}

// LogSummary narrates the current counters at Info level, modeled on
// aistore's stats runner periodic log line.
func (c *Collector) LogSummary() {
	s := c.Snapshot()
	nlog.Infof("stats: push=%.0f(%.0fB) pull=%.0f(%.0fB) heals=%.0f probes=%.0f/%.0f ok/fail",
		s.PushCount, s.PushBytes, s.PullCount, s.PullBytes, s.HealCount, s.ProbeOK, s.ProbeFail)
}
