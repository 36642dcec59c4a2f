package stats_test

import (
	"testing"

	"github.com/adamjohannes/ouroboros-fs/stats"
)

func TestCountersAccumulate(t *testing.T) {
	c := stats.New("127.0.0.1:7001")

	c.AddPushBytes(100)
	c.AddPushBytes(50)
	c.AddPullBytes(30)
	c.IncPull()
	c.IncHeal()
	c.IncProbeOK()
	c.IncProbeOK()
	c.IncProbeFail()

	snap := c.Snapshot()
	if snap.PushBytes != 150 {
		t.Errorf("PushBytes = %v, want 150", snap.PushBytes)
	}
	if snap.PushCount != 2 {
		t.Errorf("PushCount = %v, want 2 (one per AddPushBytes call)", snap.PushCount)
	}
	if snap.PullBytes != 30 {
		t.Errorf("PullBytes = %v, want 30", snap.PullBytes)
	}
	if snap.PullCount != 1 {
		t.Errorf("PullCount = %v, want 1", snap.PullCount)
	}
	if snap.HealCount != 1 {
		t.Errorf("HealCount = %v, want 1", snap.HealCount)
	}
	if snap.ProbeOK != 2 {
		t.Errorf("ProbeOK = %v, want 2", snap.ProbeOK)
	}
	if snap.ProbeFail != 1 {
		t.Errorf("ProbeFail = %v, want 1", snap.ProbeFail)
	}
}

func TestDistinctNodesHaveIndependentRegistries(t *testing.T) {
	a := stats.New("127.0.0.1:7001")
	b := stats.New("127.0.0.1:7002")
	a.AddPullBytes(10)
	if b.Snapshot().PullBytes != 0 {
		t.Fatalf("stats collectors for different nodes must not share state")
	}
}
