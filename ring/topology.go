package ring

import (
	"time"

	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/nlog"
	"github.com/pkg/errors"
)

// TopologyWalkTimeout bounds how long a client-facing TOPOLOGY WALK waits
// for its own walk to return, proportional to a full ring traversal.
const TopologyWalkTimeout = 10 * time.Second

// InitiateTopologyWalk handles a client's "TOPOLOGY WALK" (spec §4.3.1).
// This node is the origin: it seeds the accumulator with its own hop,
// forwards to its successor, and blocks until the walk returns via
// TOPOLOGY DONE, then hands the history string back to the client.
func InitiateTopologyWalk(d *Deps) (string, error) {
	self := d.State.Self()
	next, ok := d.State.Successor()
	if !ok {
		return "", errors.New("no successor configured for self")
	}
	hops := [][2]string{{self, next}}

	if next == self {
		// N=1: the ring is just this node; the walk is already complete.
		return clusterstate.EncodeTopologyHistory(hops), nil
	}

	if err := forwardTopologyHop(d, next, hops); err != nil {
		return "", err
	}

	select {
	case history := <-d.pend.topology:
		return history, nil
	case <-time.After(TopologyWalkTimeout):
		return "", errors.New("topology walk timed out")
	}
}

// HandleTopologyHop processes an inbound "TOPOLOGY HOP <history>" (spec
// §4.3.1): append this node's own hop, then either forward onward or —
// if the next forward target is the origin — send TOPOLOGY DONE instead.
func HandleTopologyHop(d *Deps, historyStr string) error {
	hops, err := clusterstate.DecodeTopologyHistory(historyStr)
	if err != nil {
		return err
	}
	if len(hops) == 0 {
		return errors.New("empty topology history")
	}
	origin := hops[0][0]

	next, ok := d.State.Successor()
	if !ok {
		return errors.New("no successor configured for self")
	}
	self := d.State.Self()
	hops = append(hops, [2]string{self, next})

	if next == origin {
		return sendTopologyDone(d, origin, hops)
	}
	return forwardTopologyHop(d, next, hops)
}

// HandleTopologyDone delivers a completed walk's history to whichever
// goroutine is waiting on it as the origin (spec §4.3.1).
func HandleTopologyDone(d *Deps, historyStr string) error {
	d.pend.completeTopology(historyStr)
	return nil
}

func forwardTopologyHop(d *Deps, next string, hops [][2]string) error {
	header := "TOPOLOGY HOP " + clusterstate.EncodeTopologyHistory(hops)
	_, err := sendHeaderOnly(d, next, header)
	if err != nil {
		nlog.Warnf("topology hop to %s failed: %v", next, err)
	}
	return err
}

func sendTopologyDone(d *Deps, origin string, hops [][2]string) error {
	header := "TOPOLOGY DONE " + clusterstate.EncodeTopologyHistory(hops)
	_, err := sendHeaderOnly(d, origin, header)
	if err != nil {
		nlog.Warnf("topology done to %s failed: %v", origin, err)
	}
	return err
}
