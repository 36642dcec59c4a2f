package ring

import (
	"github.com/adamjohannes/ouroboros-fs/clusterstate"
)

// pending tracks in-flight ring walks this node originated, so the
// TOPOLOGY DONE / terminal NETMAP HOP handler can hand the result back to
// the goroutine blocked serving the client's original WALK/DISCOVER
// request. One outstanding walk per kind at a time is all the spec's
// scenarios require; a second concurrent walk of the same kind from this
// node waits on the same channel, so each waiter takes whichever
// completion arrives next, not necessarily its own.
type pending struct {
	topology chan string
	netmap   chan map[string]clusterstate.Status
}

func newPending() *pending {
	return &pending{
		topology: make(chan string, 1),
		netmap:   make(chan map[string]clusterstate.Status, 1),
	}
}

func (p *pending) completeTopology(history string) {
	select {
	case p.topology <- history:
	default:
	}
}

func (p *pending) completeNetmap(nm map[string]clusterstate.Status) {
	select {
	case p.netmap <- nm:
	default:
	}
}
