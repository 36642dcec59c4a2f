package ring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/nlog"
	"github.com/pkg/errors"
)

const NetmapDiscoverTimeout = 10 * time.Second

// InitiateNetmapDiscover handles a client's "NETMAP DISCOVER" (spec
// §4.3.2): symmetric to the topology walk, but the accumulator is a set
// of addr=Alive pairs rather than an ordered history, so the wire message
// additionally carries the origin address explicitly (the unordered
// accumulator alone can't reveal it, unlike the topology walk's history).
func InitiateNetmapDiscover(d *Deps) (map[string]clusterstate.Status, error) {
	self := d.State.Self()
	next, ok := d.State.Successor()
	if !ok {
		return nil, errors.New("no successor configured for self")
	}
	acc := map[string]clusterstate.Status{self: clusterstate.Alive}

	if next == self {
		d.State.MergeNetmap(acc)
		return acc, nil
	}

	if err := forwardNetmapHop(d, self, next, acc); err != nil {
		return nil, err
	}

	select {
	case nm := <-d.pend.netmap:
		d.State.MergeNetmap(nm)
		return nm, nil
	case <-time.After(NetmapDiscoverTimeout):
		return nil, errors.New("netmap discover timed out")
	}
}

// HandleNetmapHop processes an inbound "NETMAP HOP <origin> <entries>"
// (spec §4.3.2). If origin is self, the walk has returned — complete it.
// Otherwise append self=Alive and forward to self's successor; forwarding
// to the successor naturally delivers the terminal hop to origin once
// self.next == origin, with no separate DONE verb needed (unlike the
// topology walk, the unordered set representation carries no termination
// ambiguity once origin is explicit).
func HandleNetmapHop(d *Deps, origin, entriesStr string) error {
	acc, err := clusterstate.DecodeNetmap(entriesStr)
	if err != nil {
		return err
	}
	if origin == d.State.Self() {
		d.pend.completeNetmap(acc)
		return nil
	}
	acc[d.State.Self()] = clusterstate.Alive

	next, ok := d.State.Successor()
	if !ok {
		return errors.New("no successor configured for self")
	}
	return forwardNetmapHop(d, origin, next, acc)
}

func forwardNetmapHop(d *Deps, origin, next string, acc map[string]clusterstate.Status) error {
	header := fmt.Sprintf("NETMAP HOP %s %s", origin, clusterstate.EncodeNetmap(acc))
	_, err := sendHeaderOnly(d, next, header)
	if err != nil {
		nlog.Warnf("netmap hop to %s failed: %v", next, err)
	}
	return err
}

// FormatNetmapCSV renders the netmap the way NETMAP GET/DISCOVER respond
// to a client: "addr,Alive|Dead\n" records terminated by socket close.
func FormatNetmapCSV(nm map[string]clusterstate.Status) string {
	var b strings.Builder
	for _, addr := range sortedAddrs(nm) {
		fmt.Fprintf(&b, "%s,%s\n", addr, nm[addr])
	}
	return b.String()
}

func sortedAddrs(nm map[string]clusterstate.Status) []string {
	out := make([]string, 0, len(nm))
	for a := range nm {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
