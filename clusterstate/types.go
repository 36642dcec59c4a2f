// Package clusterstate holds the three shared cluster-wide tables — NetMap,
// Topology, FileTags — each guarded by its own reader/writer lock per
// spec §3/§4.2/§9 ("three independent rwlock-guarded mappings ... do not
// merge them into a single lock").
package clusterstate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/adamjohannes/ouroboros-fs/cmn/cos"
)

// Status is a NetMap entry's liveness.
type Status int

const (
	Alive Status = iota
	Dead
)

func (s Status) String() string {
	if s == Alive {
		return "Alive"
	}
	return "Dead"
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "Alive":
		return Alive, nil
	case "Dead":
		return Dead, nil
	default:
		return Dead, cos.NewErrMalformedHeader("bad status %q", s)
	}
}

// FileTag is the FileTags table's value: total size and the node holding
// chunk 0, per spec §3.
type FileTag struct {
	Size  int64
	Start string
}

// EncodeNetmap renders entries as "addr=Alive,addr=Dead,..." (spec §6,
// NETMAP SET payload format). Deterministic order for reproducible tests.
func EncodeNetmap(m map[string]Status) string {
	addrs := sortedKeys(m)
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a+"="+m[a].String())
	}
	return strings.Join(parts, ",")
}

// DecodeNetmap parses the NETMAP SET wire format.
func DecodeNetmap(s string) (map[string]Status, error) {
	out := make(map[string]Status)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, cos.NewErrMalformedHeader("bad netmap entry %q", pair)
		}
		st, err := ParseStatus(kv[1])
		if err != nil {
			return nil, err
		}
		out[kv[0]] = st
	}
	return out, nil
}

// EncodeTopologyHistory renders the ring-walk accumulator as
// "addr->addr;addr->addr;..." (spec §4.3.1).
func EncodeTopologyHistory(hops [][2]string) string {
	parts := make([]string, 0, len(hops))
	for _, h := range hops {
		parts = append(parts, h[0]+"->"+h[1])
	}
	return strings.Join(parts, ";")
}

// DecodeTopologyHistory parses the TOPOLOGY HOP/DONE/WALK-result history.
func DecodeTopologyHistory(s string) ([][2]string, error) {
	if s == "" {
		return nil, nil
	}
	segs := strings.Split(s, ";")
	out := make([][2]string, 0, len(segs))
	for _, seg := range segs {
		parts := strings.SplitN(seg, "->", 2)
		if len(parts) != 2 {
			return nil, cos.NewErrMalformedHeader("bad topology hop %q", seg)
		}
		out = append(out, [2]string{parts[0], parts[1]})
	}
	return out, nil
}

// TopologyToMap collapses a history into addr->successor, taking the last
// occurrence of each origin (wholesale-replace semantics, spec §4.2).
func TopologyToMap(hops [][2]string) map[string]string {
	out := make(map[string]string, len(hops))
	for _, h := range hops {
		out[h[0]] = h[1]
	}
	return out
}

// EncodeFileTagsCSV renders FileTags as "name,size,start\n" records (spec
// §4.3.6 FILE LIST, and §4.3.3 FILE TAGS-SET body).
func EncodeFileTagsCSV(tags map[string]FileTag) string {
	names := make([]string, 0, len(tags))
	for n := range tags {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		t := tags[n]
		fmt.Fprintf(&b, "%s,%d,%s\n", n, t.Size, t.Start)
	}
	return b.String()
}

// DecodeFileTagsCSV parses the FILE TAGS-SET / FILE LIST body format.
func DecodeFileTagsCSV(body string) (map[string]FileTag, error) {
	out := make(map[string]FileTag)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 3)
		if len(fields) != 3 {
			return nil, cos.NewErrMalformedHeader("bad file-tag record %q", line)
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, cos.NewErrMalformedHeader("bad size in record %q", line)
		}
		out[fields[0]] = FileTag{Size: size, Start: fields[2]}
	}
	return out, nil
}

func sortedKeys(m map[string]Status) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
