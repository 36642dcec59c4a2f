package ring

import (
	"bufio"
	"fmt"

	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/cos"
	"github.com/adamjohannes/ouroboros-fs/cmn/wire"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// sendHeaderOnly dials addr, sends a bare header line, and returns its
// single-line text response (spec §4.3.3: point-to-point push, "OK").
func sendHeaderOnly(d *Deps, addr, header string) (string, error) {
	conn, err := dial(addr, d.Cfg.TProbe)
	if err != nil {
		return "", errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()
	if err := wire.WriteHeader(conn, header); err != nil {
		return "", errors.Wrapf(err, "write header to %s", addr)
	}
	resp, err := wire.ReadHeader(bufio.NewReader(conn))
	if err != nil {
		return "", errors.Wrapf(err, "read response from %s", addr)
	}
	return resp, nil
}

// sendWithBody dials addr, sends a header declaring body's length, writes
// body, and returns the single-line text response.
func sendWithBody(d *Deps, addr, header string, body []byte) (string, error) {
	conn, err := dial(addr, d.Cfg.TRelay)
	if err != nil {
		return "", errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()
	if err := wire.WriteHeader(conn, header); err != nil {
		return "", errors.Wrapf(err, "write header to %s", addr)
	}
	if _, err := conn.Write(body); err != nil {
		return "", errors.Wrapf(err, "write body to %s", addr)
	}
	resp, err := wire.ReadHeader(bufio.NewReader(conn))
	if err != nil {
		return "", errors.Wrapf(err, "read response from %s", addr)
	}
	return resp, nil
}

// SendNetmapSet pushes the full netmap to a single peer (spec §4.3.3
// NETMAP SET).
func SendNetmapSet(d *Deps, addr string, nm map[string]clusterstate.Status) (string, error) {
	header := "NETMAP SET " + clusterstate.EncodeNetmap(nm)
	return sendHeaderOnly(d, addr, header)
}

// SendTopologySet pushes the full topology to a single peer (spec §4.3.3
// TOPOLOGY SET). The history format doubles as a full-table encoding:
// one addr->successor pair per entry.
func SendTopologySet(d *Deps, addr string, topo map[string]string) (string, error) {
	hops := make([][2]string, 0, len(topo))
	for k, v := range topo {
		hops = append(hops, [2]string{k, v})
	}
	header := "TOPOLOGY SET " + clusterstate.EncodeTopologyHistory(hops)
	return sendHeaderOnly(d, addr, header)
}

// SendFileTagsSet pushes the full file-tags table to a single peer (spec
// §4.3.3 / §6 FILE TAGS-SET <body-len>).
func SendFileTagsSet(d *Deps, addr string, tags map[string]clusterstate.FileTag) (string, error) {
	body := clusterstate.EncodeFileTagsCSV(tags)
	header := fmt.Sprintf("FILE TAGS-SET %d", len(body))
	return sendWithBody(d, addr, header, []byte(body))
}

// BroadcastNetmap fans the current netmap out to every Alive peer except
// self and any addresses in exclude, concurrently (§11: golang.org/x/sync
// errgroup), matching spec §4.4 heal-step broadcasts. Every peer's failure
// is collected via cos.Errs rather than only the first, since a fan-out's
// caller (the supervisor) logs the full picture of who didn't converge.
func BroadcastNetmap(d *Deps, exclude map[string]bool) error {
	nm := d.State.Netmap()
	targets := alivePeers(nm, d.State.Self(), exclude)
	var g errgroup.Group
	var errs cos.Errs
	for _, addr := range targets {
		addr := addr
		g.Go(func() error {
			_, err := SendNetmapSet(d, addr, nm)
			errs.Add(errors.Wrapf(err, "netmap to %s", addr))
			return nil
		})
	}
	_ = g.Wait()
	return errs.JoinErr()
}

// BroadcastTopology fans the current topology out to every Alive peer
// except self and exclude.
func BroadcastTopology(d *Deps, exclude map[string]bool) error {
	nm := d.State.Netmap()
	targets := alivePeers(nm, d.State.Self(), exclude)
	topo := d.State.Topology()
	var g errgroup.Group
	var errs cos.Errs
	for _, addr := range targets {
		addr := addr
		g.Go(func() error {
			_, err := SendTopologySet(d, addr, topo)
			errs.Add(errors.Wrapf(err, "topology to %s", addr))
			return nil
		})
	}
	_ = g.Wait()
	return errs.JoinErr()
}

// BroadcastFileTags fans the current file-tags table out to every Alive
// peer except self and exclude — used by a completed push (spec §4.3.4
// step 7). The supervisor's resync of a respawned peer sends the table to
// that one peer with SendFileTagsSet instead.
func BroadcastFileTags(d *Deps, exclude map[string]bool) error {
	nm := d.State.Netmap()
	targets := alivePeers(nm, d.State.Self(), exclude)
	tags := d.State.ListTags()
	var g errgroup.Group
	var errs cos.Errs
	for _, addr := range targets {
		addr := addr
		g.Go(func() error {
			_, err := SendFileTagsSet(d, addr, tags)
			errs.Add(errors.Wrapf(err, "file tags to %s", addr))
			return nil
		})
	}
	_ = g.Wait()
	return errs.JoinErr()
}

func alivePeers(nm map[string]clusterstate.Status, self string, exclude map[string]bool) []string {
	out := make([]string, 0, len(nm))
	for addr, st := range nm {
		if addr == self || st != clusterstate.Alive {
			continue
		}
		if exclude != nil && exclude[addr] {
			continue
		}
		out = append(out, addr)
	}
	return out
}
