package ring

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/adamjohannes/ouroboros-fs/cmn/nlog"
	"github.com/adamjohannes/ouroboros-fs/cmn/wire"
	"github.com/pkg/errors"
)

// HandleFilePush implements the FILE PUSH side of spec §4.3.4: this node
// is "start". It stores its own chunk, records the file tag, relays the
// remainder around the ring if N>1, and — once the whole chain has
// confirmed — broadcasts the new tag to every Alive peer before replying
// OK to the client.
func HandleFilePush(d *Deps, client net.Conn, body io.Reader, size int64, name string) error {
	self := d.State.Self()
	if err := relayChunk(d, body, client, size, name, size, self, true); err != nil {
		return err
	}
	return nil
}

// HandleRelayStream implements the FILE RELAY-STREAM side of spec §4.3.4
// for any non-start hop: store this node's slice of the stream, forward
// the remainder if this isn't the final hop (the one whose successor is
// start), and respond OK upstream either way.
func HandleRelayStream(d *Deps, upstream net.Conn, body io.Reader, size int64, name string, remaining int64, start string) error {
	return relayChunk(d, body, upstream, size, name, remaining, start, false)
}

// relayChunk is shared by the initiating push and every subsequent relay
// hop: it owns exactly one node's slice of the byte stream.
func relayChunk(d *Deps, body io.Reader, upstream net.Conn, size int64, name string, remaining int64, start string, isInitiator bool) error {
	n := d.State.AliveCount()
	if n <= 0 {
		n = 1
	}
	chunkSize := ceilDiv(size, int64(n))
	own := chunkSize
	if remaining < own {
		own = remaining
	}

	data, err := wire.ReadExact(body, own)
	if err != nil {
		return errors.Wrap(err, "read chunk body")
	}
	if err := d.Store.Put(name, data); err != nil {
		return errors.Wrap(err, "store chunk")
	}
	d.State.SetFileTag(name, size, start)
	d.Stats.AddPushBytes(int64(len(data)))

	next, ok := d.State.Successor()
	if !ok {
		return errors.New("no successor configured for self")
	}

	if next != start {
		remainingAfter := remaining - own
		if err := forwardRelay(d, next, size, name, remainingAfter, start, body); err != nil {
			return err
		}
	}

	if isInitiator {
		if err := BroadcastFileTags(d, map[string]bool{start: true}); err != nil {
			nlog.Warnf("file tags broadcast after push of %s incomplete: %v", name, err)
		}
	}
	return wire.WriteHeader(upstream, "OK")
}

func forwardRelay(d *Deps, next string, size int64, name string, remaining int64, start string, body io.Reader) error {
	conn, err := dial(next, d.Cfg.TProbe)
	if err != nil {
		return errors.Wrapf(err, "dial relay successor %s", next)
	}
	defer conn.Close()

	header := fmt.Sprintf("FILE RELAY-STREAM %d %s %d %s", size, name, remaining, start)
	if err := wire.WriteHeader(conn, header); err != nil {
		return errors.Wrapf(err, "write relay header to %s", next)
	}

	_ = conn.SetDeadline(time.Now().Add(d.Cfg.TRelay))
	w := io.Writer(conn)
	if d.Limiter != nil {
		w = &limitedWriter{w: conn, limiter: d.Limiter}
	}
	if _, err := wire.CopyExact(w, body, remaining); err != nil {
		return errors.Wrapf(err, "relay stream to %s", next)
	}
	_ = conn.SetDeadline(time.Time{})

	resp, err := wire.ReadHeader(bufio.NewReader(conn))
	if err != nil {
		return errors.Wrapf(err, "read relay response from %s", next)
	}
	if resp != "OK" {
		return errors.Errorf("relay to %s returned %q", next, resp)
	}
	return nil
}
