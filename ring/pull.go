package ring

import (
	"net"
	"time"

	"github.com/adamjohannes/ouroboros-fs/cmn/cos"
	"github.com/adamjohannes/ouroboros-fs/cmn/wire"
	"github.com/pkg/errors"
)

// HandleFilePull implements spec §4.3.5: look up the file's start node,
// walk the ring chain from there issuing one FILE GET-CHUNK per node, and
// stream each response directly to the client in successor order.
func HandleFilePull(d *Deps, client net.Conn, name string) error {
	tag, ok := d.State.GetFileTag(name)
	if !ok {
		return cos.NewErrUnknownFile(name)
	}
	chain, err := Chain(d.State.Topology(), tag.Start)
	if err != nil {
		return errors.Wrap(err, "walk chain for pull")
	}

	d.Stats.IncPull()
	for idx, addr := range chain {
		chunkLen := ChunkBounds(tag.Size, len(chain), idx)
		data, err := fetchChunk(d, addr, name, chunkLen)
		if err != nil {
			return errors.Wrapf(err, "fetch chunk %d from %s", idx, addr)
		}
		if _, err := client.Write(data); err != nil {
			return errors.Wrap(err, "write chunk to client")
		}
		d.Stats.AddPullBytes(int64(len(data)))
	}
	return nil
}

func fetchChunk(d *Deps, addr, name string, expectedLen int64) ([]byte, error) {
	conn, err := dial(addr, d.Cfg.TProbe)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()

	if err := wire.WriteHeader(conn, "FILE GET-CHUNK "+name); err != nil {
		return nil, errors.Wrapf(err, "write header to %s", addr)
	}
	_ = conn.SetDeadline(time.Now().Add(d.Cfg.TRelay))
	return wire.ReadExact(conn, expectedLen)
}

// HandleGetChunk implements the internal FILE GET-CHUNK side of §4.3.5:
// respond with this node's own chunk of name, raw, then the caller closes
// the connection. A chunk this node never received (lost on respawn, spec
// §4.4) is served as a zero-filled blob of the expected length, keeping
// the pull's total byte count coherent per spec §4.3.5's closing note.
func HandleGetChunk(d *Deps, conn net.Conn, name string) error {
	tag, ok := d.State.GetFileTag(name)
	if !ok {
		return cos.NewErrUnknownFile(name)
	}
	chain, err := Chain(d.State.Topology(), tag.Start)
	if err != nil {
		return errors.Wrap(err, "walk chain for get-chunk")
	}
	idx := indexOf(chain, d.State.Self())
	if idx < 0 {
		return errors.Errorf("self %s not found in chain for %s", d.State.Self(), name)
	}
	chunkLen := ChunkBounds(tag.Size, len(chain), idx)

	data, ok, err := d.Store.Get(name)
	if err != nil {
		return errors.Wrap(err, "read local chunk")
	}
	if !ok {
		data = make([]byte, chunkLen)
	}
	_, err = conn.Write(data)
	return err
}

func indexOf(chain []string, addr string) int {
	for i, a := range chain {
		if a == addr {
			return i
		}
	}
	return -1
}
