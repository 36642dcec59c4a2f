// Package dispatch implements the per-connection command dispatcher from
// spec §4.1: one \n-terminated header line per connection, routed to a
// handler, which may then consume or emit a declared raw byte stream on
// the same socket. The dispatcher never holds a clusterstate lock across
// a streaming body (spec §4.1, §5) — every handler snapshots what it
// needs through clusterstate.State's own locking and releases before any
// blocking I/O.
package dispatch

import (
	"bufio"
	"net"

	"github.com/adamjohannes/ouroboros-fs/cmn/cos"
	"github.com/adamjohannes/ouroboros-fs/cmn/nlog"
	"github.com/adamjohannes/ouroboros-fs/ring"
	"github.com/teris-io/shortid"
)

// connIDABC mirrors the teacher's habit of using a non-default shortid
// alphabet (cmn/cos/uuid.go's uuidABC) rather than the library default.
const connIDABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

// Server owns the node's listening socket and routes every accepted
// connection to the appropriate ring/cluster-state operation.
type Server struct {
	ln   net.Listener
	deps *ring.Deps
	sid  *shortid.Shortid
}

func New(ln net.Listener, deps *ring.Deps, seed uint64) *Server {
	sid := shortid.MustNew(1 /*worker*/, connIDABC, seed)
	return &Server{ln: ln, deps: deps, sid: sid}
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	cid, _ := s.sid.Generate()
	defer conn.Close()

	r := bufio.NewReader(conn)
	header, err := readHeaderLine(r)
	if err != nil {
		nlog.Warnf("[%s] read header from %s: %v", cid, conn.RemoteAddr(), err)
		return
	}
	if header == "" {
		return
	}

	if err := s.route(conn, r, header); err != nil {
		// a pull/get-chunk for a name nobody ever pushed is a normal client
		// mistake, not a node-level problem worth Warn-level attention.
		if cos.IsErrUnknownFile(err) {
			nlog.Infof("[%s] %q from %s: %v", cid, header, conn.RemoteAddr(), err)
		} else {
			nlog.Warnf("[%s] %q from %s: %v", cid, header, conn.RemoteAddr(), err)
		}
		writeErr(conn, err)
	}
}
