package dispatch

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/cos"
	"github.com/adamjohannes/ouroboros-fs/cmn/wire"
	"github.com/adamjohannes/ouroboros-fs/ring"
	"github.com/adamjohannes/ouroboros-fs/stats"
)

func readHeaderLine(r *bufio.Reader) (string, error) {
	line, err := wire.ReadHeader(r)
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}

func writeErr(w io.Writer, err error) {
	_ = wire.WriteHeader(w, "ERR "+err.Error())
}

// route parses one header's tokens and invokes the matching handler. The
// recognized (NOUN, VERB) set is closed per spec §4.1/§6; anything else
// is a protocol error.
func (s *Server) route(conn net.Conn, r *bufio.Reader, header string) error {
	tok := wire.Tokens(header)
	if len(tok) < 2 {
		return cos.NewErrMalformedHeader("expected at least NOUN VERB, got %q", header)
	}
	noun, verb, args := tok[0], tok[1], tok[2:]

	switch {
	case noun == "NODE" && verb == "PING":
		return handlePing(conn)
	case noun == "NODE" && verb == "NEXT":
		return s.handleNodeNext(conn, args)
	case noun == "NODE" && verb == "STATUS":
		return s.handleNodeStatus(conn)

	case noun == "NETMAP" && verb == "GET":
		return s.handleNetmapGet(conn)
	case noun == "NETMAP" && verb == "DISCOVER":
		return s.handleNetmapDiscover(conn)
	case noun == "NETMAP" && verb == "SET":
		return s.handleNetmapSet(conn, args)
	case noun == "NETMAP" && verb == "HOP":
		return s.handleNetmapHop(conn, args)

	case noun == "TOPOLOGY" && verb == "WALK":
		return s.handleTopologyWalk(conn)
	case noun == "TOPOLOGY" && verb == "HOP":
		return s.handleTopologyHop(conn, args)
	case noun == "TOPOLOGY" && verb == "DONE":
		return s.handleTopologyDone(conn, args)
	case noun == "TOPOLOGY" && verb == "SET":
		return s.handleTopologySet(conn, args)

	case noun == "FILE" && verb == "PUSH":
		return s.handleFilePush(conn, r, args)
	case noun == "FILE" && verb == "RELAY-STREAM":
		return s.handleRelayStream(conn, r, args)
	case noun == "FILE" && verb == "PULL":
		return s.handleFilePull(conn, args)
	case noun == "FILE" && verb == "GET-CHUNK":
		return s.handleGetChunk(conn, args)
	case noun == "FILE" && verb == "LIST":
		return s.handleFileList(conn)
	case noun == "FILE" && verb == "TAGS-SET":
		return s.handleFileTagsSet(conn, r, args)

	default:
		return cos.NewErrUnknownCommand(header)
	}
}

func handlePing(conn net.Conn) error {
	return wire.WriteHeader(conn, "PONG")
}

func (s *Server) handleNodeNext(conn net.Conn, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("NODE NEXT requires exactly one address")
	}
	s.deps.State.SetSelfSuccessor(args[0])
	return wire.WriteHeader(conn, "OK")
}

func (s *Server) handleNodeStatus(conn net.Conn) error {
	next, _ := s.deps.State.Successor()
	host := stats.ReadHostSnapshot()
	line := fmt.Sprintf("PORT=%s NEXT=%s RSS=%d CPU=%.1f",
		portOf(s.deps.State.Self()), next, host.RSSBytes, host.CPUPct)
	return wire.WriteHeader(conn, line)
}

func (s *Server) handleNetmapGet(conn net.Conn) error {
	_, err := io.WriteString(conn, ring.FormatNetmapCSV(s.deps.State.Netmap()))
	return err
}

func (s *Server) handleNetmapDiscover(conn net.Conn) error {
	nm, err := ring.InitiateNetmapDiscover(s.deps)
	if err != nil {
		return err
	}
	_, err = io.WriteString(conn, ring.FormatNetmapCSV(nm))
	return err
}

func (s *Server) handleNetmapSet(conn net.Conn, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("NETMAP SET requires one entries argument")
	}
	nm, err := clusterstate.DecodeNetmap(args[0])
	if err != nil {
		return err
	}
	s.deps.State.MergeNetmap(nm)
	return wire.WriteHeader(conn, "OK")
}

func (s *Server) handleNetmapHop(conn net.Conn, args []string) error {
	if len(args) != 2 {
		return cos.NewErrMalformedHeader("NETMAP HOP requires origin and entries")
	}
	if err := ring.HandleNetmapHop(s.deps, args[0], args[1]); err != nil {
		return err
	}
	return wire.WriteHeader(conn, "OK")
}

func (s *Server) handleTopologyWalk(conn net.Conn) error {
	history, err := ring.InitiateTopologyWalk(s.deps)
	if err != nil {
		return err
	}
	return wire.WriteHeader(conn, history)
}

func (s *Server) handleTopologyHop(conn net.Conn, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("TOPOLOGY HOP requires a history argument")
	}
	if err := ring.HandleTopologyHop(s.deps, args[0]); err != nil {
		return err
	}
	return wire.WriteHeader(conn, "OK")
}

func (s *Server) handleTopologyDone(conn net.Conn, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("TOPOLOGY DONE requires a history argument")
	}
	if err := ring.HandleTopologyDone(s.deps, args[0]); err != nil {
		return err
	}
	return wire.WriteHeader(conn, "OK")
}

func (s *Server) handleTopologySet(conn net.Conn, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("TOPOLOGY SET requires a history argument")
	}
	hops, err := clusterstate.DecodeTopologyHistory(args[0])
	if err != nil {
		return err
	}
	s.deps.State.MergeTopology(clusterstate.TopologyToMap(hops))
	return wire.WriteHeader(conn, "OK")
}

func (s *Server) handleFilePush(conn net.Conn, r *bufio.Reader, args []string) error {
	if len(args) != 2 {
		return cos.NewErrMalformedHeader("FILE PUSH requires size and name")
	}
	size, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return cos.NewErrMalformedHeader("bad size %q", args[0])
	}
	return ring.HandleFilePush(s.deps, conn, r, size, args[1])
}

func (s *Server) handleRelayStream(conn net.Conn, r *bufio.Reader, args []string) error {
	if len(args) != 4 {
		return cos.NewErrMalformedHeader("FILE RELAY-STREAM requires size, name, remaining, start")
	}
	size, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return cos.NewErrMalformedHeader("bad size %q", args[0])
	}
	remaining, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return cos.NewErrMalformedHeader("bad remaining %q", args[2])
	}
	return ring.HandleRelayStream(s.deps, conn, r, size, args[1], remaining, args[3])
}

func (s *Server) handleFilePull(conn net.Conn, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("FILE PULL requires a name")
	}
	return ring.HandleFilePull(s.deps, conn, args[0])
}

func (s *Server) handleGetChunk(conn net.Conn, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("FILE GET-CHUNK requires a name")
	}
	return ring.HandleGetChunk(s.deps, conn, args[0])
}

func (s *Server) handleFileList(conn net.Conn) error {
	_, err := io.WriteString(conn, clusterstate.EncodeFileTagsCSV(s.deps.State.ListTags()))
	return err
}

func (s *Server) handleFileTagsSet(conn net.Conn, r *bufio.Reader, args []string) error {
	if len(args) != 1 {
		return cos.NewErrMalformedHeader("FILE TAGS-SET requires a body length")
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return cos.NewErrMalformedHeader("bad body length %q", args[0])
	}
	body, err := wire.ReadExact(r, n)
	if err != nil {
		return err
	}
	tags, err := clusterstate.DecodeFileTagsCSV(string(body))
	if err != nil {
		return err
	}
	s.deps.State.UpsertFileTags(tags)
	return wire.WriteHeader(conn, "OK")
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}
