package ring_test

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/adamjohannes/ouroboros-fs/chunkstore"
	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/config"
	"github.com/adamjohannes/ouroboros-fs/dispatch"
	"github.com/adamjohannes/ouroboros-fs/ring"
	"github.com/adamjohannes/ouroboros-fs/stats"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestRing(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ring Suite")
}

// testNode stands up a real dispatch.Server on an ephemeral loopback port,
// exercising the full TCP path a unit test against ring's internals alone
// would skip — each ring-walk hop in these specs is a genuine socket.
type testNode struct {
	addr string
	deps *ring.Deps
}

func newTestNode() *testNode {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := ln.Addr().String()

	cfg := config.Default()
	cfg.TProbe = time.Second
	cfg.TRelay = 5 * time.Second

	st := clusterstate.New(addr)
	store := chunkstore.New()
	sc := stats.New(addr)
	deps := ring.NewDeps(st, store, cfg, sc)

	srv := dispatch.New(ln, deps, 1)
	go srv.Serve()

	return &testNode{addr: addr, deps: deps}
}

// ring3 wires three fresh nodes into a single cycle a->b->c->a.
func ring3() (a, b, c *testNode) {
	a, b, c = newTestNode(), newTestNode(), newTestNode()
	a.deps.State.SetSelfSuccessor(b.addr)
	b.deps.State.SetSelfSuccessor(c.addr)
	c.deps.State.SetSelfSuccessor(a.addr)
	return
}

var _ = Describe("Topology walk", func() {
	It("returns to the origin and records every hop in order", func() {
		a, b, c := ring3()

		history, err := ring.InitiateTopologyWalk(a.deps)
		Expect(err).NotTo(HaveOccurred())

		hops, err := clusterstate.DecodeTopologyHistory(history)
		Expect(err).NotTo(HaveOccurred())
		Expect(hops).To(Equal([][2]string{
			{a.addr, b.addr},
			{b.addr, c.addr},
			{c.addr, a.addr},
		}))
	})

	It("completes trivially for a ring of one", func() {
		solo := newTestNode()
		solo.deps.State.SetSelfSuccessor(solo.addr)

		history, err := ring.InitiateTopologyWalk(solo.deps)
		Expect(err).NotTo(HaveOccurred())

		hops, err := clusterstate.DecodeTopologyHistory(history)
		Expect(err).NotTo(HaveOccurred())
		Expect(hops).To(Equal([][2]string{{solo.addr, solo.addr}}))
	})
})

var _ = Describe("Netmap discover", func() {
	It("accumulates every node in the ring as Alive", func() {
		a, b, c := ring3()

		nm, err := ring.InitiateNetmapDiscover(a.deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(nm).To(Equal(map[string]clusterstate.Status{
			a.addr: clusterstate.Alive,
			b.addr: clusterstate.Alive,
			c.addr: clusterstate.Alive,
		}))

		// the initiator also merges the result into its own netmap
		Expect(a.deps.State.Netmap()).To(Equal(nm))
	})
})

var _ = Describe("File push and pull", func() {
	It("splits a file across the ring and reassembles it byte-for-byte on pull", func() {
		a, b, c := ring3()
		a.deps.State.MergeNetmap(map[string]clusterstate.Status{
			a.addr: clusterstate.Alive, b.addr: clusterstate.Alive, c.addr: clusterstate.Alive,
		})
		b.deps.State.MergeNetmap(a.deps.State.Netmap())
		c.deps.State.MergeNetmap(a.deps.State.Netmap())
		// pull and GET-CHUNK walk the local topology table from the start
		// node, so every node needs the whole ring, not just its own hop.
		topo := map[string]string{a.addr: b.addr, b.addr: c.addr, c.addr: a.addr}
		a.deps.State.MergeTopology(topo)
		b.deps.State.MergeTopology(topo)
		c.deps.State.MergeTopology(topo)

		payload := []byte("the quick brown fox jumps over the lazy dog, twice over")

		conn, err := net.Dial("tcp", a.addr)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		header := "FILE PUSH " + strconv.Itoa(len(payload)) + " run.txt\n"
		_, err = conn.Write([]byte(header))
		Expect(err).NotTo(HaveOccurred())
		_, err = conn.Write(payload)
		Expect(err).NotTo(HaveOccurred())

		resp := make([]byte, 3)
		_, err = conn.Read(resp)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(resp)).To(Equal("OK\n"))

		pullConn, err := net.Dial("tcp", b.addr)
		Expect(err).NotTo(HaveOccurred())
		defer pullConn.Close()
		_, err = pullConn.Write([]byte("FILE PULL run.txt\n"))
		Expect(err).NotTo(HaveOccurred())

		got := make([]byte, len(payload))
		n := 0
		for n < len(got) {
			m, err := pullConn.Read(got[n:])
			Expect(err).NotTo(HaveOccurred())
			n += m
		}
		Expect(got).To(Equal(payload))
	})
})
