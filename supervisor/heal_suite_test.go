package supervisor_test

import (
	"net"
	"testing"
	"time"

	"github.com/adamjohannes/ouroboros-fs/chunkstore"
	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/config"
	"github.com/adamjohannes/ouroboros-fs/dispatch"
	"github.com/adamjohannes/ouroboros-fs/ring"
	"github.com/adamjohannes/ouroboros-fs/stats"
	"github.com/adamjohannes/ouroboros-fs/supervisor"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestSupervisor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Supervisor Suite")
}

func newDeps(self string) *ring.Deps {
	cfg := config.Default()
	cfg.TGossip = 50 * time.Millisecond
	cfg.TProbe = 100 * time.Millisecond
	cfg.TRespawnWait = 200 * time.Millisecond
	cfg.MaintenanceCron = ""
	st := clusterstate.New(self)
	return ring.NewDeps(st, chunkstore.New(), cfg, stats.New(self))
}

var _ = Describe("Gossip tick", func() {
	It("marks a successor that answers PONG as a successful probe, no heal", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		peerAddr := ln.Addr().String()

		peerDeps := newDeps(peerAddr)
		srv := dispatch.New(ln, peerDeps, 2)
		go srv.Serve()

		deps := newDeps("127.0.0.1:1")
		deps.State.SetSelfSuccessor(peerAddr)
		deps.State.MergeNetmap(map[string]clusterstate.Status{peerAddr: clusterstate.Alive})

		sv := supervisor.New(deps, deps.Cfg)
		go sv.Run()
		defer sv.Stop()

		Eventually(func() float64 {
			return deps.Stats.Snapshot().ProbeOK
		}, "2s", "20ms").Should(BeNumerically(">=", 1))

		status, ok := deps.State.GetStatus(peerAddr)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(clusterstate.Alive))
	})

	It("marks a dead successor Dead and leaves it Dead when respawn never answers", func() {
		// Reserve a port, then close the listener immediately: nothing
		// will answer on it, simulating a genuinely dead neighbor.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		deadAddr := ln.Addr().String()
		Expect(ln.Close()).To(Succeed())

		deps := newDeps("127.0.0.1:1")
		deps.State.SetSelfSuccessor(deadAddr)
		deps.State.MergeNetmap(map[string]clusterstate.Status{deadAddr: clusterstate.Alive})
		// RespawnBin points at a binary that exits immediately without
		// ever binding the port, so waitForPing is guaranteed to time out.
		deps.Cfg.RespawnBin = "/bin/true"
		deps.Cfg.RespawnArgs = nil

		sv := supervisor.New(deps, deps.Cfg)
		go sv.Run()
		defer sv.Stop()

		Eventually(func() clusterstate.Status {
			status, _ := deps.State.GetStatus(deadAddr)
			return status
		}, "2s", "20ms").Should(Equal(clusterstate.Dead))

		Consistently(func() clusterstate.Status {
			status, _ := deps.State.GetStatus(deadAddr)
			return status
		}, "500ms", "50ms").Should(Equal(clusterstate.Dead))
	})
})
