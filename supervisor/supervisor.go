// Package supervisor runs the per-node gossip loop, failure detector, and
// healing procedure from spec §5: probe self.next every T_gossip, and on a
// failed probe mark it Dead, respawn it as a fresh child process, wait for
// it to answer PING again, then push netmap/topology/file-tags to it and
// mark it Alive again.
package supervisor

import (
	"bufio"
	"net"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/config"
	"github.com/adamjohannes/ouroboros-fs/cmn/cos"
	"github.com/adamjohannes/ouroboros-fs/cmn/nlog"
	"github.com/adamjohannes/ouroboros-fs/cmn/wire"
	"github.com/adamjohannes/ouroboros-fs/ring"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Supervisor owns the gossip ticker and the cron-driven maintenance
// heartbeat for one node. Healing is a single serial task per node (spec
// §9: "inherently serial per node") — no worker pool is needed since a
// node only ever watches its own successor slot.
type Supervisor struct {
	deps *ring.Deps
	cfg  *config.NodeConfig
	stop chan struct{}
	cron *cron.Cron
}

func New(deps *ring.Deps, cfg *config.NodeConfig) *Supervisor {
	return &Supervisor{
		deps: deps,
		cfg:  cfg,
		stop: make(chan struct{}),
		cron: cron.New(),
	}
}

// Run blocks, ticking the gossip loop every T_gossip until Stop is called.
// Modeled on aistore's housekeeper: one cooperative loop, no worker pool.
func (sv *Supervisor) Run() {
	if sv.cfg.MaintenanceCron != "" {
		if _, err := sv.cron.AddFunc(sv.cfg.MaintenanceCron, sv.logHeartbeat); err != nil {
			nlog.Warnf("maintenance cron %q rejected: %v", sv.cfg.MaintenanceCron, err)
		} else {
			sv.cron.Start()
			defer sv.cron.Stop()
		}
	}

	ticker := time.NewTicker(sv.cfg.TGossip)
	defer ticker.Stop()
	for {
		select {
		case <-sv.stop:
			return
		case <-ticker.C:
			sv.tick()
		}
	}
}

func (sv *Supervisor) Stop() { close(sv.stop) }

func (sv *Supervisor) logHeartbeat() {
	sv.deps.Stats.LogSummary()
	nlog.Infof("netmap: %d alive, self next=%v", sv.deps.State.AliveCount(), successorOf(sv.deps.State))
}

func successorOf(st *clusterstate.State) string {
	next, _ := st.Successor()
	return next
}

// tick implements spec §5's single gossip period: probe, and on failure
// begin the heal procedure.
func (sv *Supervisor) tick() {
	next, ok := sv.deps.State.Successor()
	if !ok || next == sv.deps.State.Self() {
		return
	}
	if err := probe(next, sv.cfg.TProbe); err != nil {
		sv.deps.Stats.IncProbeFail()
		// spec §7: a transient peer failure (refused/reset/timeout) is the
		// expected trigger for healing; anything else still heals, but is
		// worth an Error log since it may point at a protocol bug instead.
		if cos.IsRetriableConnErr(err) {
			nlog.Warnf("probe to successor %s failed: %v", next, err)
		} else {
			nlog.Errorf("probe to successor %s failed unexpectedly: %v", next, err)
		}
		sv.heal(next)
		return
	}
	sv.deps.Stats.IncProbeOK()
}

// probe opens a short-lived connection to addr, sends NODE PING, and
// requires PONG within timeout (spec §5 step 1).
func probe(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if err := wire.WriteHeader(conn, "NODE PING"); err != nil {
		return err
	}
	resp, err := wire.ReadHeader(bufio.NewReader(conn))
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return errors.Errorf("unexpected probe response %q", resp)
	}
	return nil
}

// heal implements spec §5's detect->respawn->resync sequence for dead
// successor addr. Concurrent heals across nodes are independent (§5 "no
// coordinator") since each node only ever heals its own successor slot.
func (sv *Supervisor) heal(addr string) {
	nlog.Warningln("marking", addr, "Dead, beginning heal")
	sv.deps.State.SetStatus(addr, clusterstate.Dead)
	if err := ring.BroadcastNetmap(sv.deps, nil); err != nil {
		nlog.Warnf("netmap broadcast during heal of %s incomplete: %v", addr, err)
	}
	if err := ring.BroadcastTopology(sv.deps, nil); err != nil {
		nlog.Warnf("topology broadcast during heal of %s incomplete: %v", addr, err)
	}

	if err := respawn(addr, sv.cfg); err != nil {
		nlog.Errorln("respawn of", addr, "failed:", err)
		return
	}

	if !sv.waitForPing(addr) {
		nlog.Errorf("respawned %s never answered PING within %s, leaving Dead", addr, sv.cfg.TRespawnWait)
		return
	}

	if err := sv.resync(addr); err != nil {
		nlog.Errorf("resync of respawned %s failed: %v", addr, err)
		return
	}

	sv.deps.State.SetStatus(addr, clusterstate.Alive)
	if err := ring.BroadcastNetmap(sv.deps, nil); err != nil {
		nlog.Warnf("final netmap broadcast after heal of %s incomplete: %v", addr, err)
	}
	if err := ring.BroadcastTopology(sv.deps, nil); err != nil {
		nlog.Warnf("final topology broadcast after heal of %s incomplete: %v", addr, err)
	}
	sv.deps.Stats.IncHeal()
	nlog.Infof("heal of %s complete", addr)
}

// respawn invokes the configured binary with the dead node's port, per
// spec §6's collaborator contract. Grounded on the teacher's startNode:
// detach into its own process group so killing this supervisor's process
// tree doesn't also kill the child it just raised.
func respawn(addr string, cfg *config.NodeConfig) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Wrapf(err, "split respawn address %s", addr)
	}
	if _, convErr := strconv.Atoi(port); convErr != nil {
		return errors.Wrapf(convErr, "non-numeric port in %s", addr)
	}

	args := append([]string{}, cfg.RespawnArgs...)
	args = append(args, port)
	cmd := exec.Command(cfg.RespawnBin, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start respawned node on port %s", port)
	}
	return cmd.Process.Release()
}

// waitForPing polls addr with NODE PING until it answers or T_respawn_wait
// elapses (spec §5 step 3).
func (sv *Supervisor) waitForPing(addr string) bool {
	deadline := time.Now().Add(sv.cfg.TRespawnWait)
	for time.Now().Before(deadline) {
		if err := probe(addr, sv.cfg.TProbe); err == nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// resync pushes the current netmap, topology, and file tags to a freshly
// respawned peer (spec §5 step 4, in that order).
func (sv *Supervisor) resync(addr string) error {
	nm := sv.deps.State.Netmap()
	if _, err := ring.SendNetmapSet(sv.deps, addr, nm); err != nil {
		return errors.Wrap(err, "push netmap")
	}
	topo := sv.deps.State.Topology()
	if _, err := ring.SendTopologySet(sv.deps, addr, topo); err != nil {
		return errors.Wrap(err, "push topology")
	}
	tags := sv.deps.State.ListTags()
	if _, err := ring.SendFileTagsSet(sv.deps, addr, tags); err != nil {
		return errors.Wrap(err, "push file tags")
	}
	return nil
}
