// Package ring implements the four ring-walk protocols from spec §4.3 —
// topology walk, netmap discover, file push relay, file pull collect —
// plus the point-to-point broadcast primitives they and the supervisor
// share. Every outbound hop is a single short-lived connection opened
// from the handling goroutine and awaited synchronously (spec §5).
package ring

import (
	"net"
	"time"

	"github.com/adamjohannes/ouroboros-fs/chunkstore"
	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/config"
	"github.com/adamjohannes/ouroboros-fs/stats"
	"golang.org/x/time/rate"
)

// Deps bundles what every ring protocol needs so handler signatures stay
// short; it owns no lock of its own — locking is entirely delegated to
// clusterstate.State and chunkstore.Store.
type Deps struct {
	State   *clusterstate.State
	Store   *chunkstore.Store
	Cfg     *config.NodeConfig
	Stats   *stats.Collector
	Limiter *rate.Limiter // nil when RelayBytesPerSec==0 (unlimited)

	pend *pending
}

func NewDeps(st *clusterstate.State, store *chunkstore.Store, cfg *config.NodeConfig, s *stats.Collector) *Deps {
	d := &Deps{State: st, Store: store, Cfg: cfg, Stats: s, pend: newPending()}
	if cfg.RelayBytesPerSec > 0 {
		d.Limiter = rate.NewLimiter(rate.Limit(cfg.RelayBytesPerSec), cfg.RelayBytesPerSec)
	}
	return d
}

// dial opens a short-lived outbound connection to addr, per spec §4.3
// "a single short-lived outbound connection".
func dial(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}
