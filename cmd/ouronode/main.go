// Command ouronode runs a single OuroborosFS ring node (spec §6): one
// positional argument, the TCP port to bind on 127.0.0.1.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamjohannes/ouroboros-fs/chunkstore"
	"github.com/adamjohannes/ouroboros-fs/clusterstate"
	"github.com/adamjohannes/ouroboros-fs/cmn/config"
	"github.com/adamjohannes/ouroboros-fs/cmn/nlog"
	"github.com/adamjohannes/ouroboros-fs/dispatch"
	"github.com/adamjohannes/ouroboros-fs/ring"
	"github.com/adamjohannes/ouroboros-fs/stats"
	"github.com/adamjohannes/ouroboros-fs/supervisor"
	"golang.org/x/sys/unix"
)

var (
	configPath string
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <port>\n", os.Args[0])
		os.Exit(1)
	}
	port := os.Args[1]

	configPath = os.Getenv("OUROBOROS_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.LogDir != "" {
		if err := nlog.SetLogDir(cfg.LogDir, "ouronode-"+port); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
			os.Exit(1)
		}
	}
	nlog.SetVerbose(cfg.Verbose)

	self := net.JoinHostPort(cfg.BindHost, port)

	ln, err := listen(cfg.BindHost, port)
	if err != nil {
		nlog.Errorf("failed to listen on %s: %v", self, err)
		os.Exit(1)
	}

	st := clusterstate.New(self)
	st.SetSelfSuccessor(self) // N=1 ring of one until topology is wired in
	store := chunkstore.New()
	sc := stats.New(self)
	deps := ring.NewDeps(st, store, cfg, sc)

	sv := supervisor.New(deps, cfg)
	go sv.Run()

	srv := dispatch.New(ln, deps, uint64(time.Now().UnixNano()))

	installSignalHandler(sv)

	nlog.Infoln("ouronode listening on", self)
	if err := srv.Serve(); err != nil {
		nlog.Errorf("server stopped: %v", err)
	}
	nlog.Flush()
}

// listen binds with SO_REUSEADDR set, the way a respawned node needs to
// rebind its predecessor's just-vacated port without waiting out TIME_WAIT.
func listen(host, port string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", net.JoinHostPort(host, port))
}

func installSignalHandler(sv *supervisor.Supervisor) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		sv.Stop()
		nlog.Flush()
		os.Exit(0)
	}()
}
