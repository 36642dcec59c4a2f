// Package config loads the optional node tunables that sit around the
// single-positional-port CLI contract (see spec §6). Everything here has
// a default matching spec §4.4/§5; a config file only overrides them.
package config

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// NodeConfig is read once at startup and never mutated afterward, in the
// manner of aistore's cmn.Rom read-mostly struct: cheap to read from any
// goroutine without synchronization.
type NodeConfig struct {
	BindHost string `yaml:"bind_host" json:"bind_host"`

	TGossip      time.Duration `yaml:"t_gossip" json:"t_gossip"`
	TProbe       time.Duration `yaml:"t_probe" json:"t_probe"`
	TRespawnWait time.Duration `yaml:"t_respawn_wait" json:"t_respawn_wait"`
	TRelay       time.Duration `yaml:"t_relay" json:"t_relay"`

	// RelayBytesPerSec bounds per-hop forwarding throughput (§11, x/time/rate).
	// Zero means unlimited.
	RelayBytesPerSec int `yaml:"relay_bytes_per_sec" json:"relay_bytes_per_sec"`

	// RespawnBin/RespawnArgs template the command used to respawn a dead
	// neighbor (spec §6 CLI/process interface). RespawnBin defaults to the
	// currently running executable so a node respawns its own binary.
	RespawnBin  string   `yaml:"respawn_bin" json:"respawn_bin"`
	RespawnArgs []string `yaml:"respawn_args" json:"respawn_args"`

	LogDir  string `yaml:"log_dir" json:"log_dir"`
	Verbose bool   `yaml:"verbose" json:"verbose"`

	// MaintenanceCron is the cron spec (robfig/cron syntax) for the
	// low-frequency cluster-summary heartbeat (SPEC_FULL §12).
	MaintenanceCron string `yaml:"maintenance_cron" json:"maintenance_cron"`
}

func Default() *NodeConfig {
	self, _ := os.Executable()
	return &NodeConfig{
		BindHost:         "127.0.0.1",
		TGossip:          time.Second,
		TProbe:           500 * time.Millisecond,
		TRespawnWait:     5 * time.Second,
		TRelay:           30 * time.Second,
		RelayBytesPerSec: 0,
		RespawnBin:       self,
		RespawnArgs:      nil,
		LogDir:           "",
		Verbose:          false,
		MaintenanceCron:  "@every 1m",
	}
}

// Load reads path (YAML, or JSON if the extension is .json) on top of
// Default(). A missing path is not an error — the bootstrap launcher
// typically never supplies one (spec §6).
func Load(path string) (*NodeConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if isJSON(path) {
		if err := jsoniter.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isJSON(path string) bool {
	l := len(path)
	return l >= 5 && path[l-5:] == ".json"
}
