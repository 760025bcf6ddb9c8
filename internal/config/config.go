// Package config loads a single router's static identity and timer
// defaults. It mirrors a familiar viper-driven loading pattern
// (SetConfigFile/SetConfigType/ReadInConfig/Unmarshal/SetDefault),
// minus a distributed-store watch loop: the simulator's topology
// comes from an out-of-scope CLI/prompt collaborator, not a live
// config store, so there is nothing left to watch.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Router is one router's static configuration: identity, adjacency,
// and the timer/protocol defaults used to seed its FSMs.
type Router struct {
	ASNumber     uint32           `mapstructure:"as_number"`
	RouterID     string           `mapstructure:"router_id"`
	PeerASNs     []uint32         `mapstructure:"peer_as_numbers"`
	BasePort     int              `mapstructure:"base_port"`
	Advertised   []string         `mapstructure:"advertised_prefixes"`
	HoldTime     int              `mapstructure:"hold_time"`
	ConnectRetry int              `mapstructure:"connect_retry_time"`

	// PeerBasePorts/PeerHosts resolve each configured peer AS to a
	// dialable base port and host. The topology-generation CLI (out of
	// scope) is what would normally populate these.
	PeerBasePorts map[uint32]int    `mapstructure:"peer_base_ports"`
	PeerHosts     map[uint32]string `mapstructure:"peer_hosts"`
}

// Default fills in the timer defaults used when a config omits them.
// The 240s OpenSent hold time is handled by the FSM itself; these are
// the steady-state negotiated defaults.
func Default() Router {
	return Router{
		HoldTime:     60,
		ConnectRetry: 5,
	}
}

// BasePortFor implements the well-known port formula: B = 2000 + 4*routerNumber.
func BasePortFor(routerNumber int) int {
	return 2000 + 4*routerNumber
}

// PeerHost resolves the dial host for a configured peer, defaulting
// to loopback (the simulator's routers typically share one host,
// distinguished by their four well-known ports).
func (r Router) PeerHost(peerAS uint32) string {
	if h, ok := r.PeerHosts[peerAS]; ok && h != "" {
		return h
	}
	return "127.0.0.1"
}

// Load reads a router config file (YAML/JSON/TOML, detected from its
// extension via SetConfigType(filepath.Ext(path)[1:])) and lets the
// flag set override individual fields.
func Load(path string, flags *pflag.FlagSet) (Router, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("hold_time", def.HoldTime)
	v.SetDefault("connect_retry_time", def.ConnectRetry)

	if path != "" {
		v.SetConfigFile(path)
		ext := filepath.Ext(path)
		if len(ext) > 1 {
			v.SetConfigType(ext[1:])
		}
		if err := v.ReadInConfig(); err != nil {
			return Router{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Router{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}
	v.AutomaticEnv()

	var r Router
	if err := v.Unmarshal(&r); err != nil {
		return Router{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if r.BasePort == 0 {
		return Router{}, fmt.Errorf("config: base_port is required")
	}
	if r.ASNumber == 0 {
		return Router{}, fmt.Errorf("config: as_number is required")
	}
	return r, nil
}
