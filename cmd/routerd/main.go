// Command routerd boots a single simulated BGP speaker from a config
// file and keeps it running until interrupted. Bringing up an entire
// topology (generating per-router configs, sequencing InitiateSession
// calls across routers) is an out-of-scope CLI/prompt collaborator's
// job — this binary only ever runs one router.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/evazorman/bgpsim/internal/config"
	"github.com/evazorman/bgpsim/internal/router"
)

func main() {
	flags := pflag.NewFlagSet("routerd", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the router config file (YAML/JSON/TOML)")
	basePort := flags.Int("base_port", 0, "override the router's base BGP port")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		logrus.WithField("Topic", "Bootstrap").Fatalf("config: %s", err)
	}
	if *basePort != 0 {
		cfg.BasePort = *basePort
	}

	r := router.New(cfg)

	for _, peerAS := range cfg.PeerASNs {
		as := peerAS
		go func() {
			if err := r.InitiateSession(as); err != nil {
				logrus.WithField("Topic", "Bootstrap").
					Warnf("initial dial to AS%d failed, session returned to Idle: %s", as, err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Fprintln(os.Stderr, "routerd: shutting down")
		r.Stop()
		os.Exit(0)
	}()

	if err := r.Run(); err != nil {
		logrus.WithField("Topic", "Bootstrap").Fatalf("router exited: %s", err)
	}
}
