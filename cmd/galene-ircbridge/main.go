// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command galene-ircbridge relays a Galène group chat and an IRC channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gopkg.in/yaml.v3"
	flag "maunium.net/go/mauflag"

	"github.com/aiku/galene-ircbridge/pkg/connector"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath      = flag.MakeFull("c", "config", "The path to your config file.", "config.yaml").String()
	generateExample = flag.MakeFull("e", "generate-example-config", "Save the example config to the config path and quit.", "false").Bool()
	debug           = flag.Make().LongKey("debug").Usage("Show debug messages.").Default("false").Bool()
	version         = flag.Make().LongKey("version").Usage("View version and quit.").Default("false").Bool()
	wantHelp, _     = flag.MakeHelpFlag()

	galeneServer   = flag.MakeFull("s", "server", `Galène server to connect to, e.g. "wss://galene.example.com/ws".`, "").String()
	galeneGroup    = flag.MakeFull("g", "group", "Galène group to join.", "").String()
	galeneUsername = flag.MakeFull("u", "username", "Galène group username.", "").String()
	galenePassword = flag.MakeFull("p", "password", "Galène group password.", "").String()
	ircServer      = flag.Make().LongKey("irc-server").Usage("IRC server host.").String()
	ircPort        = flag.Make().LongKey("irc-port").Usage("IRC server port. 0 picks the default for the TLS setting.").String()
	ircTLS         = flag.Make().LongKey("irc-tls").Usage("Use TLS for IRC: true or false.").String()
	ircNickname    = flag.Make().LongKey("irc-nickname").Usage("IRC nickname.").String()
	ircChannel     = flag.Make().LongKey("irc-channel").Usage("IRC channel to join.").String()
)

func main() {
	flag.SetHelpTitles(
		"galene-ircbridge - relay a Galène group chat and an IRC channel.",
		"galene-ircbridge [-hed] [-c <path>] [-s <url>] [-g <group>] [-u <name>] [-p <password>] [--irc-* <value>]",
	)
	err := flag.Parse()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *version {
		fmt.Printf("galene-ircbridge %s (commit %s, built %s)\n", Tag, Commit, BuildTime)
		os.Exit(0)
	}

	if *generateExample {
		if err := writeExampleConfig(*configPath); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("Wrote example config to", *configPath)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err == nil {
		err = applyOverrides(cfg)
	}
	if err == nil {
		err = cfg.PostProcess()
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		os.Exit(11)
	}

	log, closeLog, err := setupLogging(cfg.Logging, *debug, os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		os.Exit(12)
	}
	defer func() { _ = closeLog() }()

	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("galene_group", cfg.Galene.Group).
		Str("irc_channel", cfg.IRC.Channel).
		Msg("Starting galene-ircbridge")

	bridge, err := connector.NewBridge(cfg, *log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create bridge")
		os.Exit(13)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = bridge.Run(ctx)
	bridge.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Bridge stopped with error")
		_ = closeLog()
		os.Exit(1)
	}
	log.Info().Msg("Bridge stopped")
}

// loadConfig reads the config file. A missing file falls back to the example
// config so the bridge can be run with flags alone.
func loadConfig(path string) (*connector.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		var cfg connector.Config
		if err := yaml.Unmarshal([]byte(connector.ExampleConfig), &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return connector.LoadConfig(path)
}

func writeExampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	return os.WriteFile(path, []byte(connector.ExampleConfig), 0o600)
}

// applyOverrides copies the command line flags that were set over the
// config.
func applyOverrides(cfg *connector.Config) error {
	setString := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	setString(&cfg.Galene.Server, *galeneServer)
	setString(&cfg.Galene.Group, *galeneGroup)
	setString(&cfg.Galene.Username, *galeneUsername)
	setString(&cfg.Galene.Password, *galenePassword)
	setString(&cfg.IRC.Server, *ircServer)
	setString(&cfg.IRC.Nickname, *ircNickname)
	setString(&cfg.IRC.Channel, *ircChannel)
	if *ircPort != "" {
		port, err := strconv.Atoi(*ircPort)
		if err != nil {
			return fmt.Errorf("invalid --irc-port %q: %w", *ircPort, err)
		}
		cfg.IRC.Port = port
	}
	if *ircTLS != "" {
		tls, err := strconv.ParseBool(*ircTLS)
		if err != nil {
			return fmt.Errorf("invalid --irc-tls %q: %w", *ircTLS, err)
		}
		cfg.IRC.TLS = tls
	}
	return nil
}
