// Copyright 2024-2026 Aiku AI

package connector

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"

	"github.com/aiku/galene-ircbridge/pkg/galene"
	"github.com/aiku/galene-ircbridge/pkg/irc"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config is the bridge configuration file.
type Config struct {
	Galene  GaleneConfig  `yaml:"galene"`
	IRC     IRCConfig     `yaml:"irc"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Logging LoggingConfig `yaml:"logging"`
}

type GaleneConfig struct {
	Server   string `yaml:"server"`
	Group    string `yaml:"group"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

type IRCConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Nickname string `yaml:"nickname"`
	Channel  string `yaml:"channel"`
}

type BridgeConfig struct {
	HistoryWindow string `yaml:"history_window"`
	// AdminAPIAddr is the listen address for the admin HTTP API. Empty falls
	// back to $BRIDGE_API_ADDR, and the API is disabled if that is empty too.
	AdminAPIAddr string `yaml:"admin_api_addr"`

	historyWindow time.Duration `yaml:"-"`
}

type LoggingConfig struct {
	Level string        `yaml:"level"`
	JSON  bool          `yaml:"json"`
	File  LogFileConfig `yaml:"file"`
}

// LogFileConfig controls the optional rotating log file. Sizes are in
// megabytes and ages in days.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess validates the configuration and fills in derived values. It
// must be called before the config is used.
func (c *Config) PostProcess() error {
	var errs []error
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	require(c.Galene.Server, "galene.server")
	require(c.Galene.Group, "galene.group")
	require(c.Galene.Username, "galene.username")
	require(c.IRC.Server, "irc.server")
	require(c.IRC.Nickname, "irc.nickname")
	require(c.IRC.Channel, "irc.channel")
	if c.IRC.Port < 0 || c.IRC.Port > 65535 {
		errs = append(errs, fmt.Errorf("irc.port %d out of range", c.IRC.Port))
	}
	if strings.ContainsAny(c.IRC.Nickname, " \r\n") {
		errs = append(errs, fmt.Errorf("irc.nickname %q contains whitespace", c.IRC.Nickname))
	}

	if c.IRC.Channel != "" && !strings.ContainsAny(c.IRC.Channel[:1], "#&+!") {
		c.IRC.Channel = "#" + c.IRC.Channel
	}
	if c.Galene.ClientID == "" {
		c.Galene.ClientID = galene.NewClientID()
	}

	c.Bridge.historyWindow = galene.DefaultHistoryWindow
	if c.Bridge.HistoryWindow != "" {
		window, err := time.ParseDuration(c.Bridge.HistoryWindow)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("bridge.history_window: %w", err))
		case window < 0:
			errs = append(errs, fmt.Errorf("bridge.history_window must not be negative"))
		default:
			c.Bridge.historyWindow = window
		}
	}
	if c.Bridge.AdminAPIAddr == "" {
		c.Bridge.AdminAPIAddr = os.Getenv("BRIDGE_API_ADDR")
	}
	return errors.Join(errs...)
}

// HistoryWindow returns the parsed history window. Valid after PostProcess.
func (c *Config) HistoryWindow() time.Duration {
	return c.Bridge.historyWindow
}

// GaleneClientConfig converts the galene section for the client.
func (c *Config) GaleneClientConfig() galene.Config {
	return galene.Config{
		Server:   c.Galene.Server,
		Group:    c.Galene.Group,
		Username: c.Galene.Username,
		Password: c.Galene.Password,
		ClientID: c.Galene.ClientID,
	}
}

// IRCClientConfig converts the irc section for the client.
func (c *Config) IRCClientConfig() irc.Config {
	return irc.Config{
		Server:   c.IRC.Server,
		Port:     c.IRC.Port,
		TLS:      c.IRC.TLS,
		Nickname: c.IRC.Nickname,
		Channel:  c.IRC.Channel,
	}
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "galene", "server")
	helper.Copy(up.Str, "galene", "group")
	helper.Copy(up.Str, "galene", "username")
	helper.Copy(up.Str|up.Null, "galene", "password")
	helper.Copy(up.Str|up.Null, "galene", "client_id")

	helper.Copy(up.Str, "irc", "server")
	helper.Copy(up.Int, "irc", "port")
	helper.Copy(up.Bool, "irc", "tls")
	helper.Copy(up.Str, "irc", "nickname")
	helper.Copy(up.Str, "irc", "channel")

	helper.Copy(up.Str, "bridge", "history_window")
	helper.Copy(up.Str|up.Null, "bridge", "admin_api_addr")

	helper.Copy(up.Str, "logging", "level")
	helper.Copy(up.Bool, "logging", "json")
	helper.Copy(up.Str|up.Null, "logging", "file", "path")
	helper.Copy(up.Int, "logging", "file", "max_size")
	helper.Copy(up.Int, "logging", "file", "max_backups")
	helper.Copy(up.Int, "logging", "file", "max_age")
	helper.Copy(up.Bool, "logging", "file", "compress")
}

// Upgrader merges a user config over the embedded example so that keys
// missing from the user's file keep their defaults.
func Upgrader() up.BaseUpgrader {
	return &up.StructUpgrader{
		SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
		Blocks:         nil,
		Base:           ExampleConfig,
	}
}

// LoadConfig reads the file at path, merges it over the example config and
// decodes the result. PostProcess is not called.
func LoadConfig(path string) (*Config, error) {
	data, _, err := up.Do(path, false, Upgrader())
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
