// hlc-church-app - Member chat for the HLC church app.
// Copyright (C) 2024 AfriTechX
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config is the client configuration. Poll intervals are Go duration
// strings per chat surface; unset surfaces use the default.
type Config struct {
	Server ServerConfig `yaml:"server"`
	User   UserConfig   `yaml:"user"`
	Poll   PollConfig   `yaml:"poll"`
	Upload UploadConfig `yaml:"upload"`
}

type ServerConfig struct {
	// BaseURL is the backend REST root, e.g. https://api.example.church.
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the environment variable holding the bearer token.
	// The token itself never lives in the config file.
	TokenEnv string `yaml:"token_env"`
}

type UserConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

type PollConfig struct {
	Support string `yaml:"support"`
	Direct  string `yaml:"direct"`
	Group   string `yaml:"group"`

	support time.Duration
	direct  time.Duration
	group   time.Duration
}

type UploadConfig struct {
	// MaxBytes caps attachment size; 0 means unlimited.
	MaxBytes int64 `yaml:"max_bytes"`

	// AllowedTypes lists permitted MIME types, exact ("application/pdf")
	// or prefix ("image/"). Empty admits everything.
	AllowedTypes []string `yaml:"allowed_types"`
}

type umConfig Config

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode((*umConfig)(c)); err != nil {
		return err
	}
	return c.PostProcess()
}

// PostProcess parses poll interval strings and applies defaults.
func (c *Config) PostProcess() error {
	parse := func(field, raw string, out *time.Duration) error {
		if raw == "" {
			*out = chatsync.DefaultPollInterval
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid poll.%s interval %q: %w", field, raw, err)
		}
		*out = d
		return nil
	}
	if err := parse("support", c.Poll.Support, &c.Poll.support); err != nil {
		return err
	}
	if err := parse("direct", c.Poll.Direct, &c.Poll.direct); err != nil {
		return err
	}
	if err := parse("group", c.Poll.Group, &c.Poll.group); err != nil {
		return err
	}
	if c.Server.TokenEnv == "" {
		c.Server.TokenEnv = "HLC_CHAT_TOKEN"
	}
	return nil
}

// PollInterval returns the configured interval for a chat surface.
func (c *Config) PollInterval(kind chatsync.ConversationKind) time.Duration {
	switch kind {
	case chatsync.KindSupport:
		return c.Poll.support
	case chatsync.KindDirect:
		return c.Poll.direct
	case chatsync.KindGroup:
		return c.Poll.group
	}
	return chatsync.DefaultPollInterval
}

// Token resolves the bearer token from the configured environment variable.
func (c *Config) Token() string {
	return os.Getenv(c.Server.TokenEnv)
}

// Default returns the embedded example configuration.
func Default() (*Config, error) {
	return parse([]byte(ExampleConfig))
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// yaml.Unmarshal skips UnmarshalYAML for a fully empty document.
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
