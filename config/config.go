// Copyright (c) 2014 The AUTHORS
//
// This file is part of chainrpc.
//
// chainrpc is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// chainrpc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with chainrpc.  If not, see <http://www.gnu.org/licenses/>.

// Package config parses the YAML file backing a chainrpc server's
// configuration surface: prefix, maxDepth, maxArgs, serializeBatches.
// Every field has a working default, so an empty file is a valid
// configuration.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/cider/chainrpc/dispatch"
)

// Config is the on-disk shape of a chainrpc server's settings.
type Config struct {
	Server struct {
		Prefix           string `yaml:"prefix"`
		MaxDepth         int    `yaml:"maxDepth"`
		MaxArgs          int    `yaml:"maxArgs"`
		SerializeBatches bool   `yaml:"serializeBatches"`
	} `yaml:"server"`
}

// withDefaults fills in defaults for any field the file left
// zero-valued, mirroring dispatch.DefaultConfig.
func (c *Config) withDefaults() {
	d := dispatch.DefaultConfig()
	if c.Server.Prefix == "" {
		c.Server.Prefix = "/__rpc"
	}
	if c.Server.MaxDepth == 0 {
		c.Server.MaxDepth = d.MaxDepth
	}
	if c.Server.MaxArgs == 0 {
		c.Server.MaxArgs = d.MaxArgs
	}
}

// Validate reports whether the parsed config is internally consistent.
func (c *Config) Validate() error {
	if c.Server.MaxDepth <= 0 {
		return fmt.Errorf("config: server.maxDepth must be positive, got %d", c.Server.MaxDepth)
	}
	if c.Server.MaxArgs <= 0 {
		return fmt.Errorf("config: server.maxArgs must be positive, got %d", c.Server.MaxArgs)
	}
	if c.Server.Prefix == "" || c.Server.Prefix[0] != '/' {
		return fmt.Errorf("config: server.prefix must start with '/', got %q", c.Server.Prefix)
	}
	return nil
}

// ParseConfig unmarshals, defaults, and validates a config file's bytes
// in one step.
func ParseConfig(data []byte) (*Config, error) {
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DispatchConfig projects the parsed file into a dispatch.Config, the shape
// the dispatcher actually consumes.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		MaxDepth:         c.Server.MaxDepth,
		MaxArgs:          c.Server.MaxArgs,
		SerializeBatches: c.Server.SerializeBatches,
	}
}

// Merge overlays CLI-flag overrides, decoded via mapstructure, onto a
// parsed file config. Zero-valued overrides leave the file's value
// untouched.
func (c *Config) Merge(overrides map[string]any) error {
	var layer Config
	if err := mapstructure.Decode(overrides, &layer); err != nil {
		return fmt.Errorf("config: merge overrides: %w", err)
	}
	if layer.Server.Prefix != "" {
		c.Server.Prefix = layer.Server.Prefix
	}
	if layer.Server.MaxDepth != 0 {
		c.Server.MaxDepth = layer.Server.MaxDepth
	}
	if layer.Server.MaxArgs != 0 {
		c.Server.MaxArgs = layer.Server.MaxArgs
	}
	if layer.Server.SerializeBatches {
		c.Server.SerializeBatches = true
	}
	return nil
}
