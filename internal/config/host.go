/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package config implements spec §4.H / §6: the host-level TOML
// directives (MapCacheAlias, pool tuning) and the per-alias XML
// configuration surface. The host-level merge uses trickster's own
// toml.MetaData.IsDefined idiom so an unset directive in a per-host
// override never clobbers the package default with TOML's zero value.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// AliasEntry is one MapCacheAlias registration: an endpoint prefix bound
// to a per-alias XML config file, in registration order (spec §4.H: the
// first matching endpoint, by registration order, wins).
type AliasEntry struct {
	Endpoint   string `toml:"endpoint"`
	ConfigFile string `toml:"config_file"`

	Alias *AliasConfig `toml:"-"`
}

// HostConfig is the top-level, boot-time-parsed host configuration:
// registered aliases plus the pool tuning defaults/overrides of spec §6.
type HostConfig struct {
	Aliases []AliasEntry `toml:"alias"`

	PoolMin     int  `toml:"pool_min"`
	PoolSMax    int  `toml:"pool_smax"`
	PoolHMax    int  `toml:"pool_hmax"`
	PoolTTL     int  `toml:"pool_ttl"`
	PoolSharing bool `toml:"pool_sharing"`

	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`

	isSet map[string]bool
}

// Defaults for the pool directives, per spec §6.
const (
	DefaultPoolSMax = 5
	DefaultPoolHMax = 200
	DefaultPoolTTL  = 60
)

// NewHostConfig returns a HostConfig populated with spec §6's defaults.
func NewHostConfig() *HostConfig {
	return &HostConfig{
		PoolSMax: DefaultPoolSMax,
		PoolHMax: DefaultPoolHMax,
		PoolTTL:  DefaultPoolTTL,
		isSet:    make(map[string]bool),
	}
}

// LoadHostConfig parses a TOML host configuration file, merging any
// explicitly-set directive over the package defaults while leaving unset
// directives alone — the same pattern trickster's internal/config uses
// toml.MetaData.IsDefined for. An explicit zero for pool_smax, pool_hmax,
// or pool_ttl is treated as unset and takes the default.
func LoadHostConfig(path string) (*HostConfig, error) {
	hc := NewHostConfig()
	md, err := toml.DecodeFile(path, hc)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	hc.isSet = make(map[string]bool)
	for _, key := range []string{"pool_min", "pool_smax", "pool_hmax", "pool_ttl", "pool_sharing", "log_file", "log_level"} {
		hc.isSet[key] = md.IsDefined(key)
	}
	if !hc.isSet["pool_smax"] || hc.PoolSMax == 0 {
		hc.PoolSMax = DefaultPoolSMax
	}
	if !hc.isSet["pool_hmax"] || hc.PoolHMax == 0 {
		hc.PoolHMax = DefaultPoolHMax
	}
	if !hc.isSet["pool_ttl"] || hc.PoolTTL == 0 {
		hc.PoolTTL = DefaultPoolTTL
	}
	for i := range hc.Aliases {
		a, err := LoadAliasConfig(hc.Aliases[i].ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("config: alias %s: %w", hc.Aliases[i].Endpoint, err)
		}
		hc.Aliases[i].Alias = a
	}
	return hc, nil
}

// IsSet reports whether directive was explicitly present in the parsed
// TOML file (as opposed to taking its zero/default value).
func (hc *HostConfig) IsSet(directive string) bool {
	return hc.isSet[directive]
}

// Copy returns a copy of hc with its own alias list and is-set map,
// following trickster's config.Copy() idiom for handing the config to
// diagnostic endpoints. The parsed *AliasConfig each entry points to is
// shared with hc, not copied.
func (hc *HostConfig) Copy() *HostConfig {
	cp := *hc
	cp.Aliases = append([]AliasEntry(nil), hc.Aliases...)
	cp.isSet = make(map[string]bool, len(hc.isSet))
	for k, v := range hc.isSet {
		cp.isSet[k] = v
	}
	return &cp
}

// String renders a safe (non-secret-bearing) summary, mirroring
// trickster's redacting config.String().
func (hc *HostConfig) String() string {
	return fmt.Sprintf("HostConfig{aliases=%d pool_min=%d pool_smax=%d pool_hmax=%d pool_ttl=%d pool_sharing=%v}",
		len(hc.Aliases), hc.PoolMin, hc.PoolSMax, hc.PoolHMax, hc.PoolTTL, hc.PoolSharing)
}
