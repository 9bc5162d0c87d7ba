// Package config reads the receiver's startup configuration: the network
// addresses it joins, the front end's tunable IF limits, and the set of
// channels to instantiate at boot with their initial tuning/filter/demod
// parameters.
//
// Grounded on deviceid.go's deviceid_init: a platform search path tried in
// order, gopkg.in/yaml.v3 for the decode, and error messages that list every
// path tried on failure. Unlike deviceid.go's tocalls.yaml (a fixed external
// schema decoded into map[string]interface{}), this file's schema is ours to
// define, so it decodes directly into tagged structs -- the same library,
// used the way a schema the project itself owns would be.
//
// This file is read once at process startup. Everything it sets can later
// be changed at runtime by a command packet (internal/status); the YAML
// file only supplies the initial state, the way direwolf.conf supplies
// initial audio device and channel settings that MODEM/PTT commands don't
// revisit.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SearchPath lists the locations tried, in order, when a config path isn't
// given explicitly on the command line.
var SearchPath = []string{
	"radiod.yaml",
	"config/radiod.yaml",
	"/usr/local/etc/radiod/radiod.yaml",
	"/etc/radiod/radiod.yaml",
}

// Network holds the multicast addresses this instance joins or advertises.
// Each is a "host:port" or "group:port" string handed to internal/mcast.Join.
type Network struct {
	Data      string `yaml:"data"`       // input: raw I/Q RTP multicast group
	Status    string `yaml:"status"`     // status/command TLV multicast group
	Audio     string `yaml:"audio"`      // default output audio RTP multicast group, if channels don't override it
	Interface string `yaml:"interface"`  // network interface name for multicast join, "" = system default
	TTL       int    `yaml:"ttl"`        // multicast TTL / hop limit, 0 = library default
}

// Frontend describes the tunable front end's fixed characteristics, used by
// internal/tuning.Controller to range-check second-LO retuning.
type Frontend struct {
	SampleRate        float64 `yaml:"sample_rate"`
	Calibrate         float64 `yaml:"calibrate"`           // fractional correction: true = nominal*(1+calibrate), for sample clock and first_LO
	MaxIF             float64 `yaml:"max_if"`
	MinIF             float64 `yaml:"min_if"`
	PassbandHalfWidth float64 `yaml:"passband_half_width"`
}

// DemodOptions mirrors demod.LinearOptions for the YAML layer, so a channel
// preset can select pll/square/env/agc/channels without internal/config
// importing internal/demod (the receiver wiring package translates this
// into the concrete option struct the demodulator expects).
type DemodOptions struct {
	PLL      bool `yaml:"pll"`
	Square   bool `yaml:"square"`
	Env      bool `yaml:"env"`
	AGC      bool `yaml:"agc"`
	Channels int  `yaml:"channels"`
}

// Channel is one preset channel instantiated at boot.
type Channel struct {
	Name string `yaml:"name"`
	Mode string `yaml:"mode"` // "am", "fm", or "linear"

	Frequency         float64 `yaml:"frequency"`          // target RF, Hz
	LowEdge           float64 `yaml:"low_edge"`           // filter passband low edge, Hz relative to carrier
	HighEdge          float64 `yaml:"high_edge"`          // filter passband high edge, Hz
	KaiserBeta        float64 `yaml:"kaiser_beta"`
	OutputSampleRate  float64 `yaml:"output_sample_rate"` // decimated audio rate, Hz; 0 = receiver picks a default

	Demod DemodOptions `yaml:"demod"`

	OutputAudio string `yaml:"output_audio"` // overrides Network.Audio for this channel, "" = use default
}

// Config is the decoded startup configuration.
type Config struct {
	Network  Network   `yaml:"network"`
	Frontend Frontend  `yaml:"frontend"`
	Channels []Channel `yaml:"channels"`
	LogLevel string    `yaml:"log_level"` // "debug", "info", "warn", "error"
}

// Load reads and decodes the config file at path. If path is empty, Load
// tries each entry of SearchPath in order and uses the first one that
// opens, mirroring deviceid_init's search loop.
func Load(path string) (Config, error) {
	var cfg Config

	f, tried, err := open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	_ = tried

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", f.Name(), err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", f.Name(), err)
	}

	return cfg, nil
}

func open(path string) (*os.File, []string, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, []string{path}, fmt.Errorf("config: opening %s: %w", path, err)
		}
		return f, []string{path}, nil
	}

	var tried []string
	for _, candidate := range SearchPath {
		tried = append(tried, candidate)
		f, err := os.Open(candidate)
		if err == nil {
			return f, tried, nil
		}
	}

	return nil, tried, fmt.Errorf("config: could not open any config file, tried: %v", tried)
}
