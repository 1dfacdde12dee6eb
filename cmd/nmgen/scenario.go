// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emer/nmgen/conn"
	"github.com/emer/nmgen/coupling"
	"github.com/emer/nmgen/monitor"
	"github.com/emer/nmgen/nmm"
	"github.com/emer/nmgen/sim"
)

// Scenario is one complete simulation definition: model, coupling,
// connectome, integration scheme and monitoring, loadable from YAML.
type Scenario struct {

	// scenario name, used for output series
	Name string `yaml:"name"`

	// neural mass model and its parameter overrides
	Model ModelConfig `yaml:"model"`

	// coupling function and its parameter overrides
	Coupling CouplingConfig `yaml:"coupling"`

	// connectome topology
	Connectivity ConnConfig `yaml:"connectivity"`

	// integration scheme
	Integration IntegConfig `yaml:"integration"`

	// simulated duration in the same unit as dt
	SimLen float32 `yaml:"simlen"`

	// output monitor
	Monitor MonitorConfig `yaml:"monitor"`

	// seed for random initial conditions; 0 keeps the deterministic
	// range midpoint init
	InitSeed int64 `yaml:"initseed"`

	// name=value overrides applied after the YAML params, from --set
	Sets []string `yaml:"-"`
}

// ModelConfig selects a neural mass model by kind name and overrides
// its parameters.  Spatial entries give one value per node.
type ModelConfig struct {
	Kind    string               `yaml:"kind"`
	Params  map[string]float32   `yaml:"params"`
	Spatial map[string][]float32 `yaml:"spatial"`
}

// CouplingConfig selects a coupling function by kind name.
type CouplingConfig struct {
	Kind   string             `yaml:"kind"`
	Params map[string]float32 `yaml:"params"`
}

// ConnConfig selects a generated connectome.  Ring produces the
// directed ring, otherwise a dense random graph seeded by Seed.
type ConnConfig struct {
	Nodes    int     `yaml:"nodes"`
	Seed     int64   `yaml:"seed"`
	Ring     bool    `yaml:"ring"`
	Weight   float32 `yaml:"weight"`
	Speed    float32 `yaml:"speed"`
	NoDelays bool    `yaml:"nodelays"`
}

// IntegConfig selects the integration scheme.  Sigma is only used by
// the stochastic scheme, one value per state variable or a single
// value for all.
type IntegConfig struct {
	Dt     float32   `yaml:"dt"`
	Scheme string    `yaml:"scheme"`
	Sigma  []float32 `yaml:"sigma"`
}

// MonitorConfig selects the output monitor.
type MonitorConfig struct {
	Kind   string  `yaml:"kind"`
	Every  int     `yaml:"every"`
	Period float32 `yaml:"period"`
}

// DefaultScenario is the built-in demo: 16 randomly connected
// oscillators under linear coupling, no delays, deterministic Euler.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name:         "osc2d-demo",
		Model:        ModelConfig{Kind: "Oscillator2D"},
		Coupling:     CouplingConfig{Kind: "Linear"},
		Connectivity: ConnConfig{Nodes: 16, Seed: 42},
		Integration:  IntegConfig{Dt: 0.01, Scheme: "euler"},
		SimLen:       1,
		Monitor:      MonitorConfig{Kind: "raw"},
		InitSeed:     42,
	}
}

// LoadScenario reads a YAML scenario file over the defaults.
func LoadScenario(path string) (*Scenario, error) {
	sc := DefaultScenario()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %v: %w", path, err)
	}
	return sc, nil
}

// Build assembles and configures a Simulator from the scenario,
// applying the Sets overrides after the YAML parameters.
func (sc *Scenario) Build() (*sim.Simulator, error) {
	md, err := sc.Model.build()
	if err != nil {
		return nil, err
	}
	cf, err := sc.Coupling.build()
	if err != nil {
		return nil, err
	}
	for _, set := range sc.Sets {
		if err := applySet(md, cf, set); err != nil {
			return nil, err
		}
	}
	cn, err := sc.Connectivity.build()
	if err != nil {
		return nil, err
	}
	integ, err := sc.Integration.build()
	if err != nil {
		return nil, err
	}
	mon, err := sc.Monitor.build()
	if err != nil {
		return nil, err
	}
	sm := &sim.Simulator{
		Model:    md,
		Cfun:     cf,
		Conn:     cn,
		Integ:    integ,
		SimLen:   sc.SimLen,
		Monitors: []monitor.Monitor{mon},
	}
	if err := sm.Configure(); err != nil {
		return nil, err
	}
	if sc.InitSeed != 0 {
		if err := sm.InitRandom(sc.InitSeed); err != nil {
			return nil, err
		}
	}
	return sm, nil
}

func (mc *ModelConfig) build() (nmm.Modeler, error) {
	var md nmm.Modeler
	switch strings.ToLower(mc.Kind) {
	case "", "oscillator2d", "osc2d":
		md = nmm.NewOscillator2D()
	case "montbriopazoroxin", "mpr":
		md = nmm.NewMontbrioPazoRoxin()
	default:
		return nil, fmt.Errorf("unknown model kind %q", mc.Kind)
	}
	desc := md.Desc()
	for nm, v := range mc.Params {
		if desc.Param(nm) == nil {
			return nil, fmt.Errorf("model %v has no parameter %q", desc.Name, nm)
		}
		desc.SetParam(nm, v)
	}
	for nm, vals := range mc.Spatial {
		if err := desc.SetSpatial(nm, vals); err != nil {
			return nil, err
		}
	}
	return md, nil
}

func (cc *CouplingConfig) build() (coupling.Coupler, error) {
	var cf coupling.Coupler
	switch strings.ToLower(cc.Kind) {
	case "", "linear":
		cf = coupling.NewLinear()
	case "sigmoidal":
		cf = coupling.NewSigmoidal()
	default:
		return nil, fmt.Errorf("unknown coupling kind %q", cc.Kind)
	}
	desc := cf.Desc()
	for nm, v := range cc.Params {
		if desc.Param(nm) == nil {
			return nil, fmt.Errorf("coupling %v has no parameter %q", desc.Name, nm)
		}
		desc.SetParam(nm, v)
	}
	return cf, nil
}

func (cc *ConnConfig) build() (*conn.Connectivity, error) {
	if cc.Nodes <= 0 {
		return nil, fmt.Errorf("connectivity needs a positive node count, got %v", cc.Nodes)
	}
	var cn *conn.Connectivity
	if cc.Ring {
		w := cc.Weight
		if w == 0 {
			w = 1
		}
		cn = conn.NewRing(cc.Nodes, w)
	} else {
		cn = conn.NewRandom(cc.Nodes, cc.Seed)
	}
	if cc.NoDelays {
		cn.Lengths = nil
	}
	if cc.Speed > 0 {
		cn.Speed = cc.Speed
	}
	return cn, nil
}

func (ic *IntegConfig) build() (sim.Integrator, error) {
	dt := ic.Dt
	if dt == 0 {
		dt = 0.01
	}
	switch strings.ToLower(ic.Scheme) {
	case "", "euler":
		return &sim.EulerDeterministic{Dt: dt}, nil
	case "em", "eulermaruyama", "euler-maruyama":
		em := &sim.EulerMaruyama{Dt: dt, Sigma: ic.Sigma}
		if len(em.Sigma) == 0 {
			em.Sigma = []float32{0.1}
		}
		return em, nil
	default:
		return nil, fmt.Errorf("unknown integration scheme %q", ic.Scheme)
	}
}

func (mc *MonitorConfig) build() (monitor.Monitor, error) {
	switch strings.ToLower(mc.Kind) {
	case "", "raw":
		return &monitor.Raw{}, nil
	case "subsample":
		ev := mc.Every
		if ev <= 0 {
			ev = 1
		}
		return &monitor.SubSample{Every: ev}, nil
	case "tavg", "temporalaverage":
		return &monitor.TemporalAverage{Period: mc.Period}, nil
	default:
		return nil, fmt.Errorf("unknown monitor kind %q", mc.Kind)
	}
}

// applySet parses a name=value override and applies it to whichever of
// the model or coupling declares the parameter.
func applySet(md nmm.Modeler, cf coupling.Coupler, set string) error {
	nm, vs, ok := strings.Cut(set, "=")
	if !ok {
		return fmt.Errorf("override %q is not name=value", set)
	}
	v, err := strconv.ParseFloat(vs, 32)
	if err != nil {
		return fmt.Errorf("override %q: %w", set, err)
	}
	if md.Desc().Param(nm) != nil {
		md.Desc().SetParam(nm, float32(v))
		return nil
	}
	if cf.Desc().Param(nm) != nil {
		cf.Desc().SetParam(nm, float32(v))
		return nil
	}
	return fmt.Errorf("no model or coupling parameter named %q", nm)
}
