// Package manifest describes the facets of a diamond and the cut plan that
// bootstraps it.
//
//	facets:
//	  - name: DiamondCutFacet
//	    kind: builtin
//	  - name: Counter
//	    kind: script
//	    script: counter.js
//	    namespace: app.counter
//	    functions:
//	      - signature: increment()
//	        handler: increment
//	cuts:
//	  - facet: DiamondCutFacet
//	  - facet: Counter
//	    functions: [increment()]
//	init:
//	  facet: Counter
//	  function: setup()
//	  input: '{"start": 10}'
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"gopkg.in/yaml.v3"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/facets"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/facets/script"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/selector"
)

// Kind selects how a facet is instantiated.
type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindScript  Kind = "script"
)

// Manifest is a diamond deployment description.
type Manifest struct {
	Facets []Facet   `json:"facets" yaml:"facets"`
	Cuts   []CutStep `json:"cuts,omitempty" yaml:"cuts,omitempty"`
	Init   *InitStep `json:"init,omitempty" yaml:"init,omitempty"`

	// dir resolves relative script paths
	dir string
}

// Facet describes one facet to deploy.
type Facet struct {
	Name      string            `json:"name" yaml:"name"`
	Kind      Kind              `json:"kind" yaml:"kind"`
	Script    string            `json:"script,omitempty" yaml:"script,omitempty"`
	Source    string            `json:"source,omitempty" yaml:"source,omitempty"`
	Namespace string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Functions []script.Function `json:"functions,omitempty" yaml:"functions,omitempty"`
}

// CutStep adds, replaces or removes the listed functions. An empty
// function list means every function of the facet.
type CutStep struct {
	Facet     string         `json:"facet" yaml:"facet"`
	Action    diamond.Action `json:"action,omitempty" yaml:"action,omitempty"`
	Functions []string       `json:"functions,omitempty" yaml:"functions,omitempty"`
}

// InitStep names the initializer run after the cuts.
type InitStep struct {
	Facet    string `json:"facet" yaml:"facet"`
	Function string `json:"function" yaml:"function"`
	Input    string `json:"input,omitempty" yaml:"input,omitempty"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse parses manifest data. The format follows the filename extension;
// anything else is tried as JSON, then YAML.
func Parse(data []byte, filename string) (*Manifest, error) {
	var m Manifest

	switch {
	case strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml"):
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	case strings.HasSuffix(filename, ".json"):
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			if err := yaml.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("parse manifest: %w", err)
			}
		}
	}
	return &m, nil
}

// Validate checks structure without instantiating any facet.
func (m *Manifest) Validate() error {
	var errs []string
	names := make(map[string]bool, len(m.Facets))

	for i, f := range m.Facets {
		if f.Name == "" {
			errs = append(errs, fmt.Sprintf("facet #%d: name is required", i))
			continue
		}
		if names[f.Name] {
			errs = append(errs, fmt.Sprintf("facet %q: declared twice", f.Name))
		}
		names[f.Name] = true

		switch f.Kind {
		case KindBuiltin, "":
			if _, ok := facets.Builtin(f.Name); !ok {
				errs = append(errs, fmt.Sprintf("facet %q: unknown builtin (available: %v)", f.Name, facets.List()))
			}
		case KindScript:
			if f.Script == "" && f.Source == "" {
				errs = append(errs, fmt.Sprintf("facet %q: script or source is required", f.Name))
			}
			if len(f.Functions) == 0 {
				errs = append(errs, fmt.Sprintf("facet %q: script facets need functions", f.Name))
			}
		default:
			errs = append(errs, fmt.Sprintf("facet %q: unknown kind %q", f.Name, f.Kind))
		}
	}

	for i, c := range m.Cuts {
		if c.Action != diamond.Remove && !names[c.Facet] {
			errs = append(errs, fmt.Sprintf("cut #%d: unknown facet %q", i, c.Facet))
		}
		if c.Action == diamond.Remove && len(c.Functions) == 0 {
			errs = append(errs, fmt.Sprintf("cut #%d: remove needs functions", i))
		}
		if c.Action > diamond.Remove {
			errs = append(errs, fmt.Sprintf("cut #%d: %v", i, diamond.ErrUnknownAction))
		}
	}

	if m.Init != nil {
		if !names[m.Init.Facet] {
			errs = append(errs, fmt.Sprintf("init: unknown facet %q", m.Init.Facet))
		}
		if m.Init.Function == "" {
			errs = append(errs, "init: function is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Instantiate builds every facet, keyed by name.
func (m *Manifest) Instantiate() (map[string]diamond.Facet, error) {
	out := make(map[string]diamond.Facet, len(m.Facets))
	for _, f := range m.Facets {
		switch f.Kind {
		case KindBuiltin, "":
			facet, ok := facets.Builtin(f.Name)
			if !ok {
				return nil, fmt.Errorf("facet %q: unknown builtin", f.Name)
			}
			out[f.Name] = facet
		case KindScript:
			src := f.Source
			if f.Script != "" {
				path := f.Script
				if !filepath.IsAbs(path) && m.dir != "" {
					path = filepath.Join(m.dir, path)
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, fmt.Errorf("facet %q: read script: %w", f.Name, err)
				}
				src = string(data)
			}
			facet, err := script.New(f.Name, f.Namespace, src, f.Functions)
			if err != nil {
				return nil, fmt.Errorf("facet %q: %w", f.Name, err)
			}
			out[f.Name] = facet
		default:
			return nil, fmt.Errorf("facet %q: unknown kind %q", f.Name, f.Kind)
		}
	}
	return out, nil
}

// Selectors returns the selectors each facet exposes, keyed by name.
func (m *Manifest) Selectors() (map[string][]selector.Selector, error) {
	built, err := m.Instantiate()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]selector.Selector, len(built))
	for name, f := range built {
		out[name] = diamond.Selectors(f)
	}
	return out, nil
}

// Plan is a manifest resolved against a code store.
type Plan struct {
	Addresses map[string]util.Uint160
	Cuts      []diamond.Cut
	Init      *diamond.Init
}

// Deploy instantiates and deploys every facet from deployer and resolves
// the cut plan against the resulting addresses.
func (m *Manifest) Deploy(code *diamond.CodeStore, deployer util.Uint160) (*Plan, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	built, err := m.Instantiate()
	if err != nil {
		return nil, err
	}

	plan := &Plan{Addresses: make(map[string]util.Uint160, len(built))}
	for _, f := range m.Facets {
		addr, err := code.Deploy(deployer, built[f.Name])
		if err != nil {
			return nil, fmt.Errorf("deploy %q: %w", f.Name, err)
		}
		plan.Addresses[f.Name] = addr
	}

	for _, step := range m.Cuts {
		c := diamond.Cut{Action: step.Action}
		if step.Action != diamond.Remove {
			c.Facet = plan.Addresses[step.Facet]
		}
		if len(step.Functions) > 0 {
			c.Selectors = selector.FromSignatures(step.Functions...)
		} else {
			c.Selectors = diamond.Selectors(built[step.Facet])
		}
		plan.Cuts = append(plan.Cuts, c)
	}

	if m.Init != nil {
		init := &diamond.Init{
			Facet:    plan.Addresses[m.Init.Facet],
			Selector: selector.FromSignature(m.Init.Function),
		}
		if m.Init.Input != "" {
			init.Input = []byte(m.Init.Input)
		}
		plan.Init = init
	}
	return plan, nil
}
