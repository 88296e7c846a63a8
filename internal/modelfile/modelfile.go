// Package modelfile reads block and system descriptions from YAML.
//
// A file declares blocks (equations plus their inputs, outputs, internal
// states and internal parameters) and systems (instances of declared blocks
// or systems joined by connections). The root component is built on demand:
//
//	blocks:
//	  - name: lowpass
//	    inputs: [u]
//	    outputs: [y]
//	    states: [x]
//	    params: [tau]
//	    equations:
//	      - "D(x) ~ (u - x)/tau"
//	      - "y ~ x"
//	systems:
//	  - name: cascade
//	    subsystems: [{use: lowpass, as: f1}, {use: lowpass, as: f2}]
//	    connections: [{in: f2.u, out: f1.y}]
//	root: cascade
//	params: {f1.tau: 1, f2.tau: 2}
package modelfile

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynblocks/internal/blocks"
	"github.com/san-kum/dynblocks/internal/naming"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

// ErrModelFile indicates a malformed model description.
var ErrModelFile = errors.New("modelfile: invalid model")

// File is the YAML document.
type File struct {
	Blocks  []BlockDef  `yaml:"blocks"`
	Systems []SystemDef `yaml:"systems"`
	// Root names the component to build. It defaults to the last system, or
	// the last block when there are no systems.
	Root string `yaml:"root"`

	Params  map[string]float64 `yaml:"params"`
	Initial map[string]float64 `yaml:"initial"`
	Inputs  map[string]float64 `yaml:"inputs"`
}

// BlockDef declares a block. Every symbol of the equations must be listed in
// exactly one of the four name lists.
type BlockDef struct {
	Name      string   `yaml:"name"`
	Inputs    []string `yaml:"inputs"`
	Outputs   []string `yaml:"outputs"`
	States    []string `yaml:"states"`
	Params    []string `yaml:"params"`
	Equations []string `yaml:"equations"`
}

// SystemDef declares a system over instances of other definitions.
type SystemDef struct {
	Name        string              `yaml:"name"`
	Subsystems  []Instance          `yaml:"subsystems"`
	Connections []blocks.Connection `yaml:"connections"`
	InputsMap   map[string]string   `yaml:"inputs_map"`
	IParamsMap  map[string]string   `yaml:"iparams_map"`
	IStatesMap  map[string]string   `yaml:"istates_map"`
	OutputsMap  map[string]string   `yaml:"outputs_map"`
}

// Instance uses a declared block or system, optionally under another name.
// In YAML it is either a mapping {use, as} or a plain definition name.
type Instance struct {
	Use string `yaml:"use"`
	As  string `yaml:"as"`
}

func (in *Instance) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		in.Use = node.Value
		return nil
	}
	type plain Instance
	return node.Decode((*plain)(in))
}

// Name is the component name of the instance.
func (in Instance) Name() string {
	if in.As != "" {
		return in.As
	}
	return in.Use
}

// Option configures Parse and Load.
type Option func(*loader)

// WithLogger sets the logger handed to every system.
func WithLogger(l *slog.Logger) Option {
	return func(ld *loader) { ld.logger = l }
}

// WithNames sets the generator for definitions without a name.
func WithNames(gen naming.Generator) Option {
	return func(ld *loader) { ld.names = gen }
}

// Model is a parsed file with its root component.
type Model struct {
	File
	Root blocks.Component
}

// Load reads and builds the model file at path.
func Load(path string, opts ...Option) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data, opts...)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// Parse builds the root component described by data.
func Parse(data []byte, opts ...Option) (*Model, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(ErrModelFile, err.Error())
	}

	ld := &loader{
		logger:   slog.Default(),
		names:    naming.NewCounter(),
		blocks:   make(map[string]*BlockDef),
		systems:  make(map[string]*SystemDef),
		building: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(ld)
	}
	if err := ld.index(&f); err != nil {
		return nil, err
	}

	root := f.Root
	switch {
	case root != "":
	case len(f.Systems) > 0:
		root = f.Systems[len(f.Systems)-1].Name
	case len(f.Blocks) > 0:
		root = f.Blocks[len(f.Blocks)-1].Name
	default:
		return nil, errors.Wrap(ErrModelFile, "no blocks or systems")
	}
	f.Root = root

	c, err := ld.build(Instance{Use: root})
	if err != nil {
		return nil, err
	}
	return &Model{File: f, Root: c}, nil
}

type loader struct {
	logger   *slog.Logger
	names    naming.Generator
	blocks   map[string]*BlockDef
	systems  map[string]*SystemDef
	building map[string]bool
}

func (ld *loader) index(f *File) error {
	for i := range f.Blocks {
		def := &f.Blocks[i]
		if def.Name == "" {
			def.Name = blocks.AnonymousName(ld.names, "block")
		}
		if err := ld.declare(def.Name); err != nil {
			return err
		}
		ld.blocks[def.Name] = def
	}
	for i := range f.Systems {
		def := &f.Systems[i]
		if def.Name == "" {
			def.Name = blocks.AnonymousName(ld.names, "system")
		}
		if err := ld.declare(def.Name); err != nil {
			return err
		}
		ld.systems[def.Name] = def
	}
	return nil
}

func (ld *loader) declare(name string) error {
	_, isBlock := ld.blocks[name]
	_, isSystem := ld.systems[name]
	if isBlock || isSystem {
		return errors.Wrapf(ErrModelFile, "%q declared twice", name)
	}
	return nil
}

func (ld *loader) build(in Instance) (blocks.Component, error) {
	if def, ok := ld.blocks[in.Use]; ok {
		return ld.buildBlock(def, in.Name())
	}
	def, ok := ld.systems[in.Use]
	if !ok {
		return nil, errors.Wrapf(ErrModelFile, "%q is not declared", in.Use)
	}
	if ld.building[in.Use] {
		return nil, errors.Wrapf(ErrModelFile, "system %q contains itself", in.Use)
	}
	ld.building[in.Use] = true
	defer delete(ld.building, in.Use)
	return ld.buildSystem(def, in.Name())
}

func (ld *loader) buildBlock(def *BlockDef, name string) (*blocks.Block, error) {
	scope := symbolic.NewScope(nil, nil)
	for _, group := range []struct {
		names []string
		kind  symbolic.Kind
	}{
		{def.Outputs, symbolic.Variable},
		{def.States, symbolic.Variable},
		{def.Inputs, symbolic.Parameter},
		{def.Params, symbolic.Parameter},
	} {
		for _, n := range group.names {
			if err := scope.Declare(n, group.kind); err != nil {
				return nil, errors.Wrapf(ErrModelFile, "block %q: %v", def.Name, err)
			}
		}
	}
	eqs := make([]symbolic.Equation, len(def.Equations))
	for i, src := range def.Equations {
		eq, err := symbolic.ParseEquation(src, scope)
		if err != nil {
			return nil, errors.Wrapf(err, "block %q equation %d", def.Name, i+1)
		}
		eqs[i] = eq
	}
	b, err := blocks.NewBlock(name, eqs, def.Inputs, def.Outputs)
	if err != nil {
		return nil, err
	}
	if err := checkDeclared(b, def); err != nil {
		return nil, err
	}
	return b, nil
}

// checkDeclared rejects declared states and params that no equation uses.
func checkDeclared(b *blocks.Block, def *BlockDef) error {
	used := make(map[string]bool)
	for _, s := range append(b.States(), b.Params()...) {
		used[s.Name] = true
	}
	for _, name := range append(append([]string(nil), def.States...), def.Params...) {
		if !used[name] {
			return errors.Wrapf(ErrModelFile, "block %q declares %q but no equation uses it", def.Name, name)
		}
	}
	return nil
}

func (ld *loader) buildSystem(def *SystemDef, name string) (*blocks.System, error) {
	subs := make([]blocks.Component, len(def.Subsystems))
	for i, in := range def.Subsystems {
		c, err := ld.build(in)
		if err != nil {
			return nil, errors.Wrapf(err, "system %q", def.Name)
		}
		subs[i] = c
	}

	opts := []blocks.Option{blocks.WithLogger(ld.logger)}
	for cat, m := range map[blocks.Category]map[string]string{
		blocks.CategoryInputs:  def.InputsMap,
		blocks.CategoryIParams: def.IParamsMap,
		blocks.CategoryIStates: def.IStatesMap,
		blocks.CategoryOutputs: def.OutputsMap,
	} {
		if m != nil {
			opts = append(opts, blocks.WithMap(cat, m))
		}
	}
	return blocks.NewSystem(name, subs, def.Connections, opts...)
}
