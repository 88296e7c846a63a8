package blocks

import (
	"log/slog"

	"github.com/san-kum/dynblocks/internal/symbolic"
)

// Connection feeds the subsystem output Out into the subsystem input In.
// Both are qualified names, e.g. {In: "B.u", Out: "A.y"}.
type Connection struct {
	In  string `yaml:"in"`
	Out string `yaml:"out"`
}

// Option configures NewSystem.
type Option func(*options)

type options struct {
	maps   [numCategories]map[string]string
	logger *slog.Logger
}

// WithInputsMap promotes open subsystem inputs to the given names.
func WithInputsMap(m map[string]string) Option { return withMap(CategoryInputs, m) }

// WithIParamsMap promotes subsystem internal parameters to the given names.
func WithIParamsMap(m map[string]string) Option { return withMap(CategoryIParams, m) }

// WithIStatesMap promotes subsystem internal states to the given names.
func WithIStatesMap(m map[string]string) Option { return withMap(CategoryIStates, m) }

// WithOutputsMap promotes subsystem outputs to the given names. Listing a
// connected output keeps it exposed as a system output.
func WithOutputsMap(m map[string]string) Option { return withMap(CategoryOutputs, m) }

// WithMap sets the user map for any category.
func WithMap(cat Category, m map[string]string) Option { return withMap(cat, m) }

func withMap(cat Category, m map[string]string) Option {
	return func(o *options) {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		o.maps[cat] = cp
	}
}

// WithLogger sets the logger for promotion warnings and flattening details.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// System is a named composite of components joined by connections.
//
// Subsystem symbols are exposed under promoted names: inputs not fed by a
// connection, all internal parameters, internal states together with
// connected outputs that are not explicitly exposed, and outputs. A System is
// immutable; [System.Flatten] reduces it to a [Block].
//
// Hidden outputs that flattening substitutes away keep their promotion, so
// [System.Map] still names them and [Block.Removed] prints them with that
// name, but they are not listed by [System.IStates]. The symbol lists of a
// System and of its flattened block therefore agree.
type System struct {
	name        string
	subsystems  []Component
	connections []Connection
	promotions  [numCategories][]Promotion
	reduced     reduction
	logger      *slog.Logger
}

// NewSystem validates subsystems and connections and computes the promotion
// maps. Maps not supplied through options are generated; supplied maps are
// completed with generated promotions for the symbols they do not mention.
func NewSystem(name string, subsystems []Component, connections []Connection, opts ...Option) (*System, error) {
	const op = "new system"
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	if len(subsystems) == 0 {
		return nil, newError(op, name, ErrSchema, "no subsystems")
	}

	subNames := make(map[string]bool, len(subsystems))
	for _, sub := range subsystems {
		if sub == nil {
			return nil, newError(op, name, ErrSchema, "nil subsystem")
		}
		if subNames[sub.Name()] {
			return nil, newError(op, name, ErrNamespaceCollision, "duplicate subsystem name", sub.Name())
		}
		subNames[sub.Name()] = true
	}

	var qualified [numCategories][]candidate
	for _, sub := range subsystems {
		qualified[CategoryInputs] = append(qualified[CategoryInputs], candidates(sub.Name(), sub.Inputs())...)
		qualified[CategoryIParams] = append(qualified[CategoryIParams], candidates(sub.Name(), sub.IParams())...)
		qualified[CategoryIStates] = append(qualified[CategoryIStates], candidates(sub.Name(), sub.IStates())...)
		qualified[CategoryOutputs] = append(qualified[CategoryOutputs], candidates(sub.Name(), sub.Outputs())...)
	}

	connectedIn, connectedOut, err := checkConnections(name, connections, qualified[CategoryInputs], qualified[CategoryOutputs])
	if err != nil {
		return nil, err
	}

	// Connected outputs are claimed by their connection. Unless the user
	// exposes them they become internal states of the system.
	hidden := make(map[string]bool)
	for out := range connectedOut {
		if _, exposed := o.maps[CategoryOutputs][out]; !exposed {
			hidden[out] = true
		}
	}

	var legal [numCategories][]candidate
	claimed := [numCategories]map[string]bool{CategoryOutputs: hidden}
	for _, c := range qualified[CategoryInputs] {
		if !connectedIn[c.qualified] {
			legal[CategoryInputs] = append(legal[CategoryInputs], c)
		}
	}
	legal[CategoryIParams] = qualified[CategoryIParams]
	legal[CategoryOutputs] = qualified[CategoryOutputs]
	for _, sub := range subsystems {
		legal[CategoryIStates] = append(legal[CategoryIStates], candidates(sub.Name(), sub.IStates())...)
		for _, c := range candidates(sub.Name(), sub.Outputs()) {
			if hidden[c.qualified] {
				legal[CategoryIStates] = append(legal[CategoryIStates], c)
			}
		}
	}

	counts := make(map[string]int)
	for cat := Category(0); cat < numCategories; cat++ {
		for _, c := range legal[cat] {
			if _, user := o.maps[cat][c.qualified]; user || claimed[cat][c.qualified] {
				continue
			}
			counts[c.bare]++
		}
	}

	s := &System{
		name:        name,
		subsystems:  append([]Component(nil), subsystems...),
		connections: append([]Connection(nil), connections...),
		logger:      o.logger,
	}
	for cat := Category(0); cat < numCategories; cat++ {
		proms, unresolvable, err := promoteCategory(name, cat, legal[cat], o.maps[cat], claimed[cat], counts)
		if err != nil {
			return nil, err
		}
		if len(unresolvable) > 0 {
			s.logger.Warn("ambiguous names kept qualified",
				"system", name, "category", cat.String(), "names", unresolvable)
		}
		s.promotions[cat] = proms
	}

	owner := make(map[string]string)
	for cat := Category(0); cat < numCategories; cat++ {
		for _, p := range s.promotions[cat] {
			if prev, ok := owner[p.To]; ok {
				return nil, newError(op, name, ErrNamespaceCollision, "promoted name "+p.To+" used in several categories", prev, p.From)
			}
			owner[p.To] = p.From
		}
	}

	if s.reduced, err = s.reduce(); err != nil {
		return nil, err
	}
	return s, nil
}

func candidates(component string, syms []symbolic.Sym) []candidate {
	out := make([]candidate, len(syms))
	for i, s := range syms {
		out[i] = candidate{qualified: Qualify(component, s.Name), bare: s.Name}
	}
	return out
}

func checkConnections(system string, conns []Connection, inputs, outputs []candidate) (map[string]bool, map[string]bool, error) {
	const op = "connect"
	isInput := make(map[string]bool, len(inputs))
	for _, c := range inputs {
		isInput[c.qualified] = true
	}
	isOutput := make(map[string]bool, len(outputs))
	for _, c := range outputs {
		isOutput[c.qualified] = true
	}

	connectedIn := make(map[string]bool, len(conns))
	connectedOut := make(map[string]bool, len(conns))
	for _, c := range conns {
		if !isInput[c.In] {
			return nil, nil, newError(op, system, ErrUnresolvedConnection, "not a subsystem input", c.In)
		}
		if !isOutput[c.Out] {
			return nil, nil, newError(op, system, ErrUnresolvedConnection, "not a subsystem output", c.Out)
		}
		if connectedIn[c.In] {
			return nil, nil, newError(op, system, ErrUnresolvedConnection, "input connected more than once", c.In)
		}
		connectedIn[c.In] = true
		connectedOut[c.Out] = true
	}
	return connectedIn, connectedOut, nil
}

func (s *System) Name() string            { return s.name }
func (s *System) Inputs() []symbolic.Sym  { return s.symbols(CategoryInputs) }
func (s *System) IParams() []symbolic.Sym { return s.symbols(CategoryIParams) }
func (s *System) IStates() []symbolic.Sym { return s.symbols(CategoryIStates) }
func (s *System) Outputs() []symbolic.Sym { return s.symbols(CategoryOutputs) }

func (s *System) symbols(cat Category) []symbolic.Sym {
	out := make([]symbolic.Sym, 0, len(s.promotions[cat]))
	for _, p := range s.promotions[cat] {
		if s.reduced.eliminated[p.From] {
			continue
		}
		out = append(out, symbolic.Sym{Name: p.To, Kind: cat.kind()})
	}
	return out
}

// Subsystems returns the components of s in declaration order.
func (s *System) Subsystems() []Component {
	return append([]Component(nil), s.subsystems...)
}

// Connections returns the connections of s in declaration order.
func (s *System) Connections() []Connection {
	return append([]Connection(nil), s.connections...)
}

// Promotions returns the qualified-to-promoted map of one category, ordered
// by subsystem and symbol declaration order.
func (s *System) Promotions(cat Category) []Promotion {
	return append([]Promotion(nil), s.promotions[cat]...)
}

// Map returns the promotions of one category as a map, including the hidden
// outputs eliminated by flattening.
func (s *System) Map(cat Category) map[string]string {
	m := make(map[string]string, len(s.promotions[cat]))
	for _, p := range s.promotions[cat] {
		m[p.From] = p.To
	}
	return m
}
