package blocks

import (
	"strings"

	"github.com/san-kum/dynblocks/internal/naming"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

// Resolve finds the symbol called name among the inputs, internal
// parameters, internal states and outputs of c, in that order. It is linear in
// the number of symbols.
func Resolve(c Component, name string) (symbolic.Sym, error) {
	for _, syms := range [][]symbolic.Sym{c.Inputs(), c.IParams(), c.IStates(), c.Outputs()} {
		if s, ok := findName(syms, name); ok {
			return s, nil
		}
	}
	return symbolic.Sym{}, newError("resolve", c.Name(), ErrNotFound, "", name)
}

// CategoryOf reports which category of c holds the symbol called name.
func CategoryOf(c Component, name string) (Category, error) {
	for cat, syms := range [][]symbolic.Sym{c.Inputs(), c.IParams(), c.IStates(), c.Outputs()} {
		if _, ok := findName(syms, name); ok {
			return Category(cat), nil
		}
	}
	return 0, newError("resolve", c.Name(), ErrNotFound, "", name)
}

// AnonymousName draws a name for a component built without one. Separators
// in prefix are replaced so the result is a valid component name.
func AnonymousName(gen naming.Generator, prefix string) string {
	prefix = strings.ReplaceAll(prefix, Separator, "_")
	if prefix == "" {
		prefix = "component"
	}
	return gen.Next(prefix)
}
