package symbolic

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// Scope declares which names in parsed text are variables and which are
// parameters. The name t always denotes the independent variable.
type Scope struct {
	kinds map[string]Kind
}

// NewScope declares variables and parameters. A name declared twice keeps its
// first kind; use Declare to detect conflicts.
func NewScope(variables, parameters []string) *Scope {
	s := &Scope{kinds: make(map[string]Kind, len(variables)+len(parameters))}
	for _, v := range variables {
		_ = s.Declare(v, Variable)
	}
	for _, p := range parameters {
		_ = s.Declare(p, Parameter)
	}
	return s
}

// Declare adds name with kind k.
func (s *Scope) Declare(name string, k Kind) error {
	if name == T.Name {
		return errors.Errorf("symbolic: %q is reserved for the independent variable", name)
	}
	if name == "" {
		return errors.New("symbolic: empty symbol name")
	}
	if prev, ok := s.kinds[name]; ok && prev != k {
		return errors.Errorf("symbolic: %q declared as both %s and %s", name, prev, k)
	}
	s.kinds[name] = k
	return nil
}

// Lookup resolves name to a symbol.
func (s *Scope) Lookup(name string) (Sym, bool) {
	if name == T.Name {
		return T, true
	}
	k, ok := s.kinds[name]
	if !ok {
		return Sym{}, false
	}
	return Sym{Name: name, Kind: k}, true
}

// ParseEquation parses "lhs ~ rhs".
func ParseEquation(src string, scope *Scope) (Equation, error) {
	lhs, rhs, ok := strings.Cut(src, "~")
	if !ok {
		return Equation{}, errors.Errorf("symbolic: equation %q has no '~'", src)
	}
	l, err := parseAt(lhs, scope, hcl.InitialPos)
	if err != nil {
		return Equation{}, errors.Wrapf(err, "lhs of %q", src)
	}
	start := hcl.Pos{Line: 1, Column: len(lhs) + 2, Byte: len(lhs) + 1}
	r, err := parseAt(rhs, scope, start)
	if err != nil {
		return Equation{}, errors.Wrapf(err, "rhs of %q", src)
	}
	return Equation{LHS: l, RHS: r}, nil
}

// ParseExpr parses a single expression.
func ParseExpr(src string, scope *Scope) (Expr, error) {
	return parseAt(src, scope, hcl.InitialPos)
}

func parseAt(src string, scope *Scope, start hcl.Pos) (Expr, error) {
	node, diags := hclsyntax.ParseExpression([]byte(src), "equation", start)
	if diags.HasErrors() {
		return nil, diags
	}
	return convert(node, scope)
}

func convert(node hclsyntax.Expression, scope *Scope) (Expr, error) {
	switch n := node.(type) {
	case *hclsyntax.LiteralValueExpr:
		return literal(n.Val, n.Range())
	case *hclsyntax.ParenthesesExpr:
		return convert(n.Expression, scope)
	case *hclsyntax.ScopeTraversalExpr:
		name, err := traversalName(n.Traversal)
		if err != nil {
			return nil, err
		}
		s, ok := scope.Lookup(name)
		if !ok {
			return nil, errors.Errorf("%s: undeclared symbol %q", n.Range(), name)
		}
		return s, nil
	case *hclsyntax.UnaryOpExpr:
		if n.Op != hclsyntax.OpNegate {
			return nil, errors.Errorf("%s: unsupported unary operator", n.Range())
		}
		v, err := convert(n.Val, scope)
		if err != nil {
			return nil, err
		}
		return Neg(v), nil
	case *hclsyntax.BinaryOpExpr:
		l, err := convert(n.LHS, scope)
		if err != nil {
			return nil, err
		}
		r, err := convert(n.RHS, scope)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case hclsyntax.OpAdd:
			return Plus(l, r), nil
		case hclsyntax.OpSubtract:
			return Minus(l, r), nil
		case hclsyntax.OpMultiply:
			return Times(l, r), nil
		case hclsyntax.OpDivide:
			return Div(l, r), nil
		case hclsyntax.OpModulo:
			return Func("mod", l, r), nil
		}
		return nil, errors.Errorf("%s: unsupported binary operator", n.Range())
	case *hclsyntax.FunctionCallExpr:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			v, err := convert(a, scope)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		if n.Name == "D" {
			if len(args) != 1 {
				return nil, errors.Errorf("%s: D takes exactly one argument", n.Range())
			}
			return D(args[0]), nil
		}
		def, ok := functions[n.Name]
		if !ok {
			return nil, errors.Errorf("%s: unknown function %q", n.Range(), n.Name)
		}
		if def.arity != len(args) {
			return nil, errors.Errorf("%s: %s takes %d arguments, got %d", n.Range(), n.Name, def.arity, len(args))
		}
		if n.Name == "pow" {
			return PowOf(args[0], args[1]), nil
		}
		return Func(n.Name, args...), nil
	}
	return nil, errors.Errorf("%s: unsupported expression", node.Range())
}

func literal(v cty.Value, rng hcl.Range) (Expr, error) {
	if !v.IsKnown() || v.IsNull() || !v.Type().Equals(cty.Number) {
		return nil, errors.Errorf("%s: only numeric literals are allowed", rng)
	}
	f, _ := v.AsBigFloat().Float64()
	return Num{Value: f}, nil
}

// traversalName joins root.attr.attr into a qualified name.
func traversalName(tr hcl.Traversal) (string, error) {
	parts := make([]string, 0, len(tr))
	for _, step := range tr {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			parts = append(parts, s.Name)
		case hcl.TraverseAttr:
			parts = append(parts, s.Name)
		default:
			return "", errors.Errorf("%s: indexing is not supported", tr.SourceRange())
		}
	}
	return strings.Join(parts, "."), nil
}
