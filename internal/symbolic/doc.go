// Package symbolic is the small expression and equation substrate that block
// composition and code generation are built on.
//
// It covers exactly what composition needs:
//
//   - [Sym]: named variable, parameter or the independent variable t
//   - [Expr]: immutable expression trees ([Num], [Add], [Mul], [Pow], [Call], [Deriv])
//   - [Equation]: lhs ~ rhs pairs, differential or algebraic
//   - [Substitute], [Rename], [Symbols]: rewriting and dependency extraction
//   - [Simplify]: constant folding and like-term collection
//   - [Compile]: turn an expression into a closure over positional slots
//
// Equations are usually written as text and parsed with [ParseEquation]:
//
//	scope := symbolic.NewScope([]string{"x"}, []string{"u", "tau"})
//	eq, err := symbolic.ParseEquation("D(x) ~ -x/tau + u", scope)
//
// This is not a general computer algebra system. There is no solving,
// factoring or symbolic differentiation beyond the D(.) marker.
package symbolic
