// Package codegen turns a flattened block into callable simulation
// functions.
//
// [Generate] fixes the order of states, inputs and parameters, rewrites
// algebraic equations into residual form, aligns every equation with a state
// slot and compiles the right-hand sides. The resulting [Model] exposes
//
//   - an out-of-place function (x, u, p, t) -> dx
//   - an in-place function (dx, x, u, p, t) writing into dx
//   - the diagonal [MassMatrix]: 1 for differential rows, 0 for algebraic ones
//
// Both functions read their arguments positionally in the order reported by
// [Model.States], [Model.Inputs] and [Model.Params].
package codegen
