// Package blocks composes namespaced equation blocks into systems and reduces
// systems back into single blocks.
//
//   - [Block]: a square set of equations whose symbols are classified into
//     inputs, internal parameters, internal states and outputs
//   - [System]: subsystems joined by input <- output [Connection]s, exposing
//     promoted (shortened) names through four per-category maps
//   - [Flatten]: substitutes connections, eliminates purely internal wiring
//     signals and relabels everything into one [Block]
//
// # Example
//
//	a, _ := blocks.NewBlock("A", eqsA, []string{"u"}, []string{"y"})
//	b, _ := blocks.NewBlock("B", eqsB, []string{"u"}, []string{"y"})
//	sys, _ := blocks.NewSystem("chain", []blocks.Component{a, b},
//	    []blocks.Connection{{In: "B.u", Out: "A.y"}})
//	flat, _ := sys.Flatten()
//
// Qualified names join a component name and a symbol name with [Separator].
// When the short name of a symbol is ambiguous across subsystems it stays
// qualified and a warning is logged; every other promotion conflict is an
// error.
//
// All values are immutable after construction and may be shared between
// goroutines.
package blocks
