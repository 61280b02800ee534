// Package matrix implements the combinatorial command-generation engine.
//
// A Matrix holds an ordered list of Factors (named axes of variation), a
// command-token template, ordered named template variables, and an
// output-path template. Expanding a matrix walks the full Cartesian product
// of its factor domains in row-major order, accumulating a metadata map per
// combination, resolving templates against it in two dependency-ordered
// passes (vars first, then command tokens and path), filtering combinations
// whose validity predicates reject the accumulated metadata, and yielding one
// immutable ResolvedCommand per surviving combination.
//
// A factor's domain may itself be another Matrix (or anything implementing
// Expandable): each resolved command of the inner matrix becomes one domain
// element, and its metadata is merged wholesale into the outer combination.
// This is how a slicing matrix chains onto the meshing matrix that produced
// its models.
//
// Determinism contract: factor order and value order are significant and
// fixed at construction; re-expanding the same matrix with the same overlay
// yields an identical, order-preserving sequence. Expansion has no side
// effects beyond reading the domains.
package matrix
