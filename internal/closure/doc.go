// Package closure models built system closures and computes deltas between
// them.
//
// A closure is resolved by querying the store for the requisites of a path
// and parsing each store path basename into a named component with an
// optional version and hash. Diff classifies components as added, removed,
// upgraded, downgraded, changed (content delta without an orderable version
// change), or unchanged, producing deterministic name-sorted output suitable
// for fixtures and --json consumers.
package closure
