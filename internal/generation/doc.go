// Package generation persists the durable record of system generations in
// SQLite and owns the profile symlinks derived from it.
//
// The Store is the single writer of generation state. Numbers are allocated
// per profile from a counter that never decreases, so a pruned number is
// never reused. MarkActive promotes a generation and demotes the previous
// active one in a single transaction; Prune applies a retention policy that
// always preserves the active generation and refuses to run while any
// generation is pending. A flock-backed per-profile lock serializes the
// promote and prune critical sections across processes.
//
// Treat this package as the single source of truth for generation semantics;
// readers query the registry rather than cached global state.
package generation
