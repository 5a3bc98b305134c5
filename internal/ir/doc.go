// Package ir defines the compiled intermediate representation of a behavior
// tree: the blueprint the compiler emits, the engine builds from, and the
// store pins per run.
//
// This package contains type definitions and their canonical serialization
// only. All other internal packages import ir; ir imports nothing internal
// and nothing from the bt core, so it stays the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - leaf params use int64 for numbers
//   - Node kinds and run statuses travel as canonical strings
//   - Identity is content-addressed: SHA-256 over RFC 8785 canonical JSON
//     with domain separation
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
