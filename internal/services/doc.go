// Package services defines shared utilities consumed by the generation
// lifecycle components and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp profile names, operation names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (build vs activation vs registry vs user abort)
//     consistent across components, and the exit-code mapping derived
//     from them.
//
// Use these helpers when wiring new lifecycle logic so operational behaviour
// stays uniform across the tool.
package services
