// Package nix wraps the external Nix toolchain behind a small client. It
// builds system closures, runs activation scripts, and gates work behind a
// preflight version and feature check. All subprocess execution goes through
// the injected runner executor so tests can substitute a fake.
package nix
