// Package activation drives the configuration lifecycle: build the closure,
// show the diff, confirm, record a pending generation, run the activation
// script, and promote the generation. Every failure path leaves the registry
// and the profile symlink describing a system that actually exists.
package activation
