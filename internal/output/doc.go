// Package output renders environment captures and closure diffs for people,
// shells, files, and machines. Parsing and rendering are inverses for the
// shell mode, so captured output survives a round trip.
package output
