// Package runner spawns external build and activation subprocesses.
//
// It streams stdout and stderr concurrently through a single queue so
// per-stream arrival order is preserved, supports a timestamped interleaved
// capture mode, enforces timeouts by signalling SIGTERM, and offers a dry-run
// mode that previews a command without side effects. All process creation in
// the tool funnels through this package.
package runner
