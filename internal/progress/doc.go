// Package progress carries job lifecycle events (submission, progress
// snapshots, poll failures, terminal outcomes) from the console controller to
// pluggable sinks. The Hub batches events on a background goroutine so the
// controller never blocks on logging, metrics or publishing.
package progress
