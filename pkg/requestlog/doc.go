// Package requestlog records what each request looked like, at two
// levels of detail.
//
// LineLog is the operator-facing log.txt: one pipe-separated line per
// request, trimmed to the newest 200 lines.
//
// SnapshotStore is the debugging capture: the five canonical snapshots
// of a request (raw client body, detected formats, translated upstream
// body, upstream URL and headers, final response or error) persisted to
// SQLite when request logging is switched on.
package requestlog
