// Package logsource implements the Line Source component.
//
// The tailer:
//   - Reads a growing text file incrementally from a persisted byte offset
//   - Detects truncation and rotation (shrink or identity change) and
//     restarts from offset zero, after fully draining the old file
//   - Buffers partial trailing lines until the writer finishes them
//   - Retries a missing or locked file with capped backoff and reports
//     availability changes instead of failing the caller
//
// Tail-mode wakeups come from fsnotify on the log's directory with a
// poll ticker as fallback for filesystems without change events.
package logsource
