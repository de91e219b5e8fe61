// Package classify implements the Event Classifier component.
//
// The classifier:
//   - Turns one raw log line into zero-or-one typed event
//   - Is total: unmatched or malformed lines become Unrecognized, never an error
//   - Matches against a small ordered list of compiled patterns, first match wins
//   - Emits a closed set of event variants consumed by type switch downstream
//
// The log format is a private, versionless, best-effort contract; no
// conformance is guaranteed by the producer.
package classify
