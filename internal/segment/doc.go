// Package segment implements the Run Segmenter component.
//
// The segmenter:
//   - Consumes zone transitions and decides when a run starts and ends
//   - Enforces single-active-run discipline (a new run always closes the old)
//   - Resolves ambiguous zone tokens via the structured level triple
//   - Tags every item delta with the active run id, or none while idle
//   - Holds map-entry consumption briefly so it lands on the run it paid for
package segment
