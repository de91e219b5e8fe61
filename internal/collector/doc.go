// Package collector wires the ingestion pipeline together: it tails the
// client log, classifies lines, drives the inventory, segmentation and
// exchange engines, and hands the resulting facts to a batch writer.
//
// One goroutine owns the whole event path, so the engines need no
// locking. The only concurrent parts are the growable hand-off buffer
// between the pipeline and the delta writer, and the notice buffer read
// by external consumers.
package collector
