// Package pricesync keeps local price knowledge and the remote crowd
// price service in step: a poller pulls trusted aggregates down, a
// submitter pushes locally learned prices up. Both run on their own
// intervals and touch shared state only through the store.
package pricesync
