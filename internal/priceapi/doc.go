// Package priceapi provides the REST client for the crowd price service.
//
// Endpoints:
//   - GET /v1/items/{id}/aggregate: crowd-aggregated price for one item
//   - POST /v1/prices: submit one locally learned price
//
// A missing aggregate (404) is a normal answer, not an error. Server
// and rate-limit failures retry with jittered exponential backoff.
package priceapi
