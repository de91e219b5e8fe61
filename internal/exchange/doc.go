// Package exchange implements the Exchange Correlator component.
//
// The correlator pairs a price-search query line with the listing lines
// that follow it, bounded by line distance and age so unmatched queries
// never accumulate. A completed group becomes one ExchangeQuote.
package exchange
