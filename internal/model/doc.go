// Package model defines the market data types shared by the codec, the
// aggregators and the view bindings.
//
// Conventions:
//   - Prices and volumes: float64, exactly as the feed sends them
//   - Timestamps: int64 milliseconds since Unix epoch, unless a time.Time
//   - Market codes: quote-base form, e.g. "KRW-BTC"
package model
