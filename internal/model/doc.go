// Package model defines shared data types used across lotwatch.
//
// Conventions:
//   - Prices: shopspring decimal amounts parsed from the feed's price label
//   - Timestamps: time.Time, same-day windows use the timestamp's own location
//   - IDs: uuid.UUID for closing records and sessions
package model
