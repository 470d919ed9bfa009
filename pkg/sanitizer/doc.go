// Package sanitizer normalizes free text and identifiers before validation
// and storage.
//
// Every function is idempotent and never fails: bad input collapses to the
// empty string or an empty slice, which validation then rejects.
//
// Normalization includes:
//   - Names, addresses and reasons: trim and collapse inner whitespace
//   - Identifiers: trim surrounding whitespace
//   - User lists: normalize each id, then drop empties and duplicates
package sanitizer
