// Package sanitizer provides input normalization for booking data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Hall keys: Lowercase with collapsed whitespace - "Main  Hall" and
//     "main hall" map to the same key, so hall lookups are case-insensitive
//     on every path
package sanitizer
