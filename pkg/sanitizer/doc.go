// Package sanitizer normalizes caller-supplied identifiers and codes before
// validation and storage.
//
// Every function is idempotent and never fails: malformed input comes back
// trimmed and is left for the validator to reject.
package sanitizer
