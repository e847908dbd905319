// Package sanitizer normalizes free text before validation and storage.
//
// All functions are idempotent and never fail: bad input becomes an empty or
// shortened string. Output is plain text meant for JSON responses and calendar
// event fields. It is not HTML-escaped.
package sanitizer
