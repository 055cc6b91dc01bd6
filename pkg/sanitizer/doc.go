// Package sanitizer normalizes customer input before validation.
//
// Normalizers never fail: input that cannot be normalized comes back empty or
// unchanged and validation decides what to do with it. Applying a normalizer
// twice gives the same result as applying it once.
package sanitizer
