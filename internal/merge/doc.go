// Package merge resolves template merge fields for one recipient.
//
// A template's mapping (placeholder name -> {kind, value}) is compiled once
// into a Layout of typed field resolvers. Resolving a Layout against a
// Contact and an Account is pure: the same inputs always produce the same
// map, and a missing contact column resolves to the empty string.
//
// Substitute performs the literal, case-insensitive {field} replacement
// used by the SMTP channel and by non-templated API sends. Placeholders
// with no resolved value are left untouched.
package merge
