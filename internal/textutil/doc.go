// Package textutil provides small text helpers shared across the
// pipeline: title-casing detection labels for alert text and sanitizing
// names for filesystem use.
package textutil
