// Package shared holds helpers used across the analytics packages. Its
// testutil subpackage provides a capturing slog handler for log assertions
// and a generator for shipment CSV fixtures.
package shared
