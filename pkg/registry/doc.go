// Package registry maps model aliases to canonical model identifiers and
// decides which provider serves a given model.
//
// It contains:
//   - [Registry]: alias, pricing, capability, and native-file tables loaded
//     once at construction and read-only thereafter
//   - [Registry.Resolve]: alias resolution, provider inference, validity
//     checking, and fallback search
//   - [Registry.EstimateCost]: pre-dispatch cost estimation using a
//     chars/4 token heuristic
//
// The registry holds no network or provider-specific code; it is pure
// reference data consulted before any request reaches a provider adapter.
package registry
