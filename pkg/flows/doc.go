// Package flows holds the concrete operations the engine ships with.
//
// Each flow is a flow.Definition over its own state type. All returns them in
// registration order; NewRegistry builds a registry holding every one.
package flows
