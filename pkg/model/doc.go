// Package model holds the minimal layered network the command engine edits.
//
// A Network is a tree of models: one root, instances beneath it, and subset or
// dynamic models beneath instances. Each model carries nodes, links and regions,
// plus one layout of node positions. The engine only mutates a Network on its
// interaction goroutine; background work reads Snapshot copies.
package model
