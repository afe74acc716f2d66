// Package app wires the tremor engine together: configuration, logging,
// the causal graph and baselines, the in-memory store and the HTTP server,
// with graceful shutdown that snapshots the store before exit.
package app
