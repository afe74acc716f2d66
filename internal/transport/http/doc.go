// Package http exposes the tremor engine over a chi router: event intake,
// signal transforms, propagation monitoring and causal tests. All handlers
// return JSON via render and report failures as RFC 7807 problem documents.
package http
